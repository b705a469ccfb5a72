package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Roles carried in the "role" claim.
const (
	RoleCustomer = "customer"
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// Identity is the caller described by a verified token.
type Identity struct {
	UserID string
	Role   string
}

// IsOperator reports whether the caller may manage other customers' orders.
func (i Identity) IsOperator() bool {
	return i.Role == RoleOperator || i.Role == RoleAdmin
}

// ParseToken verifies an HS256 token and extracts the user_id and role claims.
// A numeric user_id is accepted and rendered as a decimal string.
func ParseToken(tokenString, secret string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}

	var id Identity
	switch v := claims["user_id"].(type) {
	case float64:
		id.UserID = strconv.FormatInt(int64(v), 10)
	case string:
		id.UserID = v
	}
	if id.UserID == "" {
		return Identity{}, fmt.Errorf("%w: missing user_id", ErrInvalidToken)
	}

	id.Role = RoleCustomer
	if role, ok := claims["role"].(string); ok && role != "" {
		id.Role = strings.ToLower(role)
	}
	if staff, ok := claims["is_staff"].(bool); ok && staff {
		id.Role = RoleAdmin
	}
	return id, nil
}

// GenerateToken signs a token for the given identity. Used by tests and local tooling.
func GenerateToken(id Identity, secret string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": id.UserID,
		"role":    id.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
