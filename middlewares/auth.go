package middlewares

import (
	"net/http"
	"strings"

	"github.com/JayKadi/ecommerce-project/utils"
	"github.com/gin-gonic/gin"
)

// Context keys set by AuthMiddleware.
const (
	ContextUserID = "userID"
	ContextRole   = "role"
)

// AuthMiddleware requires a valid bearer token and stores the caller's id and role.
// Websocket clients cannot set headers, so a ?token= query parameter is accepted
// when the header is absent.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if header == "" {
			token, found = c.Query("token"), true
		}
		if !found || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		id, err := utils.ParseToken(strings.TrimSpace(token), secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(ContextUserID, id.UserID)
		c.Set(ContextRole, id.Role)
		c.Next()
	}
}

// OperatorOnly rejects callers without an operator role. Use after AuthMiddleware.
func OperatorOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsOperator(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

func IsOperator(c *gin.Context) bool {
	return utils.Identity{Role: c.GetString(ContextRole)}.IsOperator()
}
