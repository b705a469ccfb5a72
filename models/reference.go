package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const merchantRefPrefix = "ORD"

// MerchantReference encodes the order identity as ORD-{id}-{unix seconds}.
func MerchantReference(orderID int64, createdAt time.Time) string {
	return fmt.Sprintf("%s-%d-%d", merchantRefPrefix, orderID, createdAt.Unix())
}

// ParseMerchantReference recovers the order id from a merchant reference.
func ParseMerchantReference(ref string) (int64, bool) {
	parts := strings.Split(strings.TrimSpace(ref), "-")
	if len(parts) != 3 || parts[0] != merchantRefPrefix {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	if _, err := strconv.ParseInt(parts[2], 10, 64); err != nil {
		return 0, false
	}
	return id, true
}
