// README: Per-user coupons; a coupon is consumed at most once.
package coupon

import (
	"strings"
	"time"
)

type Type string

const (
	TypeFirstTime  Type = "FIRST_TIME"
	TypePercentage Type = "PERCENTAGE"
	TypeFixed      Type = "FIXED"
)

type Coupon struct {
	Code      string     `json:"code"`
	Type      Type       `json:"type"`
	Value     float64    `json:"value"`
	UserID    string     `json:"userId"`
	IsUsed    bool       `json:"isUsed"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Active reports whether c can still be applied at now.
func (c Coupon) Active(now time.Time) bool {
	if c.IsUsed {
		return false
	}
	return c.ExpiresAt == nil || c.ExpiresAt.After(now)
}

// NormalizeCode upper-cases and trims a client-supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
