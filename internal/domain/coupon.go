package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Coupon is a named discount rule.
type Coupon struct {
	Code         string          `json:"code"`
	Discount     decimal.Decimal `json:"discount"`
	MinPurchase  decimal.Decimal `json:"minPurchase"`
	FreeShipping bool            `json:"freeShipping,omitempty"`
	ExpiresAt    *time.Time      `json:"expiresAt,omitempty"`
}

// NormalizeCouponCode turns user input into the catalog match key.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsExpired reports whether the coupon has an expiry that is already behind now.
func (c Coupon) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// Eligible reports whether the subtotal reaches the coupon's minimum purchase.
func (c Coupon) Eligible(subtotal decimal.Decimal) bool {
	return subtotal.GreaterThanOrEqual(c.MinPurchase)
}
