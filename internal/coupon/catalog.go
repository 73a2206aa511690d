package coupon

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/seafood-cart/internal/domain"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("coupon not found")

// Catalog resolves coupon codes. Codes are matched after domain.NormalizeCouponCode.
type Catalog interface {
	Lookup(ctx context.Context, code string) (domain.Coupon, error)
}

// StaticCatalog is a fixed set of coupons keyed by normalized code.
type StaticCatalog map[string]domain.Coupon

// DefaultCatalog returns the storefront's built-in coupons.
func DefaultCatalog() StaticCatalog {
	return NewStaticCatalog(
		domain.Coupon{Code: "WELCOME10", Discount: decimal.NewFromInt(10)},
		domain.Coupon{Code: "FREESHIP", FreeShipping: true},
		domain.Coupon{Code: "SEAFOOD50", Discount: decimal.NewFromInt(50), MinPurchase: decimal.NewFromInt(300)},
	)
}

func NewStaticCatalog(coupons ...domain.Coupon) StaticCatalog {
	c := make(StaticCatalog, len(coupons))
	for _, cp := range coupons {
		cp.Code = domain.NormalizeCouponCode(cp.Code)
		c[cp.Code] = cp
	}
	return c
}

func (c StaticCatalog) Lookup(_ context.Context, code string) (domain.Coupon, error) {
	cp, ok := c[domain.NormalizeCouponCode(code)]
	if !ok {
		return domain.Coupon{}, ErrNotFound
	}
	return cp, nil
}
