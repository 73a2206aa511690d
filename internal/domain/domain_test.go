package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNewLineItem_Defaults(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	item := NewLineItem(Product{Name: "Seer Fish", Type: "Steaks Cut", Price: decimal.NewFromInt(200)}, 2, now)

	assert.Equal(t, "seer-fish-steaks-cut-1700000000000", item.ID)
	assert.Equal(t, DefaultImage, item.Image)
	assert.Equal(t, Nutrition{}, item.Nutrition)
	assert.Equal(t, now, item.AddedAt)
	assert.Equal(t, "400", item.LineTotal().String())
	assert.Equal(t, "seer-fish:steaks-cut", item.StockKey())
}

func TestNewLineItem_KeepsGivenFields(t *testing.T) {
	n := &Nutrition{Omega3: 1.2, Protein: 22, Calories: 150}
	item := NewLineItem(Product{Name: "Pomfret", Type: "whole", Image: "/img/pomfret.jpg", Nutrition: n}, 1, time.Now())

	assert.Equal(t, "/img/pomfret.jpg", item.Image)
	assert.Equal(t, *n, item.Nutrition)
}

func TestLineItem_Matches(t *testing.T) {
	item := LineItem{Name: "Pomfret", Type: "whole"}

	assert.True(t, item.Matches(Product{Name: "Pomfret", Type: "whole"}))
	assert.False(t, item.Matches(Product{Name: "Pomfret", Type: "cleaned"}))
}

func TestPaymentMethod_Valid(t *testing.T) {
	tests := []struct {
		name string
		pm   PaymentMethod
		want bool
	}{
		{"card", PaymentMethod{Type: PaymentCard, CardNumber: "4111 1111 1111 1111"}, true},
		{"short card", PaymentMethod{Type: PaymentCard, CardNumber: "4111"}, false},
		{"upi", PaymentMethod{Type: PaymentUPI, UPIID: "asha@okbank"}, true},
		{"upi without handle", PaymentMethod{Type: PaymentUPI, UPIID: "asha"}, false},
		{"cod", PaymentMethod{Type: PaymentCOD}, true},
		{"unknown", PaymentMethod{Type: "cheque"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pm.Valid())
		})
	}
}

func TestPaymentMethod_Masked(t *testing.T) {
	card := PaymentMethod{Type: PaymentCard, CardNumber: "4111-1111-1111-4242", HolderName: "Asha"}.Masked()
	assert.Equal(t, "**** **** **** 4242", card.CardNumber)
	assert.Equal(t, "Asha", card.HolderName)

	upi := PaymentMethod{Type: PaymentUPI, UPIID: "asha@okbank"}.Masked()
	assert.Equal(t, "****@okbank", upi.UPIID)
}

func TestCoupon(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	c := Coupon{Code: "SEAFOOD50", MinPurchase: decimal.NewFromInt(300), ExpiresAt: &past}

	assert.Equal(t, "SEAFOOD50", NormalizeCouponCode("  seafood50 "))
	assert.True(t, c.IsExpired(now))
	assert.False(t, Coupon{}.IsExpired(now))
	assert.True(t, c.Eligible(decimal.NewFromInt(300)))
	assert.False(t, c.Eligible(decimal.RequireFromString("299.99")))
}

func TestUserLocation_HasAddress(t *testing.T) {
	var nilLoc *UserLocation
	assert.False(t, nilLoc.HasAddress())
	assert.False(t, (&UserLocation{Address: "12 Beach Road"}).HasAddress())
	assert.True(t, (&UserLocation{Address: "12 Beach Road", PostalCode: "600041"}).HasAddress())
}
