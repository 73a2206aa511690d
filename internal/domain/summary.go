package domain

import "github.com/shopspring/decimal"

// CartSummary is derived from cart state on every read.
type CartSummary struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	ItemCount   int             `json:"itemCount"`
	DeliveryFee decimal.Decimal `json:"deliveryFee"`
	Tax         decimal.Decimal `json:"tax"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
}
