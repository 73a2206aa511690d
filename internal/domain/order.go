package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "PLACED"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusFailed    OrderStatus = "FAILED"
)

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

type PaymentType string

const (
	PaymentCard PaymentType = "card"
	PaymentUPI  PaymentType = "upi"
	PaymentCOD  PaymentType = "cod"
)

// PaymentMethod is what the shopper picked at checkout.
type PaymentMethod struct {
	Type       PaymentType `json:"type"`
	CardNumber string      `json:"cardNumber,omitempty"`
	HolderName string      `json:"holderName,omitempty"`
	UPIID      string      `json:"upiId,omitempty"`
}

// Valid reports whether the method carries the details its type needs.
func (p PaymentMethod) Valid() bool {
	switch p.Type {
	case PaymentCard:
		return len(digits(p.CardNumber)) >= 12
	case PaymentUPI:
		return strings.Contains(p.UPIID, "@")
	case PaymentCOD:
		return true
	default:
		return false
	}
}

// Masked strips everything but what is needed to recognise the method later.
func (p PaymentMethod) Masked() PaymentMethod {
	out := PaymentMethod{Type: p.Type, HolderName: p.HolderName}
	switch p.Type {
	case PaymentCard:
		d := digits(p.CardNumber)
		if len(d) > 4 {
			d = d[len(d)-4:]
		}
		out.CardNumber = "**** **** **** " + d
	case PaymentUPI:
		if at := strings.Index(p.UPIID, "@"); at >= 0 {
			out.UPIID = "****" + p.UPIID[at:]
		}
	}
	return out
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Order is the payload assembled at checkout and handed to order submission.
type Order struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"sessionId"`
	Items       []LineItem      `json:"items"`
	Address     UserLocation    `json:"address"`
	Slot        DeliverySlot    `json:"slot"`
	Payment     PaymentMethod   `json:"payment"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"deliveryFee"`
	Discount    decimal.Decimal `json:"discount"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
	Coupon      *Coupon         `json:"coupon,omitempty"`
	Status      OrderStatus     `json:"status"`
	PlacedAt    time.Time       `json:"placedAt"`
}
