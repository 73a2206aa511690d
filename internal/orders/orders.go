package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_cart/seafood-cart/internal/domain"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrPaymentFailed     = errors.New("payment failed")
	ErrValidation        = errors.New("order validation failed")
	ErrUnavailable       = errors.New("order service temporarily unavailable")

	ErrOrderNotFound  = errors.New("order not found")
	ErrDuplicateOrder = errors.New("order with this id already exists")
)

// Submitter places an order with the backend. The order carries masked
// payment details only; pm is the method to charge.
type Submitter interface {
	Submit(ctx context.Context, order *domain.Order, pm domain.PaymentMethod) (*Confirmation, error)
}

type Confirmation struct {
	OrderID       string             `json:"orderId"`
	Status        domain.OrderStatus `json:"status"`
	TransactionID string             `json:"transactionId,omitempty"`
	PlacedAt      time.Time          `json:"placedAt"`
}

// SubmitError is a business rejection of an order. Kind is one of
// ErrInsufficientStock, ErrPaymentFailed or ErrValidation.
type SubmitError struct {
	Kind    error
	Message string
	Items   []string
}

func (e *SubmitError) Error() string {
	msg := e.Kind.Error()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if len(e.Items) > 0 {
		msg += " (" + strings.Join(e.Items, ", ") + ")"
	}
	return msg
}

func (e *SubmitError) Unwrap() error {
	return e.Kind
}

func validate(order *domain.Order, pm domain.PaymentMethod) error {
	if order == nil {
		return &SubmitError{Kind: ErrValidation, Message: "missing order"}
	}
	if !pm.Valid() {
		return &SubmitError{Kind: ErrValidation, Message: "invalid payment method"}
	}
	if order.ID == "" {
		return &SubmitError{Kind: ErrValidation, Message: "missing order id"}
	}
	if len(order.Items) == 0 {
		return &SubmitError{Kind: ErrValidation, Message: "order has no items"}
	}
	for _, item := range order.Items {
		if item.Quantity < 1 {
			return &SubmitError{Kind: ErrValidation, Message: fmt.Sprintf("invalid quantity %d", item.Quantity), Items: []string{item.Name}}
		}
	}
	if order.Total.IsNegative() {
		return &SubmitError{Kind: ErrValidation, Message: "negative total"}
	}
	return nil
}
