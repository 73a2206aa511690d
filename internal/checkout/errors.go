package checkout

import (
	"errors"
	"strings"

	"github.com/fjod/go_cart/seafood-cart/internal/cart"
)

var (
	ErrEmptyCart           = errors.New("cart is empty, nothing to checkout")
	ErrMissingAddress      = errors.New("delivery address and postal code are required")
	ErrMissingSlot         = errors.New("please select a delivery slot")
	ErrBelowMinimum        = errors.New("order subtotal is below the minimum order amount")
	ErrDeliveryUnavailable = errors.New("delivery is not available to this location")
	ErrMissingPayment      = errors.New("please provide a valid payment method")
	ErrInProgress          = errors.New("checkout already in progress")
)

// StockError names every cart item that failed the stock check.
type StockError struct {
	Items []string
}

func (e *StockError) Error() string {
	return "insufficient stock for: " + strings.Join(e.Items, ", ")
}

func (e *StockError) Unwrap() error {
	return cart.ErrInsufficientStock
}
