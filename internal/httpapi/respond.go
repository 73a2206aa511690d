package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/seafood-cart/internal/cart"
	"github.com/fjod/go_cart/seafood-cart/internal/checkout"
	"github.com/fjod/go_cart/seafood-cart/internal/orders"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Details string   `json:"details,omitempty"`
	Items   []string `json:"items,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError converts cart, checkout and order errors to HTTP responses.
func handleError(w http.ResponseWriter, err error) {
	var stockErr *checkout.StockError
	if errors.As(err, &stockErr) {
		respondJSON(w, http.StatusConflict, ErrorResponse{
			Error: err.Error(),
			Code:  "insufficient_stock",
			Items: stockErr.Items,
		})
		return
	}

	var submitErr *orders.SubmitError
	if errors.As(err, &submitErr) {
		status, code := http.StatusUnprocessableEntity, "order_rejected"
		switch {
		case errors.Is(err, orders.ErrPaymentFailed):
			status, code = http.StatusPaymentRequired, "payment_failed"
		case errors.Is(err, orders.ErrInsufficientStock):
			status, code = http.StatusConflict, "insufficient_stock"
		}
		respondJSON(w, status, ErrorResponse{
			Error:   submitErr.Kind.Error(),
			Code:    code,
			Details: submitErr.Message,
			Items:   submitErr.Items,
		})
		return
	}

	var status int
	var code string

	switch {
	case errors.Is(err, cart.ErrInvalidProduct):
		status, code = http.StatusBadRequest, "invalid_product"
	case errors.Is(err, cart.ErrItemNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, cart.ErrInsufficientStock):
		status, code = http.StatusConflict, "insufficient_stock"
	case errors.Is(err, cart.ErrInvalidCoupon):
		status, code = http.StatusBadRequest, "invalid_coupon"
	case errors.Is(err, cart.ErrCouponExpired):
		status, code = http.StatusBadRequest, "coupon_expired"
	case errors.Is(err, cart.ErrCouponMinimum):
		status, code = http.StatusUnprocessableEntity, "coupon_minimum_not_met"
	case errors.Is(err, checkout.ErrEmptyCart):
		status, code = http.StatusUnprocessableEntity, "empty_cart"
	case errors.Is(err, checkout.ErrMissingAddress):
		status, code = http.StatusUnprocessableEntity, "missing_address"
	case errors.Is(err, checkout.ErrMissingSlot):
		status, code = http.StatusUnprocessableEntity, "missing_slot"
	case errors.Is(err, checkout.ErrBelowMinimum):
		status, code = http.StatusUnprocessableEntity, "below_minimum"
	case errors.Is(err, checkout.ErrDeliveryUnavailable):
		status, code = http.StatusUnprocessableEntity, "delivery_unavailable"
	case errors.Is(err, checkout.ErrMissingPayment):
		status, code = http.StatusUnprocessableEntity, "missing_payment"
	case errors.Is(err, checkout.ErrInProgress):
		status, code = http.StatusConflict, "checkout_in_progress"
	case errors.Is(err, orders.ErrOrderNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, orders.ErrUnavailable):
		status, code = http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "timeout"
	default:
		zap.L().Error("unhandled request error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondError(w, status, code, err.Error())
}
