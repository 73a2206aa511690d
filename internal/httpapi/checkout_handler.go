package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/fjod/go_cart/seafood-cart/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// OrderLister reads placed orders back. It is nil when orders are not
// persisted (simulated submitter).
type OrderLister interface {
	Get(ctx context.Context, id string) (*domain.Order, error)
	ListBySession(ctx context.Context, sessionID string) ([]*domain.Order, error)
}

type CheckoutHandler struct {
	carts   *CartHandler
	orders  OrderLister
	timeout time.Duration
	logger  *zap.Logger
}

func NewCheckoutHandler(carts *CartHandler, orders OrderLister, timeout time.Duration, logger *zap.Logger) *CheckoutHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutHandler{
		carts:   carts,
		orders:  orders,
		timeout: timeout,
		logger:  logger,
	}
}

type CheckoutRequestDTO struct {
	Payment *domain.PaymentMethod `json:"payment"`
}

type CheckoutResponseDTO struct {
	OrderID string `json:"orderId"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequestDTO
	if err := decodeOptional(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	s, ctx, cancel, ok := h.carts.session(w, r)
	if !ok {
		return
	}
	defer cancel()

	orderID, err := s.Checkout.Checkout(ctx, req.Payment)
	if err != nil {
		h.logger.Info("checkout failed", zap.String("session_id", s.ID), zap.Error(err))
		handleError(w, err)
		return
	}

	h.logger.Info("order placed", zap.String("session_id", s.ID), zap.String("order_id", orderID))
	respondJSON(w, http.StatusCreated, CheckoutResponseDTO{OrderID: orderID})
}

// DELETE /api/v1/checkout/error
func (h *CheckoutHandler) DismissError(w http.ResponseWriter, r *http.Request) {
	s, _, cancel, ok := h.carts.session(w, r)
	if !ok {
		return
	}
	defer cancel()

	s.Checkout.DismissError()
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/orders
func (h *CheckoutHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	if h.orders == nil {
		respondError(w, http.StatusNotImplemented, "not_implemented", "order history is not enabled")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, err := h.orders.ListBySession(ctx, sessionIDFromContext(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	if list == nil {
		list = []*domain.Order{}
	}
	respondJSON(w, http.StatusOK, list)
}

// GET /api/v1/orders/{id}
func (h *CheckoutHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	if h.orders == nil {
		respondError(w, http.StatusNotImplemented, "not_implemented", "order history is not enabled")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.orders.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err)
		return
	}
	// Orders are only visible to the session that placed them.
	if order.SessionID != sessionIDFromContext(r.Context()) {
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func decodeOptional(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
