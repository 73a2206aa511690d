package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/seafood-cart/internal/cart"
	"github.com/fjod/go_cart/seafood-cart/internal/domain"
	"github.com/fjod/go_cart/seafood-cart/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Sessions resolves a session id to the shopper's cart and checkout.
type Sessions interface {
	Get(ctx context.Context, id string) (*session.Session, error)
}

type CartHandler struct {
	sessions Sessions
	timeout  time.Duration
	logger   *zap.Logger
}

func NewCartHandler(sessions Sessions, timeout time.Duration, logger *zap.Logger) *CartHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartHandler{
		sessions: sessions,
		timeout:  timeout,
		logger:   logger,
	}
}

type ProductDTO struct {
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	Image     string            `json:"image,omitempty"`
	Price     decimal.Decimal   `json:"price"`
	Nutrition *domain.Nutrition `json:"nutrition,omitempty"`
	Quantity  int               `json:"quantity"`
}

func (p ProductDTO) product() domain.Product {
	return domain.Product{
		Name:      p.Name,
		Type:      p.Type,
		Image:     p.Image,
		Price:     p.Price,
		Nutrition: p.Nutrition,
	}
}

type BulkAddRequestDTO struct {
	Items []ProductDTO `json:"items"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type NoteRequestDTO struct {
	Note string `json:"note"`
}

type GiftWrapRequestDTO struct {
	GiftWrap bool   `json:"giftWrap"`
	Message  string `json:"message"`
}

type CouponRequestDTO struct {
	Code string `json:"code"`
}

type LocationRequestDTO struct {
	Address     string              `json:"address"`
	PostalCode  string              `json:"postalCode"`
	Coordinates *domain.Coordinates `json:"coordinates,omitempty"`
}

type CartResponseDTO struct {
	SessionID      string               `json:"sessionId"`
	Items          []domain.LineItem    `json:"items"`
	SavedForLater  []domain.SavedItem   `json:"savedForLater"`
	Summary        domain.CartSummary   `json:"summary"`
	Coupon         *domain.Coupon       `json:"coupon,omitempty"`
	Location       *domain.UserLocation `json:"location,omitempty"`
	Slot           *domain.DeliverySlot `json:"slot,omitempty"`
	ExpiresAt      *time.Time           `json:"expiresAt,omitempty"`
	Error          string               `json:"error,omitempty"`
	CheckoutError  string               `json:"checkoutError,omitempty"`
	CheckoutActive bool                 `json:"checkoutInProgress,omitempty"`
}

func (h *CartHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, context.Context, context.CancelFunc, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)

	id := sessionIDFromContext(r.Context())
	if id == "" {
		cancel()
		respondError(w, http.StatusBadRequest, "missing_session", "missing session id")
		return nil, nil, nil, false
	}

	s, err := h.sessions.Get(ctx, id)
	if err != nil {
		cancel()
		h.logger.Error("failed to load session", zap.String("session_id", id), zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "session_unavailable", "could not load cart")
		return nil, nil, nil, false
	}
	return s, ctx, cancel, true
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func cartResponse(s *session.Session) CartResponseDTO {
	st := s.Cart.State()
	resp := CartResponseDTO{
		SessionID:      s.ID,
		Items:          st.Items,
		SavedForLater:  st.Saved,
		Summary:        st.Summary,
		Coupon:         st.Coupon,
		Location:       st.Location,
		Slot:           st.Slot,
		ExpiresAt:      st.ExpiresAt,
		Error:          s.Cart.TransientError(),
		CheckoutActive: s.Checkout.InProgress(),
	}
	if err := s.Checkout.LastError(); err != nil {
		resp.CheckoutError = err.Error()
	}
	if resp.Items == nil {
		resp.Items = []domain.LineItem{}
	}
	if resp.SavedForLater == nil {
		resp.SavedForLater = []domain.SavedItem{}
	}
	return resp
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	s, _, cancel, ok := h.session(w, r)
	if !ok {
		return
	}
	defer cancel()

	respondJSON(w, http.StatusOK, cartResponse(s))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req ProductDTO
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "invalid_product", "name is required")
		return
	}

	s, ctx, cancel, ok := h.session(w, r)
	if !ok {
		return
	}
	defer cancel()

	if err := s.Cart.AddToCart(ctx, req.product(), req.Quantity); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, cartResponse(s))
}

// POST /api/v1/cart/items/bulk
func (h *CartHandler) AddBulk(w http.ResponseWriter, r *http.Request) {
	var req BulkAddRequestDTO
	if !decode(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "items must not be empty")
		return
	}

	s, ctx, cancel, ok := h.session(w, r)
	if !ok {
		return
	}
	defer cancel()

	batch := make([]cart.BulkItem, len(req.Items))
	for i, item := range req.Items {
		batch[i] = cart.BulkItem{Product: item.product(), Quantity: item.Quantity}
	}
	if err := s.Cart.AddBulkToCart(ctx, batch); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, cartResponse(s))
}

// PUT /api/v1/cart/items/{id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequestDTO
	if !decode(w, r, &req) {
		return
	}

	s, ctx, cancel, ok := h.session(w, r)
	if !ok {
		return
	}
	defer cancel()

	if err := s.Cart.UpdateQuantity(ctx, chi.URLParam(r, "id"), req.Quantity); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(s))
}

// DELETE /api/v1/cart/items/{id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s, ctx, cancel, ok := h.session(w, r)
	if !ok {
		return
	}
	defer cancel()

	s.Cart.RemoveFromCart(ctx, chi.URLParam(r, "id"))
	respondJSON(w, http.StatusOK, cartResponse(s))
}

// PATCH /api/v1/cart/items/{id}/note
func (h *CartHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequestDTO
	if !decode(w, r, &req) {
		return
	}

	s, ctx, cancel, ok := h.session(w, r)
	if !ok {
		return
	}
	defer cancel()

	s.Cart.UpdateNote(ctx, chi.URLParam(r, "id"), req.Note)
	respondJSON(w, http.StatusOK, cartResponse(s))
}

// PATCH /api/v1/cart/items/{id}/gift-wrap
func (h *CartHandler) ToggleGiftWrap(w http.ResponseWriter, r *http.Request) {
	var req GiftWrapRequestDTO
	if !decode(w, r, &req) {
		return
	}

	s, ctx, cancel, ok := h.session(w, r)
	if !ok {
		return
	}
	defer cancel()

	s.Cart.ToggleGiftWrap(ctx, chi.URLParam(r, "id"), req.GiftWrap, req.Message)
	respondJSON(w, http.StatusOK, cartResponse(s))
}

// POST /api/v1/cart/items/{id}/save
func (h *CartHandler) SaveForLater(w http.ResponseWriter, r *http.Request) {
	s, ctx, cancel, ok := h.session(w, r)
	if !ok {
		return
	}
	defer cancel()

	if err := s.Cart.SaveForLater(ctx, chi.URLParam(r, "id")); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(s))
}

// POST /api/v1/cart/saved/{id}/move
func (h *CartHandler) MoveToCart(w http.ResponseWriter, r *http.Request) {
	s, ctx, cancel, ok := h.session(w, r)
	if !ok {
		return
	}
	defer cancel()

	if err := s.Cart.MoveToCart(ctx, chi.URLParam(r, "id")); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(s))
}

// DELETE /api/v1/cart/saved/{id}
func (h *CartHandler) RemoveSaved(w http.ResponseWriter, r *http.Request) {
	s, ctx, cancel, ok := h.session(w, r)
	if !ok {
		return
	}
	defer cancel()

	s.Cart.RemoveFromSaved(ctx, chi.URLParam(r, "id"))
	respondJSON(w, http.StatusOK, cartResponse(s))
}

// POST /api/v1/cart/coupon
func (h *CartHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req CouponRequestDTO
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		respondError(w, http.StatusBadRequest, "invalid_coupon", "code is required")
		return
	}

	s, ctx, cancel, ok := h.session(w, r)
	if !ok {
		return
	}
	defer cancel()

	if _, err := s.Cart.ApplyCoupon(ctx, req.Code); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(s))
}

// DELETE /api/v1/cart/coupon
func (h *CartHandler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	s, ctx, cancel, ok := h.session(w, r)
	if !ok {
		return
	}
	defer cancel()

	s.Cart.RemoveCoupon(ctx)
	respondJSON(w, http.StatusOK, cartResponse(s))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s, ctx, cancel, ok := h.session(w, r)
	if !ok {
		return
	}
	defer cancel()

	s.Cart.ClearCart(ctx)
	respondJSON(w, http.StatusOK, cartResponse(s))
}

// PUT /api/v1/cart/location
func (h *CartHandler) SetLocation(w http.ResponseWriter, r *http.Request) {
	var req LocationRequestDTO
	if !decode(w, r, &req) {
		return
	}

	s, ctx, cancel, ok := h.session(w, r)
	if !ok {
		return
	}
	defer cancel()

	loc := s.Cart.SetLocation(ctx, domain.UserLocation{
		Address:     strings.TrimSpace(req.Address),
		PostalCode:  strings.TrimSpace(req.PostalCode),
		Coordinates: req.Coordinates,
	})
	respondJSON(w, http.StatusOK, loc)
}

// PUT /api/v1/cart/slot
func (h *CartHandler) SelectSlot(w http.ResponseWriter, r *http.Request) {
	var req domain.DeliverySlot
	if !decode(w, r, &req) {
		return
	}
	if req.ID == "" {
		respondError(w, http.StatusBadRequest, "invalid_slot", "slot id is required")
		return
	}

	s, _, cancel, ok := h.session(w, r)
	if !ok {
		return
	}
	defer cancel()

	s.Cart.SelectSlot(req)
	respondJSON(w, http.StatusOK, cartResponse(s))
}

// GET /api/v1/cart/preferences
func (h *CartHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	s, _, cancel, ok := h.session(w, r)
	if !ok {
		return
	}
	defer cancel()

	respondJSON(w, http.StatusOK, s.Cart.Preferences())
}

// PUT /api/v1/cart/preferences replaces the stored preferences.
func (h *CartHandler) SetPreferences(w http.ResponseWriter, r *http.Request) {
	var req domain.Preferences
	if !decode(w, r, &req) {
		return
	}

	s, ctx, cancel, ok := h.session(w, r)
	if !ok {
		return
	}
	defer cancel()

	s.Cart.SetPreferences(ctx, req)
	respondJSON(w, http.StatusOK, s.Cart.Preferences())
}

// GET /api/v1/cart/low-stock
func (h *CartHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	s, ctx, cancel, ok := h.session(w, r)
	if !ok {
		return
	}
	defer cancel()

	items := s.Cart.LowStockItems(ctx)
	if items == nil {
		items = []domain.LineItem{}
	}
	respondJSON(w, http.StatusOK, items)
}
