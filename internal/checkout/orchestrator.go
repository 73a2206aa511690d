package checkout

import (
	"context"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/seafood-cart/internal/cart"
	"github.com/fjod/go_cart/seafood-cart/internal/domain"
	"github.com/fjod/go_cart/seafood-cart/internal/orders"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MinimumOrder is the smallest subtotal accepted at checkout.
var MinimumOrder = decimal.NewFromInt(100)

// Cart is the part of the cart store checkout needs.
type Cart interface {
	State() cart.State
	ValidateStock(ctx context.Context, itemID string, quantity int) bool
	RemoveOrdered(ctx context.Context, ordered []domain.LineItem, used *domain.Coupon)
}

type Orchestrator struct {
	cart      Cart
	submitter orders.Submitter
	sessionID string
	logger    *zap.Logger
	now       func() time.Time
	newID     func(time.Time) string

	mu       sync.Mutex
	inFlight bool
	lastErr  error
}

func NewOrchestrator(c Cart, submitter orders.Submitter, sessionID string, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cart:      c,
		submitter: submitter,
		sessionID: sessionID,
		logger:    logger.With(zap.String("session_id", sessionID)),
		now:       time.Now,
		newID:     NewOrderID,
	}
}

// Checkout validates the cart, submits the order and removes the ordered
// items from the cart on success. On failure the cart is left as it was and the error is kept until
// the next attempt or DismissError.
func (o *Orchestrator) Checkout(ctx context.Context, pm *domain.PaymentMethod) (string, error) {
	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return "", ErrInProgress
	}
	o.inFlight = true
	o.lastErr = nil
	o.mu.Unlock()

	id, err := o.checkout(ctx, pm)

	o.mu.Lock()
	o.inFlight = false
	o.lastErr = err
	o.mu.Unlock()
	return id, err
}

func (o *Orchestrator) checkout(ctx context.Context, pm *domain.PaymentMethod) (string, error) {
	st := o.cart.State()

	if err := o.validate(ctx, st, pm); err != nil {
		o.logger.Info("checkout rejected", zap.Error(err))
		return "", err
	}

	now := o.now()
	order := &domain.Order{
		ID:          o.newID(now),
		SessionID:   o.sessionID,
		Items:       st.Items,
		Address:     *st.Location,
		Slot:        *st.Slot,
		Payment:     pm.Masked(),
		Subtotal:    st.Summary.Subtotal,
		DeliveryFee: st.Summary.DeliveryFee,
		Discount:    st.Summary.Discount,
		Tax:         st.Summary.Tax,
		Total:       st.Summary.Total,
		Coupon:      st.Coupon,
		Status:      domain.OrderStatusPlaced,
		PlacedAt:    now,
	}

	conf, err := o.submitter.Submit(ctx, order, *pm)
	if err != nil {
		o.logger.Warn("order submission failed", zap.String("order_id", order.ID), zap.Error(err))
		return "", err
	}

	o.cart.RemoveOrdered(ctx, order.Items, order.Coupon)

	o.logger.Info("checkout completed",
		zap.String("order_id", conf.OrderID),
		zap.String("status", conf.Status.String()),
		zap.String("total", order.Total.StringFixed(2)))
	return conf.OrderID, nil
}

func (o *Orchestrator) validate(ctx context.Context, st cart.State, pm *domain.PaymentMethod) error {
	if len(st.Items) == 0 {
		return ErrEmptyCart
	}
	if !st.Location.HasAddress() {
		return ErrMissingAddress
	}
	if st.Slot == nil || st.Slot.ID == "" {
		return ErrMissingSlot
	}
	if st.Summary.Subtotal.LessThan(MinimumOrder) {
		return ErrBelowMinimum
	}

	var short []string
	for _, item := range st.Items {
		if !o.cart.ValidateStock(ctx, item.ID, item.Quantity) {
			short = append(short, item.Name)
		}
	}
	if len(short) > 0 {
		return &StockError{Items: short}
	}

	if !st.DeliveryAvailable {
		return ErrDeliveryUnavailable
	}
	if pm == nil || !pm.Valid() {
		return ErrMissingPayment
	}
	return nil
}

// LastError returns the error of the last checkout attempt, if any.
func (o *Orchestrator) LastError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

func (o *Orchestrator) DismissError() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastErr = nil
}

func (o *Orchestrator) InProgress() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight
}

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewOrderID returns ORD-<base36 millis>-<6 random characters>.
func NewOrderID(now time.Time) string {
	var b strings.Builder
	b.WriteString("ORD-")
	b.WriteString(strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)))
	b.WriteByte('-')
	for i := 0; i < 6; i++ {
		b.WriteByte(idAlphabet[rand.Intn(len(idAlphabet))])
	}
	return b.String()
}
