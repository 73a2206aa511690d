package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/seafood-cart/internal/domain"
	"github.com/fjod/go_cart/seafood-cart/internal/inventory"
	"github.com/fjod/go_cart/seafood-cart/internal/payment"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Reserver holds stock for an order until it is confirmed or released.
type Reserver interface {
	Reserve(orderID string, items []inventory.ReservationItem) (*inventory.Reservation, error)
	Confirm(reservationID string) error
	Release(reservationID string) error
}

type Repository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	ListOrdersBySession(ctx context.Context, sessionID string) ([]*domain.Order, error)
}

type Publisher interface {
	PublishOrderPlaced(ctx context.Context, order *domain.Order) error
}

// Service places orders by reserving stock, charging payment, storing the
// order and announcing it. Calls run behind a circuit breaker that only counts
// infrastructure failures.
type Service struct {
	inventory Reserver
	payments  payment.Gateway
	repo      Repository
	publisher Publisher
	breaker   *gobreaker.CircuitBreaker[*Confirmation]
	logger    *zap.Logger
	now       func() time.Time
}

type BreakerSettings struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

func NewService(inv Reserver, pay payment.Gateway, repo Repository, pub Publisher, bs BreakerSettings, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		inventory: inv,
		payments:  pay,
		repo:      repo,
		publisher: pub,
		logger:    logger,
		now:       time.Now,
	}
	s.breaker = gobreaker.NewCircuitBreaker[*Confirmation](gobreaker.Settings{
		Name:        "order-submission",
		MaxRequests: bs.MaxRequests,
		Interval:    bs.Interval,
		Timeout:     bs.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bs.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			var se *SubmitError
			return err == nil || errors.As(err, &se) || errors.Is(err, context.Canceled)
		},
	})
	return s
}

func (s *Service) Submit(ctx context.Context, order *domain.Order, pm domain.PaymentMethod) (*Confirmation, error) {
	if err := validate(order, pm); err != nil {
		return nil, err
	}

	conf, err := s.breaker.Execute(func() (*Confirmation, error) {
		return s.place(ctx, order, pm)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return conf, err
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	return s.repo.GetOrderByID(ctx, id)
}

func (s *Service) ListBySession(ctx context.Context, sessionID string) ([]*domain.Order, error) {
	return s.repo.ListOrdersBySession(ctx, sessionID)
}

func (s *Service) place(ctx context.Context, order *domain.Order, pm domain.PaymentMethod) (*Confirmation, error) {
	reservation, err := s.inventory.Reserve(order.ID, reservationItems(order.Items))
	if err != nil {
		if errors.Is(err, inventory.ErrInsufficientStock) {
			return nil, &SubmitError{Kind: ErrInsufficientStock, Message: err.Error()}
		}
		return nil, fmt.Errorf("reserve inventory: %w", err)
	}

	charge, err := s.payments.Charge(ctx, order.ID, order.Total, pm)
	if err != nil {
		s.release(reservation.ID)
		return nil, fmt.Errorf("charge payment: %w", err)
	}
	if charge.Status != payment.StatusSuccess {
		s.release(reservation.ID)
		return nil, &SubmitError{Kind: ErrPaymentFailed, Message: charge.Refusal.String()}
	}

	order.Status = domain.OrderStatusConfirmed
	order.Payment = order.Payment.Masked()
	if order.PlacedAt.IsZero() {
		order.PlacedAt = s.now()
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		s.release(reservation.ID)
		if errRefund := s.payments.Refund(ctx, charge.TransactionID); errRefund != nil {
			s.logger.Error("refund failed", zap.String("transaction_id", charge.TransactionID), zap.Error(errRefund))
		}
		if errors.Is(err, ErrDuplicateOrder) {
			return nil, &SubmitError{Kind: ErrValidation, Message: err.Error()}
		}
		return nil, fmt.Errorf("store order: %w", err)
	}

	if err := s.inventory.Confirm(reservation.ID); err != nil {
		s.logger.Error("failed to confirm reservation",
			zap.String("order_id", order.ID), zap.String("reservation_id", reservation.ID), zap.Error(err))
	}

	if s.publisher != nil {
		if err := s.publisher.PublishOrderPlaced(ctx, order); err != nil {
			s.logger.Error("failed to publish order placed event", zap.String("order_id", order.ID), zap.Error(err))
		}
	}

	s.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("session_id", order.SessionID),
		zap.String("total", order.Total.StringFixed(2)))

	return &Confirmation{
		OrderID:       order.ID,
		Status:        order.Status,
		TransactionID: charge.TransactionID,
		PlacedAt:      order.PlacedAt,
	}, nil
}

func (s *Service) release(reservationID string) {
	if err := s.inventory.Release(reservationID); err != nil {
		s.logger.Error("failed to release reservation", zap.String("reservation_id", reservationID), zap.Error(err))
	}
}

// reservationItems sums quantities per stock key.
func reservationItems(items []domain.LineItem) []inventory.ReservationItem {
	idx := make(map[string]int)
	var out []inventory.ReservationItem
	for _, item := range items {
		key := item.StockKey()
		if i, ok := idx[key]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		idx[key] = len(out)
		out = append(out, inventory.ReservationItem{Key: key, Quantity: item.Quantity})
	}
	return out
}
