package orders

import (
	"context"
	"math/rand"
	"time"

	"github.com/fjod/go_cart/seafood-cart/internal/domain"
)

const (
	DefaultSimulatedDelay       = 1500 * time.Millisecond
	DefaultSimulatedFailureRate = 0.1
)

// SimulatedSubmitter accepts orders after a fixed delay and rejects a share of
// them as payment failures.
type SimulatedSubmitter struct {
	delay       time.Duration
	failureRate float64
	roll        func() float64
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
}

func NewSimulatedSubmitter(delay time.Duration, failureRate float64) *SimulatedSubmitter {
	return &SimulatedSubmitter{
		delay:       delay,
		failureRate: failureRate,
		roll:        rand.Float64,
		sleep:       sleepContext,
		now:         time.Now,
	}
}

func (s *SimulatedSubmitter) Submit(ctx context.Context, order *domain.Order, pm domain.PaymentMethod) (*Confirmation, error) {
	if err := validate(order, pm); err != nil {
		return nil, err
	}
	if err := s.sleep(ctx, s.delay); err != nil {
		return nil, err
	}
	if s.roll() < s.failureRate {
		return nil, &SubmitError{Kind: ErrPaymentFailed, Message: "payment was declined, please try again"}
	}
	return &Confirmation{
		OrderID:  order.ID,
		Status:   domain.OrderStatusConfirmed,
		PlacedAt: s.now(),
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
