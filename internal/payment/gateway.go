package payment

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/go_cart/seafood-cart/internal/domain"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Refusal is the known reason a charge was declined.
type Refusal int

const (
	RefusalUnknown Refusal = iota
	RefusalInsufficientFunds
	RefusalCardExpired
	RefusalSuspectedFraud
	RefusalLimitExceeded
	RefusalIssuerUnavailable
)

func (r Refusal) String() string {
	switch r {
	case RefusalInsufficientFunds:
		return "insufficient funds"
	case RefusalCardExpired:
		return "card expired"
	case RefusalSuspectedFraud:
		return "suspected fraud"
	case RefusalLimitExceeded:
		return "limit exceeded"
	case RefusalIssuerUnavailable:
		return "issuer unavailable"
	default:
		return "unknown reason"
	}
}

type Charge struct {
	Status        Status
	Refusal       Refusal
	TransactionID string
}

type Gateway interface {
	Charge(ctx context.Context, orderID string, amount decimal.Decimal, method domain.PaymentMethod) (Charge, error)
	Refund(ctx context.Context, transactionID string) error
}

// StatusSource decides the outcome of a charge.
type StatusSource interface {
	GetStatus() (Status, Refusal)
}

type RandomStatus struct{}

func (RandomStatus) GetStatus() (Status, Refusal) {
	return calcStatus(rand.Intn(101))
}

// calcStatus maps a roll in [0,100] to a charge outcome: below 95 succeeds,
// 96..100 fail with a known refusal and 95 fails for an unknown reason.
func calcStatus(roll int) (Status, Refusal) {
	if roll < 95 {
		return StatusSuccess, RefusalUnknown
	}
	reason := roll - 95
	if reason == 0 || reason > 5 {
		return StatusFailed, RefusalUnknown
	}
	return StatusFailed, Refusal(reason)
}

// SimulatedGateway stands in for a payment provider. Cash on delivery is never charged.
type SimulatedGateway struct {
	status StatusSource
	now    func() time.Time
}

func NewSimulatedGateway(s StatusSource) *SimulatedGateway {
	if s == nil {
		s = RandomStatus{}
	}
	return &SimulatedGateway{status: s, now: time.Now}
}

func (g *SimulatedGateway) Charge(ctx context.Context, orderID string, amount decimal.Decimal, method domain.PaymentMethod) (Charge, error) {
	if err := ctx.Err(); err != nil {
		return Charge{}, err
	}
	if !method.Valid() {
		return Charge{}, fmt.Errorf("invalid %q payment details for order %s", method.Type, orderID)
	}
	if amount.IsNegative() {
		return Charge{}, fmt.Errorf("negative charge amount %s for order %s", amount, orderID)
	}

	txID := fmt.Sprintf("TXN-%s-%d", orderID, g.now().UnixNano())
	if method.Type == domain.PaymentCOD {
		return Charge{Status: StatusSuccess, TransactionID: txID}, nil
	}

	st, refusal := g.status.GetStatus()
	return Charge{Status: st, Refusal: refusal, TransactionID: txID}, nil
}

// Refund is always successful for this implementation.
func (*SimulatedGateway) Refund(context.Context, string) error {
	return nil
}
