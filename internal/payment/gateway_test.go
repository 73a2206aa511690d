package payment

import (
	"context"
	"testing"

	"github.com/fjod/go_cart/seafood-cart/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStatus struct {
	st Status
	rf Refusal
}

func (m *mockStatus) GetStatus() (Status, Refusal) {
	return m.st, m.rf
}

func TestCalcStatus(t *testing.T) {
	tests := []struct {
		name    string
		roll    int
		status  Status
		refusal Refusal
	}{
		{name: "low roll succeeds", roll: 10, status: StatusSuccess, refusal: RefusalUnknown},
		{name: "last success", roll: 94, status: StatusSuccess, refusal: RefusalUnknown},
		{name: "unknown failure", roll: 95, status: StatusFailed, refusal: RefusalUnknown},
		{name: "insufficient funds", roll: 96, status: StatusFailed, refusal: RefusalInsufficientFunds},
		{name: "fraud", roll: 98, status: StatusFailed, refusal: RefusalSuspectedFraud},
		{name: "issuer unavailable", roll: 100, status: StatusFailed, refusal: RefusalIssuerUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, rf := calcStatus(tt.roll)
			assert.Equal(t, tt.status, st)
			assert.Equal(t, tt.refusal, rf)
		})
	}
}

func TestSimulatedGateway_Charge(t *testing.T) {
	ctx := context.Background()
	card := domain.PaymentMethod{Type: domain.PaymentCard, CardNumber: "4111 1111 1111 1111"}

	t.Run("declined card", func(t *testing.T) {
		g := NewSimulatedGateway(&mockStatus{st: StatusFailed, rf: RefusalCardExpired})
		ch, err := g.Charge(ctx, "ORD-1", decimal.NewFromInt(500), card)
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, ch.Status)
		assert.Equal(t, "card expired", ch.Refusal.String())
		assert.Contains(t, ch.TransactionID, "TXN-ORD-1-")
	})

	t.Run("cash on delivery is never declined", func(t *testing.T) {
		g := NewSimulatedGateway(&mockStatus{st: StatusFailed})
		ch, err := g.Charge(ctx, "ORD-2", decimal.NewFromInt(500), domain.PaymentMethod{Type: domain.PaymentCOD})
		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, ch.Status)
	})

	t.Run("invalid details", func(t *testing.T) {
		g := NewSimulatedGateway(&mockStatus{st: StatusSuccess})
		_, err := g.Charge(ctx, "ORD-3", decimal.NewFromInt(500), domain.PaymentMethod{Type: domain.PaymentUPI, UPIID: "nohandle"})
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		g := NewSimulatedGateway(nil)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := g.Charge(cctx, "ORD-4", decimal.NewFromInt(1), card)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
