package delivery

import (
	"testing"

	"github.com/fjod/go_cart/seafood-cart/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func at(lat, lng float64) *domain.UserLocation {
	return &domain.UserLocation{
		Address:     "12 Harbour Road",
		PostalCode:  "600001",
		Coordinates: &domain.Coordinates{Lat: lat, Lng: lng},
	}
}

func TestQuote_NoCoordinates_DefaultFee(t *testing.T) {
	p := DefaultPolicy()

	q := p.Quote(&domain.UserLocation{Address: "somewhere"}, decimal.NewFromInt(100))
	assert.True(t, q.Fee.Equal(decimal.NewFromInt(40)))
	assert.True(t, q.Available)

	q = p.Quote(nil, decimal.NewFromInt(100))
	assert.True(t, q.Fee.Equal(decimal.NewFromInt(40)))
}

func TestQuote_AtShop_Free(t *testing.T) {
	p := DefaultPolicy()

	q := p.Quote(at(12.9716, 80.0387), decimal.NewFromInt(100))
	assert.True(t, q.Fee.IsZero())
	assert.True(t, q.Available)
	assert.InDelta(t, 0.0, q.DistanceKm, 1e-9)
}

func TestQuote_BeyondFreeRadius_PerKm(t *testing.T) {
	p := DefaultPolicy()
	// ~0.0719 degrees of latitude north of the shop is about 8 km
	q := p.Quote(at(12.9716+0.0719, 80.0387), decimal.NewFromInt(100))

	assert.True(t, q.Available)
	assert.InDelta(t, 8.0, q.DistanceKm, 0.05)
	want := decimal.NewFromFloat(q.DistanceKm - 5).Mul(decimal.NewFromInt(10)).Ceil()
	assert.True(t, q.Fee.Equal(want), "fee %s want %s", q.Fee, want)
	assert.True(t, q.Fee.Equal(decimal.NewFromInt(30)) || q.Fee.Equal(decimal.NewFromInt(31)))
}

func TestQuote_OutOfRange_FallsBackToDefaultButUnavailable(t *testing.T) {
	p := DefaultPolicy()

	q := p.Quote(at(13.5, 80.0387), decimal.NewFromInt(100))
	assert.False(t, q.Available)
	assert.True(t, q.Fee.Equal(decimal.NewFromInt(40)))
	assert.Empty(t, q.EstimatedDelivery)
}

func TestQuote_SubtotalOverThreshold_Free(t *testing.T) {
	p := DefaultPolicy()

	q := p.Quote(at(12.9716+0.0719, 80.0387), decimal.NewFromInt(501))
	assert.True(t, q.Fee.IsZero())

	q = p.Quote(nil, decimal.NewFromInt(501))
	assert.True(t, q.Fee.IsZero())
}

func TestQuote_SubtotalAtThreshold_NotFree(t *testing.T) {
	p := DefaultPolicy()

	q := p.Quote(nil, decimal.NewFromInt(500))
	assert.True(t, q.Fee.Equal(decimal.NewFromInt(40)))
}

func TestDistanceFee_Sentinel(t *testing.T) {
	p := DefaultPolicy()

	fee, d := p.DistanceFee(domain.Coordinates{Lat: 14, Lng: 80})
	assert.Greater(t, d, p.MaxRadiusKm)
	assert.True(t, fee.Equal(decimal.NewFromInt(Unavailable)))
}
