package delivery

import (
	"math"

	"github.com/fjod/go_cart/seafood-cart/internal/domain"
	"github.com/fjod/go_cart/seafood-cart/internal/geo"
	"github.com/shopspring/decimal"
)

// Unavailable is the distance-fee sentinel for destinations beyond the service radius.
const Unavailable = -1

// Policy maps a destination and an order subtotal to a delivery fee.
type Policy struct {
	Origin                domain.Coordinates
	MaxRadiusKm           float64
	FreeRadiusKm          float64
	PerKmRate             decimal.Decimal
	DefaultFee            decimal.Decimal
	FreeShippingThreshold decimal.Decimal
}

// DefaultPolicy is the shop's standard delivery policy.
func DefaultPolicy() Policy {
	return Policy{
		Origin:                domain.Coordinates{Lat: 12.9716, Lng: 80.0387},
		MaxRadiusKm:           15,
		FreeRadiusKm:          5,
		PerKmRate:             decimal.NewFromInt(10),
		DefaultFee:            decimal.NewFromInt(40),
		FreeShippingThreshold: decimal.NewFromInt(500),
	}
}

// Quote is the outcome of pricing a delivery.
type Quote struct {
	Fee               decimal.Decimal
	DistanceKm        float64
	Available         bool
	EstimatedDelivery string
}

// DistanceFee prices a delivery by distance alone. It returns Unavailable (-1)
// when the destination lies beyond the service radius.
func (p Policy) DistanceFee(to domain.Coordinates) (decimal.Decimal, float64) {
	d := geo.Distance(p.Origin, to)
	if math.IsNaN(d) || d > p.MaxRadiusKm {
		return decimal.NewFromInt(Unavailable), d
	}
	if d <= p.FreeRadiusKm {
		return decimal.Zero, d
	}
	return decimal.NewFromFloat(d - p.FreeRadiusKm).Mul(p.PerKmRate).Ceil(), d
}

// Quote prices delivery to loc for an order with the given subtotal. A subtotal
// above the free-shipping threshold always delivers for free. Destinations out of
// range are quoted at the default fee but flagged as not available.
func (p Policy) Quote(loc *domain.UserLocation, subtotal decimal.Decimal) Quote {
	q := Quote{Fee: p.DefaultFee, Available: true}
	if loc != nil && loc.Coordinates != nil {
		fee, d := p.DistanceFee(*loc.Coordinates)
		q.DistanceKm = d
		if fee.IsNegative() {
			q.Available = false
		} else {
			q.Fee = fee
		}
		q.EstimatedDelivery = estimate(d, q.Available)
	}
	if subtotal.GreaterThan(p.FreeShippingThreshold) {
		q.Fee = decimal.Zero
	}
	return q
}

func estimate(distanceKm float64, available bool) string {
	switch {
	case !available || math.IsNaN(distanceKm):
		return ""
	case distanceKm <= 5:
		return "30-45 min"
	case distanceKm <= 10:
		return "45-60 min"
	default:
		return "60-90 min"
	}
}
