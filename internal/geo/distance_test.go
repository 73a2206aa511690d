package geo

import (
	"math"
	"testing"

	"github.com/fjod/go_cart/seafood-cart/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestDistance_SamePoint(t *testing.T) {
	p := domain.Coordinates{Lat: 12.9716, Lng: 80.0387}
	assert.InDelta(t, 0.0, Distance(p, p), 1e-9)
}

func TestDistance_KnownPair(t *testing.T) {
	// Chennai Central to Chennai airport, roughly 14.6 km apart
	central := domain.Coordinates{Lat: 13.0827, Lng: 80.2707}
	airport := domain.Coordinates{Lat: 12.9941, Lng: 80.1709}

	d := Distance(central, airport)
	assert.InDelta(t, 14.5, d, 0.5)
}

func TestDistance_OneDegreeOfLatitude(t *testing.T) {
	a := domain.Coordinates{Lat: 0, Lng: 0}
	b := domain.Coordinates{Lat: 1, Lng: 0}
	assert.InDelta(t, EarthRadiusKm*math.Pi/180, Distance(a, b), 1e-6)
}

func TestDistance_Symmetric(t *testing.T) {
	a := domain.Coordinates{Lat: 12.9716, Lng: 80.0387}
	b := domain.Coordinates{Lat: 13.05, Lng: 80.21}
	assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-9)
}

func TestDistance_NaNPropagates(t *testing.T) {
	a := domain.Coordinates{Lat: math.NaN(), Lng: 0}
	assert.True(t, math.IsNaN(Distance(a, domain.Coordinates{})))
}
