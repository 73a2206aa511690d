package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Coordinates are a latitude/longitude pair in degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// UserLocation is where the order is delivered. DeliveryFee, DeliveryAvailable and
// EstimatedDelivery are derived by the cart and never taken from the user.
type UserLocation struct {
	Address           string          `json:"address"`
	Coordinates       *Coordinates    `json:"coordinates,omitempty"`
	PostalCode        string          `json:"postalCode"`
	DeliveryAvailable bool            `json:"deliveryAvailable"`
	EstimatedDelivery string          `json:"estimatedDelivery,omitempty"`
	DeliveryFee       decimal.Decimal `json:"deliveryFee"`
}

// HasAddress reports whether both a street address and a postal code are present.
func (l *UserLocation) HasAddress() bool {
	return l != nil && strings.TrimSpace(l.Address) != "" && strings.TrimSpace(l.PostalCode) != ""
}

// DeliverySlot is a delivery window picked at checkout.
type DeliverySlot struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Preferences are opaque user settings persisted next to the cart.
type Preferences map[string]string
