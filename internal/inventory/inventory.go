package inventory

import (
	"context"
	"errors"
	"time"
)

// Unlimited is reported by a StockChecker for items without a stock limit.
const Unlimited = -1

// Common errors returned by the store
var (
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrReservationExpired  = errors.New("reservation has expired")
	ErrInvalidStatus       = errors.New("invalid reservation status for this operation")
)

// StockChecker reports how many units of an item are available, or Unlimited.
type StockChecker interface {
	Stock(ctx context.Context, key string) (int, error)
}

// UnlimitedChecker never limits quantities.
type UnlimitedChecker struct{}

func (UnlimitedChecker) Stock(context.Context, string) (int, error) {
	return Unlimited, nil
}

// ReservationStatus represents the state of a stock reservation
type ReservationStatus string

const (
	StatusReserved  ReservationStatus = "reserved"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusReleased  ReservationStatus = "released"
	StatusExpired   ReservationStatus = "expired"
)

// ReservationItem is one item held by a reservation.
type ReservationItem struct {
	Key      string
	Quantity int
}

// Reservation holds stock for an order while payment is taken.
type Reservation struct {
	ID        string
	OrderID   string
	Items     []ReservationItem
	Status    ReservationStatus
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (r *Reservation) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// StockInfo contains stock information for an item
type StockInfo struct {
	Key      string
	Total    int // Total stock in inventory
	Reserved int // Currently reserved (pending checkout)
}

// Available returns the available stock (total - reserved)
func (s StockInfo) Available() int {
	return s.Total - s.Reserved
}
