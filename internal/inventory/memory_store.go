package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// ReservationTTL is how long a reservation is valid before auto-expiring
	ReservationTTL = 5 * time.Minute
	// CleanupInterval is how often the background cleanup runs
	CleanupInterval = 30 * time.Second
)

// MemoryStore tracks stock in memory. Items that were never stocked are unlimited.
type MemoryStore struct {
	mu           sync.RWMutex
	stocks       map[string]*StockInfo
	reservations map[string]*Reservation
	now          func() time.Time

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

// NewMemoryStore creates a store and starts the reservation cleanup loop.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		stocks:       make(map[string]*StockInfo),
		reservations: make(map[string]*Reservation),
		now:          time.Now,
		stopCleanup:  make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

func (s *MemoryStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.expireReservations()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) expireReservations() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, reservation := range s.reservations {
		if reservation.Status == StatusReserved && reservation.IsExpired(now) {
			reservation.Status = StatusExpired
			s.unreserve(reservation.Items)
		}
	}
}

// Stock implements StockChecker.
func (s *MemoryStore) Stock(_ context.Context, key string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stock, exists := s.stocks[key]
	if !exists {
		return Unlimited, nil
	}
	return stock.Available(), nil
}

// GetStock returns stock information for the tracked keys among those given.
func (s *MemoryStore) GetStock(keys []string) []StockInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]StockInfo, 0, len(keys))
	for _, k := range keys {
		if stock, exists := s.stocks[k]; exists {
			result = append(result, *stock)
		}
	}
	return result
}

// Reserve holds stock for every item or for none of them.
func (s *MemoryStore) Reserve(orderID string, items []ReservationItem) (*Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: validate all tracked items have sufficient stock
	for _, item := range items {
		stock, exists := s.stocks[item.Key]
		if exists && stock.Available() < item.Quantity {
			return nil, fmt.Errorf("%w: %s wants %d, %d available", ErrInsufficientStock, item.Key, item.Quantity, stock.Available())
		}
	}

	for _, item := range items {
		if stock, exists := s.stocks[item.Key]; exists {
			stock.Reserved += item.Quantity
		}
	}

	now := s.now()
	reservation := &Reservation{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		Items:     items,
		Status:    StatusReserved,
		CreatedAt: now,
		ExpiresAt: now.Add(ReservationTTL),
	}
	s.reservations[reservation.ID] = reservation

	return reservation, nil
}

// Confirm finalizes a reservation after successful payment
func (s *MemoryStore) Confirm(reservationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, exists := s.reservations[reservationID]
	if !exists {
		return ErrReservationNotFound
	}
	if reservation.Status != StatusReserved {
		return ErrInvalidStatus
	}
	if reservation.IsExpired(s.now()) {
		return ErrReservationExpired
	}

	for _, item := range reservation.Items {
		if stock, ok := s.stocks[item.Key]; ok {
			stock.Total -= item.Quantity
			stock.Reserved -= item.Quantity
		}
	}
	reservation.Status = StatusConfirmed

	return nil
}

// Release cancels a reservation on payment failure
func (s *MemoryStore) Release(reservationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, exists := s.reservations[reservationID]
	if !exists {
		return ErrReservationNotFound
	}
	if reservation.Status != StatusReserved {
		return ErrInvalidStatus
	}

	s.unreserve(reservation.Items)
	reservation.Status = StatusReleased

	return nil
}

func (s *MemoryStore) unreserve(items []ReservationItem) {
	for _, item := range items {
		if stock, ok := s.stocks[item.Key]; ok {
			stock.Reserved -= item.Quantity
		}
	}
}

// SetStock sets the stock level for an item, dropping any reserved count.
func (s *MemoryStore) SetStock(key string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stocks[key] = &StockInfo{
		Key:   key,
		Total: quantity,
	}
}

// Close stops the background cleanup and waits for it to finish
func (s *MemoryStore) Close() error {
	close(s.stopCleanup)
	s.wg.Wait()
	return nil
}
