package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/go_cart/seafood-cart/internal/domain"
	"github.com/fjod/go_cart/seafood-cart/internal/orders"
	"github.com/fjod/go_cart/seafood-cart/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStorage struct {
	*storage.MemoryStorage
	gets atomic.Int64
}

func (c *countingStorage) Get(ctx context.Context, key string) (string, error) {
	c.gets.Add(1)
	return c.MemoryStorage.Get(ctx, key)
}

func setupManager(t *testing.T, st storage.Storage) *Manager {
	m := NewManager(Config{
		Storage:   st,
		Submitter: orders.NewSimulatedSubmitter(0, 0),
	})
	t.Cleanup(m.Close)
	return m
}

func TestManager_GetCachesSession(t *testing.T) {
	m := setupManager(t, storage.NewMemoryStorage())
	ctx := context.Background()

	first, err := m.Get(ctx, "sess-1")
	require.NoError(t, err)
	second, err := m.Get(ctx, "sess-1")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.NotNil(t, first.Checkout)
	assert.Equal(t, 1, m.Len())
}

func TestManager_ConcurrentGetLoadsOnce(t *testing.T) {
	st := &countingStorage{MemoryStorage: storage.NewMemoryStorage()}
	m := setupManager(t, st)

	var wg sync.WaitGroup
	results := make([]*Session, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := m.Get(context.Background(), "sess-hot")
			assert.NoError(t, err)
			results[i] = s
		}(i)
	}
	wg.Wait()

	for _, s := range results {
		assert.Same(t, results[0], s)
	}
	// one Load reads six keys
	assert.Equal(t, int64(6), st.gets.Load())
}

func TestManager_EvictReloadsFromStorage(t *testing.T) {
	backing := storage.NewMemoryStorage()
	m := setupManager(t, backing)
	ctx := context.Background()

	s, err := m.Get(ctx, "sess-2")
	require.NoError(t, err)
	require.NoError(t, s.Cart.AddToCart(ctx, domain.Product{Name: "Squid", Type: "rings", Price: decimal.NewFromInt(180)}, 2))

	assert.True(t, m.Evict("sess-2"))
	assert.False(t, m.Evict("sess-2"))
	assert.Equal(t, 0, m.Len())

	reloaded, err := m.Get(ctx, "sess-2")
	require.NoError(t, err)
	assert.NotSame(t, s, reloaded)
	assert.Equal(t, 2, reloaded.Cart.ItemCount())
}

func TestManager_SessionsAreIsolated(t *testing.T) {
	m := setupManager(t, storage.NewMemoryStorage())
	ctx := context.Background()

	a, err := m.Get(ctx, "a")
	require.NoError(t, err)
	b, err := m.Get(ctx, "b")
	require.NoError(t, err)

	require.NoError(t, a.Cart.AddToCart(ctx, domain.Product{Name: "Squid", Type: "rings", Price: decimal.NewFromInt(180)}, 1))
	assert.Equal(t, 1, a.Cart.ItemCount())
	assert.Equal(t, 0, b.Cart.ItemCount())
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setupClockedManager(t *testing.T, st storage.Storage, sub orders.Submitter) (*Manager, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	m := NewManager(Config{
		Storage:   st,
		Submitter: sub,
		IdleTTL:   30 * time.Minute,
		Now:       clock.Now,
	})
	t.Cleanup(m.Close)
	return m, clock
}

func TestManager_SweepEvictsIdleSessions(t *testing.T) {
	m, clock := setupClockedManager(t, storage.NewMemoryStorage(), orders.NewSimulatedSubmitter(0, 0))
	ctx := context.Background()

	idle, err := m.Get(ctx, "idle")
	require.NoError(t, err)
	require.NoError(t, idle.Cart.AddToCart(ctx, domain.Product{Name: "Squid", Type: "rings", Price: decimal.NewFromInt(180)}, 1))

	clock.Advance(20 * time.Minute)
	_, err = m.Get(ctx, "active")
	require.NoError(t, err)

	clock.Advance(15 * time.Minute)
	assert.Equal(t, 1, m.sweep(clock.Now()))
	assert.Equal(t, 1, m.Len())
	_, ok := m.lookup("idle")
	assert.False(t, ok)
	_, ok = m.lookup("active")
	assert.True(t, ok)

	reloaded, err := m.Get(ctx, "idle")
	require.NoError(t, err)
	assert.NotSame(t, idle, reloaded)
	assert.Equal(t, 1, reloaded.Cart.ItemCount())
}

func TestManager_SweepCountsEveryGetAsUse(t *testing.T) {
	m, clock := setupClockedManager(t, storage.NewMemoryStorage(), orders.NewSimulatedSubmitter(0, 0))
	ctx := context.Background()

	first, err := m.Get(ctx, "regular")
	require.NoError(t, err)

	clock.Advance(25 * time.Minute)
	_, err = m.Get(ctx, "regular")
	require.NoError(t, err)

	clock.Advance(25 * time.Minute)
	assert.Equal(t, 0, m.sweep(clock.Now()))

	again, err := m.Get(ctx, "regular")
	require.NoError(t, err)
	assert.Same(t, first, again)
}

type gatedSubmitter struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gatedSubmitter) Submit(_ context.Context, order *domain.Order, _ domain.PaymentMethod) (*orders.Confirmation, error) {
	g.entered <- struct{}{}
	<-g.release
	return &orders.Confirmation{OrderID: order.ID, Status: domain.OrderStatusConfirmed, PlacedAt: order.PlacedAt}, nil
}

func TestManager_SweepKeepsSessionWithCheckoutInFlight(t *testing.T) {
	sub := &gatedSubmitter{entered: make(chan struct{}), release: make(chan struct{})}
	m, clock := setupClockedManager(t, storage.NewMemoryStorage(), sub)
	ctx := context.Background()

	s, err := m.Get(ctx, "paying")
	require.NoError(t, err)
	require.NoError(t, s.Cart.AddToCart(ctx, domain.Product{Name: "Seer Fish", Type: "steaks", Price: decimal.NewFromInt(200)}, 1))
	s.Cart.SetLocation(ctx, domain.UserLocation{
		Address:     "12 Harbour Road",
		PostalCode:  "600001",
		Coordinates: &domain.Coordinates{Lat: 12.9716, Lng: 80.0387},
	})
	s.Cart.SelectSlot(domain.DeliverySlot{ID: "tomorrow-am", Label: "Tomorrow 7-9 AM"})

	done := make(chan error, 1)
	go func() {
		_, err := s.Checkout.Checkout(ctx, &domain.PaymentMethod{Type: domain.PaymentCOD})
		done <- err
	}()
	<-sub.entered

	clock.Advance(time.Hour)
	assert.Equal(t, 0, m.sweep(clock.Now()))
	assert.Equal(t, 1, m.Len())

	close(sub.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, m.sweep(clock.Now()))
	assert.Equal(t, 0, m.Len())
}

type gatedStorage struct {
	*storage.MemoryStorage
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStorage) Get(ctx context.Context, key string) (string, error) {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return g.MemoryStorage.Get(ctx, key)
}

func TestManager_CancelledCallerDoesNotAbortSharedLoad(t *testing.T) {
	st := &gatedStorage{
		MemoryStorage: storage.NewMemoryStorage(),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	m := setupManager(t, st)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := m.Get(firstCtx, "shared")
		firstErr <- err
	}()
	<-st.entered

	second := make(chan *Session, 1)
	go func() {
		s, err := m.Get(context.Background(), "shared")
		assert.NoError(t, err)
		second <- s
	}()

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(st.release)
	s := <-second
	require.NotNil(t, s)
	assert.Equal(t, "shared", s.ID)
	assert.Equal(t, 1, m.Len())
}
