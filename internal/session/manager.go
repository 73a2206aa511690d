package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/go_cart/seafood-cart/internal/cart"
	"github.com/fjod/go_cart/seafood-cart/internal/checkout"
	"github.com/fjod/go_cart/seafood-cart/internal/orders"
	"github.com/fjod/go_cart/seafood-cart/internal/persistence"
	"github.com/fjod/go_cart/seafood-cart/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultWatchInterval = time.Minute
	DefaultIdleTTL       = 30 * time.Minute

	loadTimeout = 10 * time.Second
)

// Session is one shopper's cart and checkout.
type Session struct {
	ID       string
	Cart     *cart.Store
	Checkout *checkout.Orchestrator

	stopWatch context.CancelFunc
	lastUsed  atomic.Int64 // unix nanos
}

func (s *Session) touch(now time.Time) {
	s.lastUsed.Store(now.UnixNano())
}

type Config struct {
	Storage       storage.Storage
	Submitter     orders.Submitter
	Store         cart.Config // Persister and Logger are set per session
	WatchInterval time.Duration
	// IdleTTL is how long an unused session stays in memory. Its state
	// remains in storage and is reloaded on the next request.
	IdleTTL time.Duration
	Logger  *zap.Logger
	Now     func() time.Time
}

// Manager keeps loaded sessions in memory and loads each one at most once
// at a time.
type Manager struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	sfg      singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
}

func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.WatchInterval <= 0 {
		cfg.WatchInterval = DefaultWatchInterval
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:      cfg,
		logger:   cfg.Logger,
		sessions: make(map[string]*Session),
		ctx:      ctx,
		cancel:   cancel,
	}
	go m.sweepLoop()
	return m
}

// Get returns the session, loading it from storage on first use. A caller
// whose ctx ends stops waiting but does not cancel a load other callers share.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if s, ok := m.lookup(id); ok {
		s.touch(m.cfg.Now())
		return s, nil
	}

	ch := m.sfg.DoChan(id, func() (interface{}, error) {
		if s, ok := m.lookup(id); ok {
			return s, nil
		}

		logger := m.logger.With(zap.String("session_id", id))
		storeCfg := m.cfg.Store
		storeCfg.Persister = persistence.NewAdapter(m.cfg.Storage, id, logger)
		storeCfg.Logger = logger

		// Callers share this load, so it must not die with the first one's context.
		loadCtx, cancel := context.WithTimeout(m.ctx, loadTimeout)
		defer cancel()

		store := cart.NewStore(storeCfg)
		if err := store.Load(loadCtx); err != nil {
			return nil, fmt.Errorf("load session %s: %w", id, err)
		}

		watchCtx, stop := context.WithCancel(m.ctx)
		go store.WatchExpiry(watchCtx, m.cfg.WatchInterval)

		s := &Session{
			ID:        id,
			Cart:      store,
			Checkout:  checkout.NewOrchestrator(store, m.cfg.Submitter, id, logger),
			stopWatch: stop,
		}
		s.touch(m.cfg.Now())

		m.mu.Lock()
		m.sessions[id] = s
		m.mu.Unlock()

		logger.Debug("session loaded", zap.Int("items", store.ItemCount()))
		return s, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		s := res.Val.(*Session)
		s.touch(m.cfg.Now())
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Evict drops the in-memory session so the next Get reloads it from storage.
func (m *Manager) Evict(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.stopWatch()
		m.logger.Debug("session evicted", zap.String("session_id", id))
	}
	return ok
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(m.cfg.WatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep(m.cfg.Now())
		case <-m.ctx.Done():
			return
		}
	}
}

// sweep evicts sessions unused for longer than IdleTTL. A session with a
// checkout in flight stays until the checkout finishes.
func (m *Manager) sweep(now time.Time) int {
	cutoff := now.Add(-m.cfg.IdleTTL).UnixNano()

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.lastUsed.Load() > cutoff || s.Checkout.InProgress() {
			continue
		}
		delete(m.sessions, id)
		idle = append(idle, s)
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.stopWatch()
	}
	if len(idle) > 0 {
		m.logger.Debug("idle sessions evicted", zap.Int("count", len(idle)), zap.Int("remaining", m.Len()))
	}
	return len(idle)
}

// Close stops the sweeper and every expiry watcher.
func (m *Manager) Close() {
	m.cancel()
	m.mu.Lock()
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
}

func (m *Manager) lookup(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}
