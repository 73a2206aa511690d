package poller

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fjod/go_cart/seafood-cart/internal/orders"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const DefaultGroupID = "seafood-cart-sessions"

// Evicter drops a cached session so it is reloaded from storage.
type Evicter interface {
	Evict(sessionID string) bool
}

// Poller consumes order placed events and evicts the shopper's in-memory
// session, so instances that did not handle the checkout stop serving the
// pre-order cart.
type Poller struct {
	sessions Evicter
	reader   *kafka.Reader
	logger   *zap.Logger
}

func NewPoller(sessions Evicter, logger *zap.Logger, topic, groupID string, brokers ...string) *Poller {
	if topic == "" {
		topic = orders.DefaultOrderTopic
	}
	if groupID == "" {
		groupID = DefaultGroupID
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{sessions: sessions, reader: reader, logger: logger}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.readAndEvict(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.logger.Error("error closing kafka reader", zap.Error(err))
	}
}

func (p *Poller) readAndEvict(ctx context.Context) {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		p.logger.Error("error reading message", zap.Error(err))
		return
	}
	p.handleMessage(m)
}

func (p *Poller) handleMessage(m kafka.Message) {
	for _, h := range m.Headers {
		if h.Key == "event_type" && string(h.Value) != orders.EventTypeOrderPlaced {
			return
		}
	}

	var event orders.OrderPlacedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		p.logger.Warn("error parsing message", zap.Error(err), zap.Int64("offset", m.Offset))
		return
	}
	if event.SessionID == "" {
		p.logger.Warn("order placed event without session id", zap.String("order_id", event.OrderID))
		return
	}

	evicted := p.sessions.Evict(event.SessionID)
	p.logger.Debug("order placed event handled",
		zap.String("order_id", event.OrderID),
		zap.String("session_id", event.SessionID),
		zap.Bool("evicted", evicted))
}
