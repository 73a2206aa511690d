package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/go_cart/seafood-cart/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

const (
	DefaultOrderTopic    = "order.placed"
	EventTypeOrderPlaced = "order.placed"
)

// OrderPlacedEvent is the payload published after an order is stored.
type OrderPlacedEvent struct {
	OrderID   string          `json:"order_id"`
	SessionID string          `json:"session_id"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
	PlacedAt  time.Time       `json:"placed_at"`
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultOrderTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) PublishOrderPlaced(ctx context.Context, order *domain.Order) error {
	msg, err := orderPlacedMessage(order)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write order placed message: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func orderPlacedMessage(order *domain.Order) (kafka.Message, error) {
	count := 0
	for _, item := range order.Items {
		count += item.Quantity
	}
	payload, err := json.Marshal(OrderPlacedEvent{
		OrderID:   order.ID,
		SessionID: order.SessionID,
		Total:     order.Total,
		ItemCount: count,
		PlacedAt:  order.PlacedAt,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal order placed event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(order.SessionID), // session id keeps one shopper's events ordered
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeOrderPlaced)},
		},
	}, nil
}
