// Package publisher emits checkout lifecycle events.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventOrderCreated      EventType = "order_created"
	EventPaymentConfirmed  EventType = "payment_confirmed"
	EventPaymentFailed     EventType = "payment_failed"
	EventCheckoutCancelled EventType = "checkout_cancelled"
)

type CheckoutEvent struct {
	Type            EventType       `json:"event_type"`
	OrderID         int64           `json:"order_id"`
	PaymentIntentID string          `json:"payment_intent_id,omitempty"`
	UserID          string          `json:"user_id,omitempty"`
	Total           decimal.Decimal `json:"total"`
	Reason          string          `json:"reason,omitempty"`
	OccurredAt      time.Time       `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event CheckoutEvent) error
	Close() error
}

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event CheckoutEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal checkout event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.OrderID, 10)), // order_id keeps per-order ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops events; used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, CheckoutEvent) error { return nil }

func (NopPublisher) Close() error { return nil }

// MemoryPublisher keeps events in order; useful for the dev API and tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []CheckoutEvent
}

func (m *MemoryPublisher) Publish(_ context.Context, event CheckoutEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MemoryPublisher) Close() error { return nil }

func (m *MemoryPublisher) Events() []CheckoutEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CheckoutEvent, len(m.events))
	copy(out, m.events)
	return out
}

func (m *MemoryPublisher) Types() []EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EventType, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}
