package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// messageReader is the subset of *kafka.Reader the consumer needs.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer reads checkout events back off the topic.
type Consumer struct {
	reader messageReader
	log    logrus.FieldLogger
}

func NewConsumer(topic, groupID string, log logrus.FieldLogger, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	if log == nil {
		l := logrus.New()
		l.Out = io.Discard
		log = l
	}
	return &Consumer{reader: reader, log: log}
}

// Run hands every decodable event to handle until ctx is done or handle
// returns an error. Malformed messages are logged and skipped.
func (c *Consumer) Run(ctx context.Context, handle func(CheckoutEvent) error) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		var event CheckoutEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			c.log.WithError(err).WithField("offset", m.Offset).Warn("skipping malformed checkout event")
			continue
		}
		if event.Type == "" {
			event.Type = EventType(headerValue(m.Headers, "event_type"))
		}
		if err := handle(event); err != nil {
			return err
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
