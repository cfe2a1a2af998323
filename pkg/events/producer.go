package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TopicOrders   = "order_events"
	TopicProducts = "product_events"
	TopicUsers    = "user_events"
)

type Event struct {
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

func New(eventType string, data map[string]any) Event {
	return Event{Type: eventType, OccurredAt: time.Now().UTC(), Data: data}
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, event Event) error
	Close() error
}

type KafkaProducer struct {
	w *kafka.Writer
}

func NewKafkaProducer(brokers []string) *KafkaProducer {
	return &KafkaProducer{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
		AllowAutoTopicCreation: true,
	}}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic, key string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: marshal event: %w", err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  event.OccurredAt,
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write %s: %w", topic, err)
	}
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.w.Close()
}

// Nop drops every event. Used when KAFKA_BROKERS is empty.
type Nop struct{}

func (Nop) Publish(context.Context, string, string, Event) error { return nil }
func (Nop) Close() error                                        { return nil }
