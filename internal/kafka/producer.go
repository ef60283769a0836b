package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/marketlens/marketlens/internal/models"
)

// Producer publishes record lifecycle events to the records topic.
// Sibling instances and downstream consumers use them for cache
// coherence and audit.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a new Kafka producer.
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishReferenceRefreshed announces that a symbol's reference record
// was merged and persisted.
func (p *Producer) PublishReferenceRefreshed(ctx context.Context, symbol string) error {
	return p.publish(ctx, symbol, models.RecordEvent{
		ID:        uuid.NewString(),
		EventType: models.EventReferenceRefreshed,
		Symbol:    symbol,
		Entity:    "reference",
		Timestamp: time.Now(),
	})
}

// PublishCacheInvalidated announces an explicit cache bust so sibling
// instances can evict their entries too.
func (p *Producer) PublishCacheInvalidated(ctx context.Context, entity, symbol string) error {
	return p.publish(ctx, symbol, models.RecordEvent{
		ID:        uuid.NewString(),
		EventType: models.EventCacheInvalidated,
		Symbol:    symbol,
		Entity:    entity,
		Timestamp: time.Now(),
	})
}

// PublishCalendarSynced announces a batch of calendar events persisted
// from the provider.
func (p *Producer) PublishCalendarSynced(ctx context.Context, count int) error {
	return p.publish(ctx, "calendar", models.RecordEvent{
		ID:        uuid.NewString(),
		EventType: models.EventCalendarSynced,
		Entity:    "calendar",
		Count:     count,
		Timestamp: time.Now(),
	})
}

func (p *Producer) publish(ctx context.Context, key string, event models.RecordEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
