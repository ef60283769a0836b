package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/marketlens/marketlens/internal/cache"
	"github.com/marketlens/marketlens/internal/models"
)

// InvalidationConsumer keeps the local fast cache coherent across
// instances: when any instance publishes a CACHE_INVALIDATED event,
// every consumer evicts its own Redis entry for that key. Events of
// other types are ignored.
type InvalidationConsumer struct {
	reader *kafka.Reader
	cache  cache.Cache
	log    zerolog.Logger
}

// NewInvalidationConsumer creates a consumer on the records topic.
func NewInvalidationConsumer(brokers []string, topic, groupID string, c cache.Cache, log zerolog.Logger) *InvalidationConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
	})

	return &InvalidationConsumer{
		reader: reader,
		cache:  c,
		log:    log.With().Str("component", "invalidation-consumer").Logger(),
	}
}

// Start consumes until the context is cancelled.
func (c *InvalidationConsumer) Start(ctx context.Context) error {
	c.log.Info().Str("topic", c.reader.Config().Topic).Msg("starting invalidation consumer")

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("invalidation consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.log.Error().Err(err).Msg("failed to read message")
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				c.log.Error().Err(err).Msg("failed to process message")
			}
		}
	}
}

func (c *InvalidationConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event models.RecordEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return err
	}

	if event.EventType != models.EventCacheInvalidated || event.Symbol == "" {
		return nil
	}

	var key string
	switch event.Entity {
	case "reference":
		key = cache.ReferenceKey(event.Symbol)
	case "branding":
		key = cache.BrandingKey(event.Symbol)
	default:
		return nil
	}

	c.log.Debug().Str("key", key).Msg("evicting cache entry on invalidation event")
	return c.cache.Delete(ctx, key)
}
