// Package cache wraps Redis as the fast tier. Values are JSON blobs;
// a Redis outage degrades to a miss so the durable store and upstream
// tiers keep the service answering.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrMiss is returned when a key is absent or the cache is unreachable.
var ErrMiss = errors.New("cache miss")

// Cache is the key/value surface the services use.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisCache implements Cache on a go-redis client.
type RedisCache struct {
	client *redis.Client
	log    zerolog.Logger
}

// New connects to Redis and verifies the connection.
func New(addr, password string, db int, log zerolog.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisCache{
		client: client,
		log:    log.With().Str("component", "cache").Logger(),
	}, nil
}

// Get unmarshals the cached JSON value into dest. Absence and cache
// unavailability both surface as ErrMiss.
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ErrMiss
	}
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache get failed, treating as miss")
		return ErrMiss
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cached payload undecodable, treating as miss")
		return ErrMiss
	}
	return nil
}

// GetMany fetches several keys in one round trip. The result map only
// contains keys that were present; an unreachable cache yields an empty
// map, never an error.
func (c *RedisCache) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.log.Warn().Err(err).Int("keys", len(keys)).Msg("cache multi-get failed, treating all as misses")
		return map[string][]byte{}, nil
	}

	hits := make(map[string][]byte, len(keys))
	for i, v := range values {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		hits[keys[i]] = []byte(s)
	}
	return hits, nil
}

// SetWithTTL stores value as JSON. A ttl of zero stores without expiry.
func (c *RedisCache) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value for %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete cache key %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
