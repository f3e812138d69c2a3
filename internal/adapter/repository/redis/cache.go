package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/chatledger/internal/infrastructure/metrics"
	"github.com/iho/chatledger/internal/usecase"
)

// Cache implements usecase.Cache using Redis.
type Cache struct {
	client  *redis.Client
	prefix  string
	metrics *metrics.Metrics
}

// NewCache creates a new Cache.
func NewCache(client *redis.Client) *Cache {
	return &Cache{
		client: client,
		prefix: "chatledger:cache:",
	}
}

// WithMetrics counts Redis failures in m.
func (c *Cache) WithMetrics(m *metrics.Metrics) *Cache {
	c.metrics = m
	return c
}

// Get retrieves a value by key. A missing key yields usecase.ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	track(c.metrics, "cache_get", err)
	if errors.Is(err, redis.Nil) {
		return nil, usecase.ErrCacheMiss
	}
	return val, err
}

// Set stores a value with TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return track(c.metrics, "cache_set", c.client.Set(ctx, c.prefix+key, value, ttl).Err())
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return track(c.metrics, "cache_delete", c.client.Del(ctx, c.prefix+key).Err())
}
