package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/chatledger/internal/infrastructure/metrics"
)

// processingMarker is stored while the first request for a key is still running.
const processingMarker = "processing"

// IdempotencyStore implements usecase.IdempotencyStore using Redis.
type IdempotencyStore struct {
	client  *redis.Client
	prefix  string
	metrics *metrics.Metrics
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{
		client: client,
		prefix: "chatledger:idempotency:",
	}
}

// WithMetrics counts Redis failures in m.
func (s *IdempotencyStore) WithMetrics(m *metrics.Metrics) *IdempotencyStore {
	s.metrics = m
	return s
}

// CheckAndSet claims key with SETNX. When the key is already taken it returns the stored
// value, which is the processing marker while the first request is in flight.
func (s *IdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	fullKey := s.prefix + key

	value := response
	if value == nil {
		value = []byte(processingMarker)
	}

	set, err := s.client.SetNX(ctx, fullKey, value, ttl).Result()
	if track(s.metrics, "idempotency_claim", err) != nil {
		return false, nil, err
	}
	if set {
		return false, nil, nil
	}

	existing, err := s.client.Get(ctx, fullKey).Bytes()
	track(s.metrics, "idempotency_get", err)
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; treat as still taken.
		return true, []byte(processingMarker), nil
	}
	if err != nil {
		return false, nil, err
	}
	return true, existing, nil
}

// Update stores the final response for key.
func (s *IdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	return track(s.metrics, "idempotency_update", s.client.Set(ctx, s.prefix+key, response, ttl).Err())
}

// Delete releases key so the request can be retried.
func (s *IdempotencyStore) Delete(ctx context.Context, key string) error {
	return track(s.metrics, "idempotency_delete", s.client.Del(ctx, s.prefix+key).Err())
}

// IsProcessing reports whether a stored value is the in-flight marker.
func IsProcessing(value []byte) bool {
	return string(value) == processingMarker
}
