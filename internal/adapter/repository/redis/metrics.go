package redis

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/iho/chatledger/internal/infrastructure/metrics"
)

// track counts err under op. A missing key is not an error.
func track(m *metrics.Metrics, op string, err error) error {
	if err != nil && m != nil && !errors.Is(err, redis.Nil) {
		m.RedisErrors.WithLabelValues(op).Inc()
	}
	return err
}
