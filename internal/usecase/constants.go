package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long HTTP responses are kept for replay
	IdempotencyKeyTTL = 24 * time.Hour

	// DefaultManagerCacheTTL is how long manager lookups are cached
	DefaultManagerCacheTTL = 5 * time.Minute

	// DefaultStatementLimit and MaxStatementLimit bound statement pages
	DefaultStatementLimit = 50
	MaxStatementLimit     = 1000
)
