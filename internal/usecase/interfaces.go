package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/chatledger/internal/domain"
)

// ClientRepository defines data access for clients.
type ClientRepository interface {
	// Upsert inserts the client or refreshes name and city of the one with the same ChatRef.
	Upsert(ctx context.Context, client *domain.Client) (*domain.Client, error)
	GetByID(ctx context.Context, id int64) (*domain.Client, error)
	GetByChatRef(ctx context.Context, chatRef int64) (*domain.Client, error)
	UpdateCity(ctx context.Context, chatRef int64, city *string) (*domain.Client, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Client, error)
}

// AccountRepository defines data access for accounts.
type AccountRepository interface {
	Create(ctx context.Context, tx Transaction, account *domain.Account) error
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	GetByClientCurrency(ctx context.Context, clientID int64, currency string) (*domain.Account, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id int64) (*domain.Account, error)
	GetByClientCurrencyForUpdate(ctx context.Context, tx Transaction, clientID int64, currency string) (*domain.Account, error)
	ListByClient(ctx context.Context, clientID int64) ([]*domain.Account, error)
	// ListAfter pages over all accounts ordered by ID.
	ListAfter(ctx context.Context, afterID int64, limit int) ([]*domain.Account, error)
	// ListBalances lists the balances passing filter across all clients, ordered by client ID then currency.
	ListBalances(ctx context.Context, filter domain.BalanceFilter) ([]*domain.ClientBalance, error)
	UpdateBalance(ctx context.Context, tx Transaction, id int64, balance decimal.Decimal, version int64, updatedAt time.Time) error
	UpdateStatus(ctx context.Context, tx Transaction, account *domain.Account) error
	UpdateOverdraft(ctx context.Context, tx Transaction, id int64, allowNegative bool, updatedAt time.Time) error
}

// TransactionRepository defines data access for the append-only transaction log.
type TransactionRepository interface {
	// Create appends a transaction and assigns its ID. A duplicate (client, idempotency key)
	// fails with domain.ErrIdempotencyConflict.
	Create(ctx context.Context, tx Transaction, txn *domain.Transaction) error
	GetByIdempotencyKey(ctx context.Context, tx Transaction, clientID int64, key string) (*domain.Transaction, error)
	GetByID(ctx context.Context, id int64) (*domain.Transaction, error)
	// GetLatestByAccount returns nil when the account has no transactions.
	GetLatestByAccount(ctx context.Context, tx Transaction, accountID int64) (*domain.Transaction, error)
	// GetLatestAt returns the latest transaction with OccurredAt <= at, or nil.
	GetLatestAt(ctx context.Context, accountID int64, at time.Time) (*domain.Transaction, error)
	ListByAccount(ctx context.Context, accountID int64, filter domain.StatementFilter) ([]*domain.Transaction, error)
	ListByClient(ctx context.Context, clientID int64, filter domain.StatementFilter) ([]*domain.Transaction, error)
}

// ReferenceRepository defines data access for categories and actors.
type ReferenceRepository interface {
	CreateCategory(ctx context.Context, category *domain.Category) error
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	CreateActor(ctx context.Context, actor *domain.Actor) error
	ListActors(ctx context.Context) ([]*domain.Actor, error)
}

// ManagerRepository defines data access for managers.
type ManagerRepository interface {
	Upsert(ctx context.Context, manager *domain.Manager) error
	Delete(ctx context.Context, userID int64) error
	List(ctx context.Context) ([]*domain.Manager, error)
	Exists(ctx context.Context, userID int64) (bool, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation while it fails with a transient error.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles HTTP response replay storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Delete releases a key whose request did not succeed.
	Delete(ctx context.Context, key string) error
}
