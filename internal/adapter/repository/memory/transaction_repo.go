package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/iho/chatledger/internal/domain"
	"github.com/iho/chatledger/internal/usecase"
)

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	store *Store
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(store *Store) *TransactionRepository {
	return &TransactionRepository{store: store}
}

// Create assigns the next ID and appends txn on commit. The (client, key) pair is
// claimed immediately so a concurrent duplicate fails before either commits.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if _, ok := t.locked[txn.AccountID]; !ok {
		return fmt.Errorf("memory: transaction appended to account %d without lock", txn.AccountID)
	}

	s := r.store

	s.mu.Lock()
	if txn.CategoryID != nil {
		if _, ok := s.categories[*txn.CategoryID]; !ok {
			s.mu.Unlock()
			return fmt.Errorf("%w: %d", domain.ErrCategoryNotFound, *txn.CategoryID)
		}
	}
	if txn.ActorID != nil {
		if _, ok := s.actors[*txn.ActorID]; !ok {
			s.mu.Unlock()
			return fmt.Errorf("%w: %d", domain.ErrActorNotFound, *txn.ActorID)
		}
	}

	var key *idempotencyKey
	if txn.IdempotencyKey != nil {
		k := idempotencyKey{clientID: txn.ClientID, key: *txn.IdempotencyKey}
		_, committed := s.txnsByKey[k]
		owner := s.pendingKeys[k]
		if committed || (owner != nil && owner != t) {
			s.mu.Unlock()
			return fmt.Errorf("%w: client %d key %q", domain.ErrIdempotencyConflict, txn.ClientID, k.key)
		}
		s.pendingKeys[k] = t
		key = &k
	}
	s.mu.Unlock()

	if key != nil {
		t.idemKeys = append(t.idemKeys, *key)
	}

	txn.ID = s.txnSeq.Add(1)
	stored := cloneTransaction(txn)

	t.ops = append(t.ops, func() {
		s.txns[stored.ID] = stored
		s.txnsByAccount[stored.AccountID] = append(s.txnsByAccount[stored.AccountID], stored)
		s.txnsByClient[stored.ClientID] = append(s.txnsByClient[stored.ClientID], stored)
		if key != nil {
			s.txnsByKey[*key] = stored.ID
		}
	})

	return nil
}

// GetByIdempotencyKey returns the committed transaction for (clientID, key).
func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, tx usecase.Transaction, clientID int64, key string) (*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, ok := r.store.txnsByKey[idempotencyKey{clientID: clientID, key: key}]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return cloneTransaction(r.store.txns[id]), nil
}

// GetByID retrieves a transaction by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	txn, ok := r.store.txns[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return cloneTransaction(txn), nil
}

// GetLatestByAccount returns the newest transaction of the account, or nil.
func (r *TransactionRepository) GetLatestByAccount(ctx context.Context, tx usecase.Transaction, accountID int64) (*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	log := r.store.txnsByAccount[accountID]
	if len(log) == 0 {
		return nil, nil
	}
	return cloneTransaction(log[len(log)-1]), nil
}

// GetLatestAt returns the newest transaction with OccurredAt <= at, or nil.
func (r *TransactionRepository) GetLatestAt(ctx context.Context, accountID int64, at time.Time) (*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	log := r.store.txnsByAccount[accountID]
	for i := len(log) - 1; i >= 0; i-- {
		if !log[i].OccurredAt.After(at) {
			return cloneTransaction(log[i]), nil
		}
	}
	return nil, nil
}

// ListByAccount lists account transactions in (OccurredAt, ID) order.
// The per-account log is appended under the account lock, so it is already in that order.
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID int64, filter domain.StatementFilter) ([]*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return collect(r.store.txnsByAccount[accountID], filter), nil
}

// ListByClient lists client transactions across accounts in (OccurredAt, ID) order.
func (r *TransactionRepository) ListByClient(ctx context.Context, clientID int64, filter domain.StatementFilter) ([]*domain.Transaction, error) {
	r.store.mu.RLock()
	log := slices.Clone(r.store.txnsByClient[clientID])
	r.store.mu.RUnlock()

	// Commits on different accounts interleave, so the client log needs sorting.
	slices.SortFunc(log, compareTransactions)

	return collect(log, filter), nil
}

func collect(log []*domain.Transaction, filter domain.StatementFilter) []*domain.Transaction {
	out := make([]*domain.Transaction, 0)
	for _, txn := range log {
		if !filter.Match(txn) {
			continue
		}
		out = append(out, cloneTransaction(txn))
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out
}

func compareTransactions(a, b *domain.Transaction) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	default:
		return 0
	}
}

func cloneTransaction(t *domain.Transaction) *domain.Transaction {
	c := *t
	return &c
}
