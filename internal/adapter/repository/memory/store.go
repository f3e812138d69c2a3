// Package memory keeps the ledger in process memory. Postings on one account are
// serialized by a per-account lock; writes become visible only on Commit.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/iho/chatledger/internal/domain"
	"github.com/iho/chatledger/internal/usecase"
)

// ErrTxClosed is returned when a committed or rolled back transaction is used again.
var ErrTxClosed = errors.New("memory: transaction already closed")

type accountKey struct {
	clientID int64
	currency string
}

type idempotencyKey struct {
	clientID int64
	key      string
}

// Store holds committed state shared by all repositories.
type Store struct {
	mu sync.RWMutex

	clients       map[int64]*domain.Client
	clientsByChat map[int64]int64
	accounts      map[int64]*domain.Account
	accountsByKey map[accountKey]int64
	txns          map[int64]*domain.Transaction
	txnsByAccount map[int64][]*domain.Transaction
	txnsByClient  map[int64][]*domain.Transaction
	txnsByKey     map[idempotencyKey]int64
	categories    map[int64]*domain.Category
	actors        map[int64]*domain.Actor
	managers      map[int64]*domain.Manager
	outbox        []*domain.OutboxEvent

	// unique keys claimed by open transactions
	pendingAccounts map[accountKey]*Tx
	pendingKeys     map[idempotencyKey]*Tx

	locksMu sync.Mutex
	locks   map[int64]chan struct{}

	clientSeq   atomic.Int64
	accountSeq  atomic.Int64
	txnSeq      atomic.Int64
	categorySeq atomic.Int64
	actorSeq    atomic.Int64
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		clients:         make(map[int64]*domain.Client),
		clientsByChat:   make(map[int64]int64),
		accounts:        make(map[int64]*domain.Account),
		accountsByKey:   make(map[accountKey]int64),
		txns:            make(map[int64]*domain.Transaction),
		txnsByAccount:   make(map[int64][]*domain.Transaction),
		txnsByClient:    make(map[int64][]*domain.Transaction),
		txnsByKey:       make(map[idempotencyKey]int64),
		categories:      make(map[int64]*domain.Category),
		actors:          make(map[int64]*domain.Actor),
		managers:        make(map[int64]*domain.Manager),
		pendingAccounts: make(map[accountKey]*Tx),
		pendingKeys:     make(map[idempotencyKey]*Tx),
		locks:           make(map[int64]chan struct{}),
	}
}

// Ping always succeeds; it lets the store act as a readiness check.
func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) accountLock(id int64) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}
	return ch
}

// TxManager implements usecase.TransactionManager.
type TxManager struct {
	store *Store
}

// NewTxManager creates a new TxManager.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Begin starts a new transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{store: m.store, locked: make(map[int64]chan struct{})}, nil
}

// Tx buffers writes until Commit and holds the account locks it acquired.
type Tx struct {
	store       *Store
	locked      map[int64]chan struct{}
	ops         []func()
	accountKeys []accountKey
	idemKeys    []idempotencyKey
	done        bool
}

// Commit applies buffered writes atomically and releases locks.
// A cancelled context aborts the transaction instead.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxClosed
	}
	if err := ctx.Err(); err != nil {
		t.release()
		return err
	}

	t.store.mu.Lock()
	for _, op := range t.ops {
		op()
	}
	t.store.mu.Unlock()

	t.release()
	return nil
}

// Rollback discards buffered writes and releases locks.
func (t *Tx) Rollback(context.Context) error {
	if t.done {
		return ErrTxClosed
	}
	t.release()
	return nil
}

func (t *Tx) release() {
	t.done = true
	t.ops = nil

	if len(t.accountKeys) > 0 || len(t.idemKeys) > 0 {
		t.store.mu.Lock()
		for _, k := range t.accountKeys {
			if t.store.pendingAccounts[k] == t {
				delete(t.store.pendingAccounts, k)
			}
		}
		for _, k := range t.idemKeys {
			if t.store.pendingKeys[k] == t {
				delete(t.store.pendingKeys, k)
			}
		}
		t.store.mu.Unlock()
	}

	for id, ch := range t.locked {
		<-ch
		delete(t.locked, id)
	}
}

func (t *Tx) lock(ctx context.Context, accountID int64) error {
	if _, ok := t.locked[accountID]; ok {
		return nil
	}

	ch := t.store.accountLock(accountID)
	select {
	case ch <- struct{}{}:
		t.locked[accountID] = ch
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func asTx(tx usecase.Transaction) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t == nil {
		return nil, fmt.Errorf("memory: unexpected transaction type %T", tx)
	}
	if t.done {
		return nil, ErrTxClosed
	}
	return t, nil
}
