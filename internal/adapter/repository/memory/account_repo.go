package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/chatledger/internal/domain"
	"github.com/iho/chatledger/internal/usecase"
)

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	store *Store
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(store *Store) *AccountRepository {
	return &AccountRepository{store: store}
}

// Create claims the (client, currency) pair and inserts the account on commit.
func (r *AccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	s := r.store
	key := accountKey{clientID: account.ClientID, currency: account.Currency}

	s.mu.Lock()
	if _, ok := s.clients[account.ClientID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", domain.ErrClientNotFound, account.ClientID)
	}
	if _, ok := s.accountsByKey[key]; ok || s.pendingAccounts[key] != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: client %d already has a %s account", domain.ErrAccountAlreadyExists, account.ClientID, account.Currency)
	}
	s.pendingAccounts[key] = t
	s.mu.Unlock()

	t.accountKeys = append(t.accountKeys, key)
	account.ID = s.accountSeq.Add(1)

	stored := cloneAccount(account)
	t.ops = append(t.ops, func() {
		s.accounts[stored.ID] = stored
		s.accountsByKey[key] = stored.ID
	})

	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	acc, ok := r.store.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(acc), nil
}

// GetByClientCurrency retrieves the account of a client in a currency.
func (r *AccountRepository) GetByClientCurrency(ctx context.Context, clientID int64, currency string) (*domain.Account, error) {
	id, err := r.lookup(clientID, currency)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// GetByIDForUpdate locks the account for the rest of tx and returns its current state.
func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id int64) (*domain.Account, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if err := t.lock(ctx, id); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

// GetByClientCurrencyForUpdate locks the (client, currency) account for the rest of tx.
func (r *AccountRepository) GetByClientCurrencyForUpdate(ctx context.Context, tx usecase.Transaction, clientID int64, currency string) (*domain.Account, error) {
	id, err := r.lookup(clientID, currency)
	if err != nil {
		return nil, err
	}
	return r.GetByIDForUpdate(ctx, tx, id)
}

// ListByClient lists the accounts of a client ordered by ID.
func (r *AccountRepository) ListByClient(ctx context.Context, clientID int64) ([]*domain.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	accounts := make([]*domain.Account, 0)
	for _, acc := range r.store.accounts {
		if acc.ClientID == clientID {
			accounts = append(accounts, cloneAccount(acc))
		}
	}
	slices.SortFunc(accounts, compareAccountID)

	return accounts, nil
}

// ListAfter lists up to limit accounts with ID greater than afterID.
func (r *AccountRepository) ListAfter(ctx context.Context, afterID int64, limit int) ([]*domain.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	accounts := make([]*domain.Account, 0)
	for id, acc := range r.store.accounts {
		if id > afterID {
			accounts = append(accounts, cloneAccount(acc))
		}
	}
	slices.SortFunc(accounts, compareAccountID)

	if len(accounts) > limit {
		accounts = accounts[:limit]
	}
	return accounts, nil
}

// ListBalances lists committed balances passing filter, ordered by client ID then currency.
func (r *AccountRepository) ListBalances(ctx context.Context, filter domain.BalanceFilter) ([]*domain.ClientBalance, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	balances := make([]*domain.ClientBalance, 0)
	for _, acc := range r.store.accounts {
		if !filter.Matches(acc) {
			continue
		}
		client, ok := r.store.clients[acc.ClientID]
		if !ok {
			continue
		}
		balances = append(balances, domain.NewClientBalance(client, acc))
	}
	slices.SortFunc(balances, func(a, b *domain.ClientBalance) int {
		return cmp.Or(cmp.Compare(a.ClientID, b.ClientID), cmp.Compare(a.Currency, b.Currency))
	})

	return balances, nil
}

// UpdateBalance sets balance and version on commit.
func (r *AccountRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, id int64, balance decimal.Decimal, version int64, updatedAt time.Time) error {
	return r.update(tx, id, func(acc *domain.Account) {
		acc.Balance = balance
		acc.Version = version
		acc.UpdatedAt = updatedAt
	})
}

// UpdateStatus copies the active flag and deactivation time on commit.
func (r *AccountRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	isActive := account.IsActive
	deactivatedAt := copyTime(account.DeactivatedAt)
	updatedAt := account.UpdatedAt

	return r.update(tx, account.ID, func(acc *domain.Account) {
		acc.IsActive = isActive
		acc.DeactivatedAt = deactivatedAt
		acc.UpdatedAt = updatedAt
	})
}

// UpdateOverdraft sets the negative balance flag on commit.
func (r *AccountRepository) UpdateOverdraft(ctx context.Context, tx usecase.Transaction, id int64, allowNegative bool, updatedAt time.Time) error {
	return r.update(tx, id, func(acc *domain.Account) {
		acc.AllowNegativeBalance = allowNegative
		acc.UpdatedAt = updatedAt
	})
}

func (r *AccountRepository) update(tx usecase.Transaction, id int64, apply func(*domain.Account)) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if _, ok := t.locked[id]; !ok {
		return fmt.Errorf("memory: account %d updated without lock", id)
	}

	s := r.store
	t.ops = append(t.ops, func() {
		if acc, ok := s.accounts[id]; ok {
			apply(acc)
		}
	})
	return nil
}

func (r *AccountRepository) lookup(clientID int64, currency string) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, ok := r.store.accountsByKey[accountKey{clientID: clientID, currency: currency}]
	if !ok {
		return 0, fmt.Errorf("%w: client %d has no %s account", domain.ErrAccountNotFound, clientID, currency)
	}
	return id, nil
}

func compareAccountID(a, b *domain.Account) int {
	return cmp.Compare(a.ID, b.ID)
}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	c.DeactivatedAt = copyTime(a.DeactivatedAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
