package usecase

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/chatledger/internal/domain"
	"github.com/iho/chatledger/internal/infrastructure/metrics"
)

// AccountUseCase handles account business logic.
type AccountUseCase struct {
	txManager   TransactionManager
	clientRepo  ClientRepository
	accountRepo AccountRepository
	outboxRepo  OutboxRepository
	idGen       IDGenerator
	policy      domain.OverdraftPolicy
	metrics     *metrics.Metrics
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(
	txManager TransactionManager,
	clientRepo ClientRepository,
	accountRepo AccountRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	policy domain.OverdraftPolicy,
	metrics *metrics.Metrics,
) *AccountUseCase {
	return &AccountUseCase{
		txManager:   txManager,
		clientRepo:  clientRepo,
		accountRepo: accountRepo,
		outboxRepo:  outboxRepo,
		idGen:       idGen,
		policy:      policy,
		metrics:     metrics,
	}
}

// OpenAccountInput represents input for opening an account.
// A nil AllowNegativeBalance defers to the overdraft policy.
type OpenAccountInput struct {
	ClientID             int64
	Currency             string
	Precision            int32
	AllowNegativeBalance *bool
}

// OpenAccount creates the (client, currency) account with a zero balance.
func (uc *AccountUseCase) OpenAccount(ctx context.Context, input OpenAccountInput) (*domain.Account, error) {
	currency, err := domain.NormalizeCurrency(input.Currency)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidatePrecision(input.Precision); err != nil {
		return nil, err
	}

	if _, err := uc.clientRepo.GetByID(ctx, input.ClientID); err != nil {
		return nil, err
	}

	allowNegative := uc.policy.AllowsNegative(currency)
	if input.AllowNegativeBalance != nil {
		allowNegative = *input.AllowNegativeBalance
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	now := time.Now().UTC()
	account := &domain.Account{
		ClientID:             input.ClientID,
		Currency:             currency,
		Precision:            input.Precision,
		Balance:              decimal.Zero,
		AllowNegativeBalance: allowNegative,
		IsActive:             true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := uc.accountRepo.Create(txCtx, tx, account); err != nil {
		return nil, err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   strconv.FormatInt(account.ID, 10),
		AggregateType: domain.AggregateTypeAccount,
		EventType:     domain.EventTypeAccountOpened,
		Payload: map[string]any{
			"account_id": account.ID,
			"client_id":  account.ClientID,
			"currency":   account.Currency,
			"precision":  account.Precision,
		},
		CreatedAt: now,
	}
	if err := uc.outboxRepo.Create(txCtx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.AccountsOpened.Inc()
	}

	return account, nil
}

// GetAccount retrieves the account of a client in a currency.
func (uc *AccountUseCase) GetAccount(ctx context.Context, clientID int64, currency string) (*domain.Account, error) {
	code, err := domain.NormalizeCurrency(currency)
	if err != nil {
		return nil, err
	}
	return uc.accountRepo.GetByClientCurrency(ctx, clientID, code)
}

// GetAccountByID retrieves an account by ID.
func (uc *AccountUseCase) GetAccountByID(ctx context.Context, id int64) (*domain.Account, error) {
	return uc.accountRepo.GetByID(ctx, id)
}

// ListClientAccounts lists all accounts of a client, inactive ones included.
func (uc *AccountUseCase) ListClientAccounts(ctx context.Context, clientID int64) ([]*domain.Account, error) {
	if _, err := uc.clientRepo.GetByID(ctx, clientID); err != nil {
		return nil, err
	}
	return uc.accountRepo.ListByClient(ctx, clientID)
}

// ListBalances lists balances across all clients, ordered by client ID then currency.
func (uc *AccountUseCase) ListBalances(ctx context.Context, filter domain.BalanceFilter) ([]*domain.ClientBalance, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return uc.accountRepo.ListBalances(ctx, filter)
}

// Deactivate stops the account from accepting postings. Deactivating an inactive account is a no-op.
func (uc *AccountUseCase) Deactivate(ctx context.Context, id int64) (*domain.Account, error) {
	return uc.changeStatus(ctx, id, false)
}

// Reactivate lets an inactive account accept postings again.
func (uc *AccountUseCase) Reactivate(ctx context.Context, id int64) (*domain.Account, error) {
	return uc.changeStatus(ctx, id, true)
}

func (uc *AccountUseCase) changeStatus(ctx context.Context, id int64, active bool) (*domain.Account, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	// Lock so an in-flight posting either completes before or sees the new status.
	account, err := uc.accountRepo.GetByIDForUpdate(txCtx, tx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	eventType := domain.EventTypeAccountDeactivated
	operation := "deactivate"
	changed := false
	if active {
		eventType = domain.EventTypeAccountReactivated
		operation = "reactivate"
		changed = account.Reactivate(now)
	} else {
		changed = account.Deactivate(now)
	}

	if !changed {
		return account, nil
	}

	if err := uc.accountRepo.UpdateStatus(txCtx, tx, account); err != nil {
		return nil, err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   strconv.FormatInt(account.ID, 10),
		AggregateType: domain.AggregateTypeAccount,
		EventType:     eventType,
		Payload: map[string]any{
			"account_id": account.ID,
			"client_id":  account.ClientID,
			"currency":   account.Currency,
			"active":     account.IsActive,
		},
		CreatedAt: now,
	}
	if err := uc.outboxRepo.Create(txCtx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.AccountOperations.WithLabelValues(operation).Inc()
	}

	return account, nil
}

// SetOverdraftPolicy changes whether the account may go below zero.
// An account already below zero keeps its balance; only further debits are affected.
func (uc *AccountUseCase) SetOverdraftPolicy(ctx context.Context, id int64, allowNegative bool) (*domain.Account, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	account, err := uc.accountRepo.GetByIDForUpdate(txCtx, tx, id)
	if err != nil {
		return nil, err
	}

	if account.AllowNegativeBalance == allowNegative {
		return account, nil
	}

	now := time.Now().UTC()
	if err := uc.accountRepo.UpdateOverdraft(txCtx, tx, id, allowNegative, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.AccountOperations.WithLabelValues("overdraft").Inc()
	}

	account.AllowNegativeBalance = allowNegative
	account.UpdatedAt = now
	return account, nil
}
