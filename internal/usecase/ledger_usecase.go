package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/chatledger/internal/domain"
	"github.com/iho/chatledger/internal/infrastructure/metrics"
)

// PostInput is a request to apply a signed amount to the client's account in Currency.
type PostInput struct {
	ClientID       int64
	Currency       string
	Amount         decimal.Decimal
	IdempotencyKey *string
	CategoryID     *int64
	ActorID        *int64
	Comment        *string
	Source         *string
	OccurredAt     *time.Time
}

// PostResult is the committed transaction and whether it was replayed for a repeated key.
type PostResult struct {
	Transaction *domain.Transaction
	Replayed    bool
}

// LedgerUseCase applies postings to accounts.
type LedgerUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	txRepo      TransactionRepository
	outboxRepo  OutboxRepository
	guard       *IdempotencyGuard
	retrier     Retrier
	idGen       IDGenerator
	metrics     *metrics.Metrics
	txTimeout   time.Duration
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	txRepo TransactionRepository,
	outboxRepo OutboxRepository,
	retrier Retrier,
	idGen IDGenerator,
	metrics *metrics.Metrics,
) *LedgerUseCase {
	return &LedgerUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		txRepo:      txRepo,
		outboxRepo:  outboxRepo,
		guard:       NewIdempotencyGuard(txRepo),
		retrier:     retrier,
		idGen:       idGen,
		metrics:     metrics,
		txTimeout:   DefaultTransactionTimeout,
	}
}

// WithTransactionTimeout overrides DefaultTransactionTimeout.
func (uc *LedgerUseCase) WithTransactionTimeout(d time.Duration) *LedgerUseCase {
	if d > 0 {
		uc.txTimeout = d
	}
	return uc
}

// Deposit posts a positive amount.
func (uc *LedgerUseCase) Deposit(ctx context.Context, input PostInput) (*PostResult, error) {
	if !input.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: deposit amount must be positive", domain.ErrInvalidAmount)
	}
	return uc.Post(ctx, input)
}

// Withdraw posts the negated amount.
func (uc *LedgerUseCase) Withdraw(ctx context.Context, input PostInput) (*PostResult, error) {
	if !input.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: withdrawal amount must be positive", domain.ErrInvalidAmount)
	}
	input.Amount = input.Amount.Neg()
	return uc.Post(ctx, input)
}

// Post applies input.Amount to the account identified by (ClientID, Currency).
// A repeated idempotency key returns the committed transaction without applying it again.
func (uc *LedgerUseCase) Post(ctx context.Context, input PostInput) (*PostResult, error) {
	start := time.Now()

	if err := uc.normalize(&input); err != nil {
		uc.recordPosting("invalid", "rejected", start)
		return nil, err
	}

	var (
		result   *PostResult
		attempts int
	)
	op := func() error {
		attempts++
		r, err := uc.post(ctx, input)
		if err != nil {
			return err
		}
		result = r
		return nil
	}

	var err error
	if uc.retrier != nil {
		err = uc.retrier.Retry(ctx, op)
	} else {
		err = op()
	}

	if uc.metrics != nil && attempts > 1 {
		uc.metrics.PostingRetries.Add(float64(attempts - 1))
	}

	if err != nil {
		// Conflicts that survived every retry surface as a transient failure.
		if errors.Is(err, domain.ErrIdempotencyConflict) {
			err = fmt.Errorf("%w: %w", domain.ErrConcurrencyConflict, err)
		}
		uc.recordPosting(input.Currency, outcomeLabel(err), start)
		return nil, err
	}

	if result.Replayed {
		zerolog.Ctx(ctx).Debug().
			Int64("client_id", input.ClientID).
			Int64("transaction_id", result.Transaction.ID).
			Msg("idempotent posting replayed")
		if uc.metrics != nil {
			uc.metrics.IdempotentReplays.Inc()
		}
		uc.recordPosting(input.Currency, "replayed", start)
		return result, nil
	}

	uc.recordPosting(input.Currency, "ok", start)
	return result, nil
}

func (uc *LedgerUseCase) normalize(input *PostInput) error {
	currency, err := domain.NormalizeCurrency(input.Currency)
	if err != nil {
		return err
	}
	input.Currency = currency

	if err := domain.ValidateAmount(input.Amount); err != nil {
		return err
	}

	key, err := domain.NormalizeIdempotencyKey(input.IdempotencyKey)
	if err != nil {
		return err
	}
	input.IdempotencyKey = key

	if err := domain.ValidateOptionalText("comment", input.Comment, domain.MaxCommentLength); err != nil {
		return err
	}
	if err := domain.ValidateOptionalText("source", input.Source, domain.MaxSourceLength); err != nil {
		return err
	}

	if input.OccurredAt != nil {
		at := input.OccurredAt.UTC()
		if err := domain.ValidateOccurredAt(at); err != nil {
			return err
		}
		input.OccurredAt = &at
	}

	return nil
}

// post runs a single attempt inside one database transaction.
func (uc *LedgerUseCase) post(ctx context.Context, input PostInput) (*PostResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, uc.txTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	// 1. A committed key replays whatever state its account is in now.
	reservation, err := uc.guard.Reserve(txCtx, tx, input.ClientID, input.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if reservation.Replay != nil {
		return &PostResult{Transaction: reservation.Replay, Replayed: true}, nil
	}

	// 2. Lock the target account; postings on other accounts are not affected.
	account, err := uc.accountRepo.GetByClientCurrencyForUpdate(txCtx, tx, input.ClientID, input.Currency)
	if err != nil {
		return nil, err
	}

	// Another posting may have committed the key while we waited for the lock.
	if reservation.Key != nil {
		reservation, err = uc.guard.Reserve(txCtx, tx, input.ClientID, input.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if reservation.Replay != nil {
			return &PostResult{Transaction: reservation.Replay, Replayed: true}, nil
		}
	}

	if err := account.CanPost(); err != nil {
		return nil, err
	}

	// 3. Compute the new balance at the account precision.
	if err := account.ValidatePrecision(input.Amount); err != nil {
		return nil, err
	}
	newBalance, err := account.ApplyPosting(input.Amount)
	if err != nil {
		return nil, err
	}

	// 4. Keep history order equal to posting order.
	now := time.Now().UTC()
	occurredAt := now
	latest, err := uc.txRepo.GetLatestByAccount(txCtx, tx, account.ID)
	if err != nil {
		return nil, err
	}
	if input.OccurredAt != nil {
		occurredAt = *input.OccurredAt
		if latest != nil && occurredAt.Before(latest.OccurredAt) {
			return nil, fmt.Errorf("%w: %s is before %s", domain.ErrBackdatedPosting,
				occurredAt.Format(time.RFC3339Nano), latest.OccurredAt.Format(time.RFC3339Nano))
		}
	} else if latest != nil && occurredAt.Before(latest.OccurredAt) {
		occurredAt = latest.OccurredAt
	}

	// 5. Append the transaction and move the cached balance with it.
	txn := &domain.Transaction{
		ClientID:       input.ClientID,
		AccountID:      account.ID,
		OccurredAt:     occurredAt,
		Amount:         input.Amount,
		BalanceAfter:   newBalance,
		CategoryID:     input.CategoryID,
		ActorID:        input.ActorID,
		Comment:        input.Comment,
		Source:         input.Source,
		IdempotencyKey: reservation.Key,
		CreatedAt:      now,
	}
	if err := uc.txRepo.Create(txCtx, tx, txn); err != nil {
		return nil, err
	}

	if err := uc.accountRepo.UpdateBalance(txCtx, tx, account.ID, newBalance, account.Version+1, now); err != nil {
		return nil, err
	}

	// 6. Emit transaction posted event
	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   strconv.FormatInt(account.ID, 10),
		AggregateType: domain.AggregateTypeAccount,
		EventType:     domain.EventTypeTransactionPosted,
		Payload: map[string]any{
			"transaction_id": txn.ID,
			"client_id":      txn.ClientID,
			"account_id":     txn.AccountID,
			"currency":       account.Currency,
			"amount":         txn.Amount.String(),
			"balance_after":  txn.BalanceAfter.StringFixed(account.Precision),
			"occurred_at":    txn.OccurredAt.Format(time.RFC3339Nano),
		},
		CreatedAt: now,
	}
	if err := uc.outboxRepo.Create(txCtx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return &PostResult{Transaction: txn}, nil
}

func (uc *LedgerUseCase) recordPosting(currency, result string, start time.Time) {
	if uc.metrics == nil {
		return
	}
	uc.metrics.Postings.WithLabelValues(currency, result).Inc()
	uc.metrics.PostingDuration.Observe(time.Since(start).Seconds())
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrAccountNotFound), errors.Is(err, domain.ErrAccountInactive):
		return "rejected"
	case errors.Is(err, domain.ErrPrecisionViolation), errors.Is(err, domain.ErrBackdatedPosting):
		return "rejected"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return "conflict"
	default:
		return "error"
	}
}
