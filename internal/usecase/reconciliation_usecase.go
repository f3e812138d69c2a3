package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/chatledger/internal/domain"
	"github.com/iho/chatledger/internal/infrastructure/metrics"
)

const reconcileBatchSize = 500

// ReconciliationUseCase verifies cached balances against the transaction log.
type ReconciliationUseCase struct {
	accountRepo AccountRepository
	txRepo      TransactionRepository
	metrics     *metrics.Metrics
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(accountRepo AccountRepository, txRepo TransactionRepository, metrics *metrics.Metrics) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		accountRepo: accountRepo,
		txRepo:      txRepo,
		metrics:     metrics,
	}
}

// ReconciliationResult represents the result of a reconciliation check
type ReconciliationResult struct {
	AccountID         int64
	Currency          string
	RecordedBalance   decimal.Decimal
	CalculatedBalance decimal.Decimal
	LatestSnapshot    decimal.Decimal
	Difference        decimal.Decimal
	TransactionCount  int
	BrokenLinks       int
	IsReconciled      bool
	LastChecked       time.Time
}

// ReconcileAccount replays the account log. It checks every BalanceAfter against the
// running total and the cached balance against the latest BalanceAfter.
func (uc *ReconciliationUseCase) ReconcileAccount(ctx context.Context, accountID int64) (*ReconciliationResult, error) {
	account, err := uc.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	running := decimal.Zero
	snapshot := decimal.Zero
	count, broken := 0, 0

	filter := domain.StatementFilter{Limit: reconcileBatchSize}
	for {
		batch, err := uc.txRepo.ListByAccount(ctx, accountID, filter)
		if err != nil {
			return nil, err
		}

		for _, txn := range batch {
			running = running.Add(txn.Amount).Round(account.Precision)
			if !running.Equal(txn.BalanceAfter) {
				broken++
				// Continue from the recorded snapshot so one bad row is counted once.
				running = txn.BalanceAfter
			}
			snapshot = txn.BalanceAfter
			count++
		}

		if len(batch) < reconcileBatchSize {
			break
		}
		cursor := domain.CursorOf(batch[len(batch)-1])
		filter.After = &cursor
	}

	return &ReconciliationResult{
		AccountID:         account.ID,
		Currency:          account.Currency,
		RecordedBalance:   account.Balance,
		CalculatedBalance: running,
		LatestSnapshot:    snapshot,
		Difference:        account.Balance.Sub(snapshot),
		TransactionCount:  count,
		BrokenLinks:       broken,
		IsReconciled:      broken == 0 && account.Balance.Equal(snapshot),
		LastChecked:       time.Now().UTC(),
	}, nil
}

// ReconcileAllAccounts reconciles all accounts in the system
func (uc *ReconciliationUseCase) ReconcileAllAccounts(ctx context.Context) ([]*ReconciliationResult, error) {
	var (
		results []*ReconciliationResult
		afterID int64
	)

	for {
		accounts, err := uc.accountRepo.ListAfter(ctx, afterID, reconcileBatchSize)
		if err != nil {
			return nil, err
		}

		for _, account := range accounts {
			result, err := uc.ReconcileAccount(ctx, account.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to reconcile account %d: %w", account.ID, err)
			}
			results = append(results, result)
			afterID = account.ID
		}

		if len(accounts) < reconcileBatchSize {
			return results, nil
		}
	}
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	TotalAccounts      int
	ReconciledAccounts int
	Discrepancies      []*ReconciliationResult
	CheckedAt          time.Time
}

// GenerateReconciliationReport generates a reconciliation report over every account
func (uc *ReconciliationUseCase) GenerateReconciliationReport(ctx context.Context) (*ReconciliationReport, error) {
	results, err := uc.ReconcileAllAccounts(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReconciliationReport{
		TotalAccounts: len(results),
		Discrepancies: make([]*ReconciliationResult, 0),
		CheckedAt:     time.Now().UTC(),
	}

	for _, result := range results {
		if result.IsReconciled {
			report.ReconciledAccounts++
		} else {
			report.Discrepancies = append(report.Discrepancies, result)
		}
	}

	if uc.metrics != nil {
		uc.metrics.ReconciliationRuns.Inc()
		uc.metrics.ReconciliationDiscrepancies.Set(float64(len(report.Discrepancies)))
	}

	return report, nil
}
