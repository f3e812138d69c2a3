package usecase

import (
	"context"
	"iter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/chatledger/internal/domain"
)

// StatementQuery selects a page of history. From is inclusive, To is exclusive.
type StatementQuery struct {
	From   *time.Time
	To     *time.Time
	Cursor string
	Limit  int
}

// StatementPage is one page of transactions in (OccurredAt, ID) order.
// NextCursor is empty on the last page.
type StatementPage struct {
	Transactions []*domain.Transaction
	NextCursor   string
}

// StatementUseCase reads transaction history. It never takes account locks.
type StatementUseCase struct {
	accountRepo AccountRepository
	clientRepo  ClientRepository
	txRepo      TransactionRepository
}

// NewStatementUseCase creates a new StatementUseCase.
func NewStatementUseCase(accountRepo AccountRepository, clientRepo ClientRepository, txRepo TransactionRepository) *StatementUseCase {
	return &StatementUseCase{
		accountRepo: accountRepo,
		clientRepo:  clientRepo,
		txRepo:      txRepo,
	}
}

// ListTransactions returns one page of the account's history.
func (uc *StatementUseCase) ListTransactions(ctx context.Context, accountID int64, q StatementQuery) (*StatementPage, error) {
	if _, err := uc.accountRepo.GetByID(ctx, accountID); err != nil {
		return nil, err
	}

	filter, err := q.filter()
	if err != nil {
		return nil, err
	}

	limit := filter.Limit
	filter.Limit = limit + 1

	items, err := uc.txRepo.ListByAccount(ctx, accountID, filter)
	if err != nil {
		return nil, err
	}

	return paginate(items, limit), nil
}

// ListClientTransactions returns one page of every transaction of the client across accounts.
func (uc *StatementUseCase) ListClientTransactions(ctx context.Context, clientID int64, q StatementQuery) (*StatementPage, error) {
	if _, err := uc.clientRepo.GetByID(ctx, clientID); err != nil {
		return nil, err
	}

	filter, err := q.filter()
	if err != nil {
		return nil, err
	}

	limit := filter.Limit
	filter.Limit = limit + 1

	items, err := uc.txRepo.ListByClient(ctx, clientID, filter)
	if err != nil {
		return nil, err
	}

	return paginate(items, limit), nil
}

// All lazily iterates the account's history page by page, starting at q.Cursor.
// Iteration stops at the first error, which is yielded with a nil transaction.
func (uc *StatementUseCase) All(ctx context.Context, accountID int64, q StatementQuery) iter.Seq2[*domain.Transaction, error] {
	return func(yield func(*domain.Transaction, error) bool) {
		for {
			page, err := uc.ListTransactions(ctx, accountID, q)
			if err != nil {
				yield(nil, err)
				return
			}

			for _, txn := range page.Transactions {
				if !yield(txn, nil) {
					return
				}
			}

			if page.NextCursor == "" {
				return
			}
			q.Cursor = page.NextCursor
		}
	}
}

// BalanceAt returns the account balance as of asOf: the BalanceAfter of the latest
// transaction with OccurredAt <= asOf, or zero when there is none.
func (uc *StatementUseCase) BalanceAt(ctx context.Context, accountID int64, asOf time.Time) (decimal.Decimal, error) {
	if _, err := uc.accountRepo.GetByID(ctx, accountID); err != nil {
		return decimal.Zero, err
	}

	latest, err := uc.txRepo.GetLatestAt(ctx, accountID, asOf.UTC())
	if err != nil {
		return decimal.Zero, err
	}
	if latest == nil {
		return decimal.Zero, nil
	}

	return latest.BalanceAfter, nil
}

// GetTransaction retrieves a transaction by ID.
func (uc *StatementUseCase) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	return uc.txRepo.GetByID(ctx, id)
}

func (q StatementQuery) filter() (domain.StatementFilter, error) {
	cursor, err := domain.DecodeCursor(q.Cursor)
	if err != nil {
		return domain.StatementFilter{}, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultStatementLimit
	}
	if limit > MaxStatementLimit {
		limit = MaxStatementLimit
	}

	f := domain.StatementFilter{After: cursor, Limit: limit}
	if q.From != nil {
		from := q.From.UTC()
		f.From = &from
	}
	if q.To != nil {
		to := q.To.UTC()
		f.To = &to
	}

	return f, nil
}

func paginate(items []*domain.Transaction, limit int) *StatementPage {
	page := &StatementPage{Transactions: items}
	if len(items) > limit {
		page.Transactions = items[:limit]
		page.NextCursor = domain.CursorOf(items[limit-1]).Encode()
	}
	if page.Transactions == nil {
		page.Transactions = []*domain.Transaction{}
	}
	return page
}
