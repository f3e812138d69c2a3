package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/chatledger/internal/domain"
	"github.com/iho/chatledger/internal/usecase"
)

const transactionColumns = `id, client_id, account_id, occurred_at, amount, balance_after,
	category_id, actor_id, comment, source, idempotency_key, created_at`

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	db DB
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(db DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const createTransactionQuery = `
INSERT INTO transactions (client_id, account_id, occurred_at, amount, balance_after,
	category_id, actor_id, comment, source, idempotency_key, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id`

// Create appends txn to the log. OccurredAt is truncated to the column resolution
// so cursors built from the returned value match what a later read sees.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
	q, err := conn(r.db, tx)
	if err != nil {
		return err
	}

	txn.OccurredAt = txn.OccurredAt.UTC().Truncate(time.Microsecond)
	txn.CreatedAt = txn.CreatedAt.UTC().Truncate(time.Microsecond)

	err = q.QueryRow(ctx, createTransactionQuery,
		txn.ClientID,
		txn.AccountID,
		timeToPgTimestamptz(txn.OccurredAt),
		decimalToNumeric(txn.Amount),
		decimalToNumeric(txn.BalanceAfter),
		txn.CategoryID,
		txn.ActorID,
		txn.Comment,
		txn.Source,
		txn.IdempotencyKey,
		timeToPgTimestamptz(txn.CreatedAt),
	).Scan(&txn.ID)

	return translateError(err)
}

// GetByIdempotencyKey returns the transaction recorded for (clientID, key).
func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, tx usecase.Transaction, clientID int64, key string) (*domain.Transaction, error) {
	q, err := conn(r.db, tx)
	if err != nil {
		return nil, err
	}

	row := q.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE client_id = $1 AND idempotency_key = $2`,
		clientID, key)
	return scanTransactionRow(row)
}

// GetByID retrieves a transaction by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	return scanTransactionRow(row)
}

// GetLatestByAccount returns the newest transaction of the account, or nil.
func (r *TransactionRepository) GetLatestByAccount(ctx context.Context, tx usecase.Transaction, accountID int64) (*domain.Transaction, error) {
	q, err := conn(r.db, tx)
	if err != nil {
		return nil, err
	}

	row := q.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE account_id = $1
		ORDER BY occurred_at DESC, id DESC LIMIT 1`, accountID)
	return latestOrNil(row)
}

// GetLatestAt returns the newest transaction with occurred_at <= at, or nil.
func (r *TransactionRepository) GetLatestAt(ctx context.Context, accountID int64, at time.Time) (*domain.Transaction, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE account_id = $1 AND occurred_at <= $2
		ORDER BY occurred_at DESC, id DESC LIMIT 1`, accountID, timeToPgTimestamptz(at))
	return latestOrNil(row)
}

// ListByAccount lists account transactions in (occurred_at, id) order.
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID int64, filter domain.StatementFilter) ([]*domain.Transaction, error) {
	return r.list(ctx, "account_id", accountID, filter)
}

// ListByClient lists client transactions across accounts in (occurred_at, id) order.
func (r *TransactionRepository) ListByClient(ctx context.Context, clientID int64, filter domain.StatementFilter) ([]*domain.Transaction, error) {
	return r.list(ctx, "client_id", clientID, filter)
}

func (r *TransactionRepository) list(ctx context.Context, column string, id int64, filter domain.StatementFilter) ([]*domain.Transaction, error) {
	sql, args := buildStatementQuery(column, id, filter)

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	txns := make([]*domain.Transaction, 0)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}

	return txns, rows.Err()
}

// buildStatementQuery renders the keyset query for a statement window.
// column is one of the fixed owner columns and never user input.
func buildStatementQuery(column string, id int64, filter domain.StatementFilter) (string, []any) {
	var sb strings.Builder
	args := []any{id}

	sb.WriteString(`SELECT ` + transactionColumns + ` FROM transactions WHERE ` + column + ` = $1`)

	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.From != nil {
		sb.WriteString(` AND occurred_at >= ` + arg(timeToPgTimestamptz(*filter.From)))
	}
	if filter.To != nil {
		sb.WriteString(` AND occurred_at < ` + arg(timeToPgTimestamptz(*filter.To)))
	}
	if filter.After != nil {
		at := arg(timeToPgTimestamptz(filter.After.OccurredAt))
		sb.WriteString(` AND (occurred_at, id) > (` + at + `, ` + arg(filter.After.ID) + `)`)
	}

	sb.WriteString(` ORDER BY occurred_at, id`)
	if filter.Limit > 0 {
		sb.WriteString(` LIMIT ` + arg(filter.Limit))
	}

	return sb.String(), args
}

func latestOrNil(row pgx.Row) (*domain.Transaction, error) {
	txn, err := scanTransactionRow(row)
	if errors.Is(err, domain.ErrTransactionNotFound) {
		return nil, nil
	}
	return txn, err
}

func scanTransactionRow(row pgx.Row) (*domain.Transaction, error) {
	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, translateError(err)
	}
	return txn, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		txn          domain.Transaction
		amount       pgtype.Numeric
		balanceAfter pgtype.Numeric
	)

	err := row.Scan(
		&txn.ID,
		&txn.ClientID,
		&txn.AccountID,
		&txn.OccurredAt,
		&amount,
		&balanceAfter,
		&txn.CategoryID,
		&txn.ActorID,
		&txn.Comment,
		&txn.Source,
		&txn.IdempotencyKey,
		&txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.Amount = numericToDecimal(amount)
	txn.BalanceAfter = numericToDecimal(balanceAfter)
	txn.OccurredAt = txn.OccurredAt.UTC()
	txn.CreatedAt = txn.CreatedAt.UTC()

	return &txn, nil
}
