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
	"github.com/shopspring/decimal"

	"github.com/iho/chatledger/internal/domain"
	"github.com/iho/chatledger/internal/usecase"
)

const accountColumns = `id, client_id, currency, precision_digits, balance, allow_negative_balance,
	is_active, version, created_at, updated_at, deactivated_at`

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	db DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const createAccountQuery = `
INSERT INTO accounts (client_id, currency, precision_digits, balance, allow_negative_balance,
	is_active, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`

// Create inserts the account and assigns its ID.
func (r *AccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	q, err := conn(r.db, tx)
	if err != nil {
		return err
	}

	err = q.QueryRow(ctx, createAccountQuery,
		account.ClientID,
		account.Currency,
		account.Precision,
		decimalToNumeric(account.Balance),
		account.AllowNegativeBalance,
		account.IsActive,
		account.Version,
		timeToPgTimestamptz(account.CreatedAt),
		timeToPgTimestamptz(account.UpdatedAt),
	).Scan(&account.ID)

	return translateError(err)
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccountRow(row)
}

// GetByClientCurrency retrieves the account of a client in a currency.
func (r *AccountRepository) GetByClientCurrency(ctx context.Context, clientID int64, currency string) (*domain.Account, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE client_id = $1 AND currency = $2`,
		clientID, currency)
	return scanAccountRow(row)
}

// GetByIDForUpdate retrieves an account by ID with a FOR UPDATE lock.
func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id int64) (*domain.Account, error) {
	q, err := conn(r.db, tx)
	if err != nil {
		return nil, err
	}

	row := q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
	return scanAccountRow(row)
}

// GetByClientCurrencyForUpdate retrieves the (client, currency) account with a FOR UPDATE lock.
func (r *AccountRepository) GetByClientCurrencyForUpdate(ctx context.Context, tx usecase.Transaction, clientID int64, currency string) (*domain.Account, error) {
	q, err := conn(r.db, tx)
	if err != nil {
		return nil, err
	}

	row := q.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE client_id = $1 AND currency = $2 FOR UPDATE`,
		clientID, currency)
	return scanAccountRow(row)
}

// ListByClient lists the accounts of a client ordered by ID.
func (r *AccountRepository) ListByClient(ctx context.Context, clientID int64) ([]*domain.Account, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE client_id = $1 ORDER BY id`, clientID)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

// ListAfter lists up to limit accounts with ID greater than afterID.
func (r *AccountRepository) ListAfter(ctx context.Context, afterID int64, limit int) ([]*domain.Account, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id > $1 ORDER BY id LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

// ListBalances lists the balances passing filter joined with their clients.
func (r *AccountRepository) ListBalances(ctx context.Context, filter domain.BalanceFilter) ([]*domain.ClientBalance, error) {
	sql, args := buildBalancesQuery(filter)
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	balances := make([]*domain.ClientBalance, 0)
	for rows.Next() {
		var (
			b       domain.ClientBalance
			balance pgtype.Numeric
		)
		if err := rows.Scan(&b.ClientID, &b.ClientName, &b.ChatRef, &b.AccountID,
			&b.Currency, &b.Precision, &balance, &b.IsActive); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		b.Balance = numericToDecimal(balance)
		balances = append(balances, &b)
	}

	return balances, rows.Err()
}

func buildBalancesQuery(filter domain.BalanceFilter) (string, []any) {
	var sb strings.Builder
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	sb.WriteString(`SELECT a.client_id, c.name, c.chat_ref, a.id, a.currency, a.precision_digits, a.balance, a.is_active
FROM accounts a JOIN clients c ON c.id = a.client_id WHERE TRUE`)

	if filter.Currency != "" {
		sb.WriteString(` AND a.currency = ` + arg(filter.Currency))
	}
	if filter.ActiveOnly {
		sb.WriteString(` AND a.is_active`)
	}
	if filter.NonZero {
		sb.WriteString(` AND a.balance <> 0`)
	}
	switch filter.Sign {
	case domain.SignPositive:
		sb.WriteString(` AND a.balance > 0`)
	case domain.SignNegative:
		sb.WriteString(` AND a.balance < 0`)
	}
	if filter.MinAbs.IsPositive() {
		sb.WriteString(` AND abs(a.balance) >= ` + arg(decimalToNumeric(filter.MinAbs)))
	}

	sb.WriteString(` ORDER BY a.client_id, a.currency`)

	return sb.String(), args
}

// UpdateBalance updates the balance and version of an account.
func (r *AccountRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, id int64, balance decimal.Decimal, version int64, updatedAt time.Time) error {
	return r.exec(ctx, tx,
		`UPDATE accounts SET balance = $2, version = $3, updated_at = $4 WHERE id = $1`,
		id, decimalToNumeric(balance), version, timeToPgTimestamptz(updatedAt))
}

// UpdateStatus persists the active flag and deactivation time.
func (r *AccountRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	deactivatedAt := pgtype.Timestamptz{}
	if account.DeactivatedAt != nil {
		deactivatedAt = timeToPgTimestamptz(*account.DeactivatedAt)
	}

	return r.exec(ctx, tx,
		`UPDATE accounts SET is_active = $2, deactivated_at = $3, updated_at = $4 WHERE id = $1`,
		account.ID, account.IsActive, deactivatedAt, timeToPgTimestamptz(account.UpdatedAt))
}

// UpdateOverdraft updates the negative balance flag.
func (r *AccountRepository) UpdateOverdraft(ctx context.Context, tx usecase.Transaction, id int64, allowNegative bool, updatedAt time.Time) error {
	return r.exec(ctx, tx,
		`UPDATE accounts SET allow_negative_balance = $2, updated_at = $3 WHERE id = $1`,
		id, allowNegative, timeToPgTimestamptz(updatedAt))
}

func (r *AccountRepository) exec(ctx context.Context, tx usecase.Transaction, sql string, args ...any) error {
	q, err := conn(r.db, tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func scanAccountRow(row pgx.Row) (*domain.Account, error) {
	acc, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, translateError(err)
	}
	return acc, nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		acc           domain.Account
		balance       pgtype.Numeric
		deactivatedAt pgtype.Timestamptz
	)

	err := row.Scan(
		&acc.ID,
		&acc.ClientID,
		&acc.Currency,
		&acc.Precision,
		&balance,
		&acc.AllowNegativeBalance,
		&acc.IsActive,
		&acc.Version,
		&acc.CreatedAt,
		&acc.UpdatedAt,
		&deactivatedAt,
	)
	if err != nil {
		return nil, err
	}

	acc.Balance = numericToDecimal(balance)
	acc.DeactivatedAt = optionalTime(deactivatedAt)
	acc.CreatedAt = acc.CreatedAt.UTC()
	acc.UpdatedAt = acc.UpdatedAt.UTC()

	return &acc, nil
}

func collectAccounts(rows pgx.Rows) ([]*domain.Account, error) {
	defer rows.Close()

	accounts := make([]*domain.Account, 0)
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}

	return accounts, rows.Err()
}
