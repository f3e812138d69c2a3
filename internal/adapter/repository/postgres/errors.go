package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iho/chatledger/internal/domain"
)

// PostgreSQL error codes mapped to domain errors.
const (
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
	pgErrLockNotAvailable     = "55P03"
	pgErrUniqueViolation      = "23505"
	pgErrForeignKeyViolation  = "23503"
)

// Constraint names from the schema migrations.
const (
	constraintIdempotencyKey  = "transactions_client_idempotency_key"
	constraintAccountPair     = "accounts_client_currency_key"
	constraintCategoryName    = "categories_name_key"
	constraintAccountClientFK = "accounts_client_id_fkey"
	constraintTxnCategoryFK   = "transactions_category_id_fkey"
	constraintTxnActorFK      = "transactions_actor_id_fkey"
)

// translateError maps PostgreSQL errors onto domain sentinels, keeping the original as detail.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgErrDeadlock, pgErrSerializationFailure, pgErrLockNotAvailable:
		return fmt.Errorf("%w: %s", domain.ErrConcurrencyConflict, pgErr.Message)
	case pgErrUniqueViolation:
		switch pgErr.ConstraintName {
		case constraintIdempotencyKey:
			return fmt.Errorf("%w: %s", domain.ErrIdempotencyConflict, pgErr.Detail)
		case constraintAccountPair:
			return fmt.Errorf("%w: %s", domain.ErrAccountAlreadyExists, pgErr.Detail)
		case constraintCategoryName:
			return fmt.Errorf("%w: %s", domain.ErrCategoryAlreadyExists, pgErr.Detail)
		}
	case pgErrForeignKeyViolation:
		switch pgErr.ConstraintName {
		case constraintAccountClientFK:
			return fmt.Errorf("%w: %s", domain.ErrClientNotFound, pgErr.Detail)
		case constraintTxnCategoryFK:
			return fmt.Errorf("%w: %s", domain.ErrCategoryNotFound, pgErr.Detail)
		case constraintTxnActorFK:
			return fmt.Errorf("%w: %s", domain.ErrActorNotFound, pgErr.Detail)
		}
	}

	return err
}
