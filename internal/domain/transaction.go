package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is an immutable record of one signed movement on one account.
type Transaction struct {
	ID             int64
	ClientID       int64
	AccountID      int64
	OccurredAt     time.Time
	Amount         decimal.Decimal
	BalanceAfter   decimal.Decimal
	CategoryID     *int64
	ActorID        *int64
	Comment        *string
	Source         *string
	IdempotencyKey *string
	CreatedAt      time.Time
}

// IsDebit reports whether the transaction decreased the balance.
func (t *Transaction) IsDebit() bool {
	return t.Amount.IsNegative()
}

// Less orders transactions by (OccurredAt, ID).
func (t *Transaction) Less(other *Transaction) bool {
	if !t.OccurredAt.Equal(other.OccurredAt) {
		return t.OccurredAt.Before(other.OccurredAt)
	}
	return t.ID < other.ID
}
