package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Account holds the balance of one client in one currency.
// Balance always equals the BalanceAfter of the latest transaction on the account.
type Account struct {
	ID                   int64
	ClientID             int64
	Currency             string
	Precision            int32
	Balance              decimal.Decimal
	AllowNegativeBalance bool
	IsActive             bool
	Version              int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
	DeactivatedAt        *time.Time
}

// CanPost reports whether the account accepts postings.
func (a *Account) CanPost() error {
	if !a.IsActive {
		return fmt.Errorf("%w: account %d", ErrAccountInactive, a.ID)
	}
	return nil
}

// ValidatePrecision rejects amounts carrying more fractional digits than the account allows.
func (a *Account) ValidatePrecision(amount decimal.Decimal) error {
	if !amount.Equal(amount.Truncate(a.Precision)) {
		return fmt.Errorf("%w: %s has more than %d fractional digits for %s",
			ErrPrecisionViolation, amount.String(), a.Precision, a.Currency)
	}
	return nil
}

// ApplyPosting returns the balance after adding the signed amount.
// The result is quantized to the account precision, rounding half away from zero.
// Credits are always accepted; a debit that leaves the balance below zero is
// rejected unless the account allows a negative balance.
func (a *Account) ApplyPosting(amount decimal.Decimal) (decimal.Decimal, error) {
	newBalance := a.Balance.Add(amount).Round(a.Precision)
	if amount.IsNegative() && newBalance.IsNegative() && !a.AllowNegativeBalance {
		return decimal.Zero, fmt.Errorf("%w: balance %s, amount %s",
			ErrInsufficientFunds, a.Balance.StringFixed(a.Precision), amount.String())
	}
	return newBalance, nil
}

// Deactivate marks the account inactive. It returns false when the account already was.
func (a *Account) Deactivate(at time.Time) bool {
	if !a.IsActive {
		return false
	}
	a.IsActive = false
	a.DeactivatedAt = &at
	a.UpdatedAt = at
	return true
}

// Reactivate reverses Deactivate. It returns false when the account already was active.
func (a *Account) Reactivate(at time.Time) bool {
	if a.IsActive {
		return false
	}
	a.IsActive = true
	a.DeactivatedAt = nil
	a.UpdatedAt = at
	return true
}
