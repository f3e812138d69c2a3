package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// BalanceSign restricts a balance listing to one side of zero.
type BalanceSign int8

const (
	SignAny      BalanceSign = 0
	SignPositive BalanceSign = 1
	SignNegative BalanceSign = -1
)

// ParseBalanceSign accepts "", "+", "-", "positive" and "negative".
// Typographic minus and plus signs count as their ASCII forms.
func ParseBalanceSign(s string) (BalanceSign, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return SignAny, nil
	case "+", "＋", "positive":
		return SignPositive, nil
	case "-", "−", "–", "—", "negative":
		return SignNegative, nil
	}
	return SignAny, fmt.Errorf("%w: unknown sign %q", ErrInvalidBalanceFilter, s)
}

// BalanceFilter selects account balances across all clients.
// Zero values select everything.
type BalanceFilter struct {
	Currency   string
	ActiveOnly bool
	NonZero    bool
	Sign       BalanceSign
	// MinAbs drops balances whose absolute value is below it.
	MinAbs decimal.Decimal
}

// Validate normalizes Currency and rejects a negative MinAbs.
func (f *BalanceFilter) Validate() error {
	if f.Currency != "" {
		currency, err := NormalizeCurrency(f.Currency)
		if err != nil {
			return err
		}
		f.Currency = currency
	}
	if f.MinAbs.IsNegative() {
		return fmt.Errorf("%w: min_abs must not be negative", ErrInvalidBalanceFilter)
	}
	switch f.Sign {
	case SignAny, SignPositive, SignNegative:
	default:
		return fmt.Errorf("%w: unknown sign %d", ErrInvalidBalanceFilter, f.Sign)
	}
	return nil
}

// Matches reports whether the account passes the filter.
func (f BalanceFilter) Matches(a *Account) bool {
	if f.Currency != "" && a.Currency != f.Currency {
		return false
	}
	if f.ActiveOnly && !a.IsActive {
		return false
	}
	if f.NonZero && a.Balance.IsZero() {
		return false
	}
	if f.Sign != SignAny && a.Balance.Sign() != int(f.Sign) {
		return false
	}
	return a.Balance.Abs().GreaterThanOrEqual(f.MinAbs)
}

// ClientBalance is one account balance together with the client that owns it.
type ClientBalance struct {
	ClientID   int64
	ClientName string
	ChatRef    int64
	AccountID  int64
	Currency   string
	Precision  int32
	Balance    decimal.Decimal
	IsActive   bool
}

// NewClientBalance joins an account with its owner.
func NewClientBalance(c *Client, a *Account) *ClientBalance {
	return &ClientBalance{
		ClientID:   c.ID,
		ClientName: c.Name,
		ChatRef:    c.ChatRef,
		AccountID:  a.ID,
		Currency:   a.Currency,
		Precision:  a.Precision,
		Balance:    a.Balance,
		IsActive:   a.IsActive,
	}
}
