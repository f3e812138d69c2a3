package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrInvalidCurrency   = errors.New("invalid currency code")
	ErrInvalidPrecision  = errors.New("invalid currency precision")
	ErrAmountTooLarge    = errors.New("amount exceeds maximum allowed")
	ErrFieldTooLong      = errors.New("field exceeds maximum length")
	ErrInvalidName       = errors.New("invalid name")
	ErrInvalidOccurredAt = errors.New("occurred_at out of range")
)

// Validation constants
const (
	MaxCurrencyLength       = 12
	MinPrecision            = 0
	MaxPrecision            = 8
	MaxAbsAmount            = "1000000000000000" // 10^15
	MaxIdempotencyKeyLength = 128
	MaxCommentLength        = 1000
	MaxSourceLength         = 64
	MaxNameLength           = 255
)

// Currency aliases accepted from chat input.
var currencyAliases = map[string]string{
	"РУБ":    "RUB",
	"РУБЛЬ":  "RUB",
	"ДОЛЛАР": "USD",
	"ЕВРО":   "EUR",
}

var maxAbsAmount = decimal.RequireFromString(MaxAbsAmount)

// Accepted window for caller-supplied transaction times, [MinOccurredAt, MaxOccurredAt).
var (
	MinOccurredAt = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	MaxOccurredAt = time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC)
)

// NormalizeCurrency trims, upper-cases and resolves aliases.
// The result is 1 to 12 ASCII letters or digits.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if alias, ok := currencyAliases[code]; ok {
		code = alias
	}

	if code == "" || len(code) > MaxCurrencyLength {
		return "", fmt.Errorf("%w: %q must be 1-%d characters", ErrInvalidCurrency, code, MaxCurrencyLength)
	}

	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("%w: %q contains %q", ErrInvalidCurrency, code, r)
		}
	}

	return code, nil
}

// ValidatePrecision checks the number of fractional digits of a currency.
func ValidatePrecision(precision int32) error {
	if precision < MinPrecision || precision > MaxPrecision {
		return fmt.Errorf("%w: %d is outside %d..%d", ErrInvalidPrecision, precision, MinPrecision, MaxPrecision)
	}
	return nil
}

// ValidateAmount validates a signed posting amount
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsZero() {
		return ErrInvalidAmount
	}

	if amount.Abs().GreaterThan(maxAbsAmount) {
		return fmt.Errorf("%w: maximum absolute amount is %s", ErrAmountTooLarge, MaxAbsAmount)
	}

	return nil
}

// NormalizeIdempotencyKey trims the key. A blank key means no deduplication and yields nil.
func NormalizeIdempotencyKey(key *string) (*string, error) {
	if key == nil {
		return nil, nil
	}

	trimmed := strings.TrimSpace(*key)
	if trimmed == "" {
		return nil, nil
	}

	if utf8.RuneCountInString(trimmed) > MaxIdempotencyKeyLength {
		return nil, fmt.Errorf("%w: exceeds %d characters", ErrInvalidIdempotencyKey, MaxIdempotencyKeyLength)
	}

	return &trimmed, nil
}

// ValidateOccurredAt checks a caller-supplied transaction time.
func ValidateOccurredAt(at time.Time) error {
	if at.Before(MinOccurredAt) || !at.Before(MaxOccurredAt) {
		return fmt.Errorf("%w: %s is outside %d..%d", ErrInvalidOccurredAt,
			at.Format(time.RFC3339), MinOccurredAt.Year(), MaxOccurredAt.Year()-1)
	}
	return nil
}

// ValidateOptionalText checks the rune length of an optional free-text field.
func ValidateOptionalText(field string, value *string, maxLen int) error {
	if value == nil {
		return nil
	}

	if n := utf8.RuneCountInString(*value); n > maxLen {
		return fmt.Errorf("%w: %s has %d characters, maximum is %d", ErrFieldTooLong, field, n, maxLen)
	}

	return nil
}

// ValidateName validates client, category and actor names
func ValidateName(name string) error {
	name = strings.TrimSpace(name)

	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}

	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, MaxNameLength)
	}

	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
