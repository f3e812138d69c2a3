package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNormalizeCurrency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "usd", want: "USD"},
		{in: "  eur ", want: "EUR"},
		{in: "руб", want: "RUB"},
		{in: "USDT", want: "USDT"},
		{in: "BTC2", want: "BTC2"},
		{in: "", wantErr: true},
		{in: "US-D", wantErr: true},
		{in: strings.Repeat("A", MaxCurrencyLength+1), wantErr: true},
	}

	for _, tt := range tests {
		got, err := NormalizeCurrency(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidCurrency) {
				t.Errorf("NormalizeCurrency(%q): expected ErrInvalidCurrency, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeCurrency(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeCurrency(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidatePrecision(t *testing.T) {
	t.Parallel()

	for _, p := range []int32{0, 2, 8} {
		if err := ValidatePrecision(p); err != nil {
			t.Fatalf("expected %d to be valid, got %v", p, err)
		}
	}

	for _, p := range []int32{-1, 9} {
		if err := ValidatePrecision(p); !errors.Is(err, ErrInvalidPrecision) {
			t.Fatalf("expected ErrInvalidPrecision for %d, got %v", p, err)
		}
	}
}

func TestValidateAmount(t *testing.T) {
	t.Parallel()

	if err := ValidateAmount(decimal.RequireFromString("-12.5")); err != nil {
		t.Fatalf("expected negative amount to be valid, got %v", err)
	}

	if err := ValidateAmount(decimal.Zero); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	huge := decimal.RequireFromString(MaxAbsAmount).Add(decimal.NewFromInt(1)).Neg()
	if err := ValidateAmount(huge); !errors.Is(err, ErrAmountTooLarge) {
		t.Fatalf("expected ErrAmountTooLarge, got %v", err)
	}
}

func TestNormalizeIdempotencyKey(t *testing.T) {
	t.Parallel()

	key, err := NormalizeIdempotencyKey(nil)
	if err != nil || key != nil {
		t.Fatalf("expected nil key, got %v, %v", key, err)
	}

	blank := "   "
	key, err = NormalizeIdempotencyKey(&blank)
	if err != nil || key != nil {
		t.Fatalf("expected blank key to be dropped, got %v, %v", key, err)
	}

	padded := " abc "
	key, err = NormalizeIdempotencyKey(&padded)
	if err != nil || key == nil || *key != "abc" {
		t.Fatalf("expected trimmed key, got %v, %v", key, err)
	}

	long := strings.Repeat("k", MaxIdempotencyKeyLength+1)
	if _, err := NormalizeIdempotencyKey(&long); !errors.Is(err, ErrInvalidIdempotencyKey) {
		t.Fatalf("expected ErrInvalidIdempotencyKey, got %v", err)
	}

	// The limit counts characters: 128 Cyrillic letters are 256 bytes.
	cyrillic := strings.Repeat("ж", MaxIdempotencyKeyLength)
	key, err = NormalizeIdempotencyKey(&cyrillic)
	if err != nil || key == nil || *key != cyrillic {
		t.Fatalf("expected %d-character key to pass, got %v", MaxIdempotencyKeyLength, err)
	}

	cyrillic += "ж"
	if _, err := NormalizeIdempotencyKey(&cyrillic); !errors.Is(err, ErrInvalidIdempotencyKey) {
		t.Fatalf("expected ErrInvalidIdempotencyKey, got %v", err)
	}
}

func TestValidateOccurredAt(t *testing.T) {
	t.Parallel()

	cases := []struct {
		at    time.Time
		valid bool
	}{
		{time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC), true},
		{MinOccurredAt, true},
		{MaxOccurredAt.Add(-time.Nanosecond), true},
		{MaxOccurredAt, false},
		{time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{time.Time{}, false},
	}
	for _, c := range cases {
		err := ValidateOccurredAt(c.at)
		if c.valid && err != nil {
			t.Errorf("ValidateOccurredAt(%s): unexpected error %v", c.at, err)
		}
		if !c.valid && !errors.Is(err, ErrInvalidOccurredAt) {
			t.Errorf("ValidateOccurredAt(%s): expected ErrInvalidOccurredAt, got %v", c.at, err)
		}
	}
}

func TestValidateOptionalText(t *testing.T) {
	t.Parallel()

	if err := ValidateOptionalText("comment", nil, 3); err != nil {
		t.Fatalf("nil should pass, got %v", err)
	}

	cyr := "привет"
	if err := ValidateOptionalText("comment", &cyr, 6); err != nil {
		t.Fatalf("length is counted in runes, got %v", err)
	}
	if err := ValidateOptionalText("comment", &cyr, 5); !errors.Is(err, ErrFieldTooLong) {
		t.Fatalf("expected ErrFieldTooLong, got %v", err)
	}
}

func TestValidateName(t *testing.T) {
	t.Parallel()

	if err := ValidateName("Food"); err != nil {
		t.Fatalf("expected valid name, got %v", err)
	}
	if err := ValidateName("  "); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestValidatePagination(t *testing.T) {
	t.Parallel()

	limit, offset := ValidatePagination(0, -10)
	if limit != 50 || offset != 0 {
		t.Fatalf("expected defaults, got limit=%d offset=%d", limit, offset)
	}

	limit, _ = ValidatePagination(5000, 0)
	if limit != 1000 {
		t.Fatalf("expected limit to be capped to 1000, got %d", limit)
	}
}
