package dto

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/chatledger/internal/usecase"
)

func ptr[T any](v T) *T { return &v }

func TestOpenAccountRequest_ToUseCaseInput(t *testing.T) {
	tests := []struct {
		name    string
		request OpenAccountRequest
		want    usecase.OpenAccountInput
	}{
		{
			name:    "default precision",
			request: OpenAccountRequest{Currency: "usd"},
			want:    usecase.OpenAccountInput{ClientID: 7, Currency: "usd", Precision: DefaultPrecision},
		},
		{
			name:    "explicit zero precision",
			request: OpenAccountRequest{Currency: "JPY", Precision: ptr(int32(0))},
			want:    usecase.OpenAccountInput{ClientID: 7, Currency: "JPY", Precision: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.request.ToUseCaseInput(7)
			if got != tt.want {
				t.Fatalf("ToUseCaseInput() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPostingRequest_DecodeAndConvert(t *testing.T) {
	body := `{"currency":"руб","amount":"-12.50","idempotency_key":"k-1","comment":"lunch","occurred_at":"2026-01-02T03:04:05Z"}`

	var req PostingRequest
	if err := json.NewDecoder(strings.NewReader(body)).Decode(&req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := NewValidator().Struct(&req); err != nil {
		t.Fatalf("validate: %v", err)
	}

	got := req.ToUseCaseInput(3)
	if got.ClientID != 3 || got.Currency != "руб" {
		t.Fatalf("unexpected input %+v", got)
	}
	if !got.Amount.Equal(decimal.RequireFromString("-12.5")) {
		t.Fatalf("amount = %s", got.Amount)
	}
	if got.IdempotencyKey == nil || *got.IdempotencyKey != "k-1" {
		t.Fatalf("idempotency key = %v", got.IdempotencyKey)
	}
	want := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if got.OccurredAt == nil || !got.OccurredAt.Equal(want) {
		t.Fatalf("occurred_at = %v", got.OccurredAt)
	}
}

func TestValidator(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		value   any
		wantMsg string
	}{
		{name: "valid account", value: &OpenAccountRequest{Currency: "EUR"}},
		{name: "alias currency", value: &OpenAccountRequest{Currency: "доллар"}},
		{name: "missing currency", value: &OpenAccountRequest{}, wantMsg: "currency is required"},
		{name: "bad currency", value: &OpenAccountRequest{Currency: "U$D"}, wantMsg: `currency "U$D" is not a valid currency`},
		{name: "precision too high", value: &OpenAccountRequest{Currency: "BTC", Precision: ptr(int32(9))}, wantMsg: "precision must be at most 8"},
		{name: "missing chat ref", value: &EnsureClientRequest{Name: "team"}, wantMsg: "chat_ref is required"},
		{name: "negative chat ref", value: &EnsureClientRequest{ChatRef: -100, Name: "group"}},
		{name: "category id", value: &PostingRequest{Currency: "USD", CategoryID: ptr(int64(0))}, wantMsg: "category_id must be greater than 0"},
		{name: "long comment", value: &PostingRequest{Currency: "USD", Comment: ptr(strings.Repeat("x", 1001))}, wantMsg: "comment must be at most 1000"},
		{name: "overdraft flag required", value: &OverdraftRequest{}, wantMsg: "allow_negative_balance is required"},
		{name: "manager", value: &AddManagerRequest{UserID: 42, DisplayName: "Ann"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.value)
			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %q", tt.wantMsg)
			}
			if got := ValidationMessage(err); got != tt.wantMsg {
				t.Fatalf("ValidationMessage() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}
