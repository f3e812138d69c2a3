package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/chatledger/internal/usecase"
)

// DefaultPrecision is used when an account is opened without an explicit precision.
const DefaultPrecision int32 = 2

// EnsureClientRequest registers a chat or refreshes its name and city.
type EnsureClientRequest struct {
	ChatRef int64   `json:"chat_ref" validate:"required"`
	Name    string  `json:"name" validate:"required,max=255"`
	City    *string `json:"city,omitempty" validate:"omitempty,max=255"`
}

// ToUseCaseInput converts to use case input.
func (r *EnsureClientRequest) ToUseCaseInput() usecase.EnsureClientInput {
	return usecase.EnsureClientInput{
		ChatRef: r.ChatRef,
		Name:    r.Name,
		City:    r.City,
	}
}

// SetCityRequest replaces the city of a client. A null city clears it.
type SetCityRequest struct {
	City *string `json:"city" validate:"omitempty,max=255"`
}

// OpenAccountRequest represents a request to open an account.
type OpenAccountRequest struct {
	Currency             string `json:"currency" validate:"required,currency"`
	Precision            *int32 `json:"precision,omitempty" validate:"omitempty,min=0,max=8"`
	AllowNegativeBalance *bool  `json:"allow_negative_balance,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *OpenAccountRequest) ToUseCaseInput(clientID int64) usecase.OpenAccountInput {
	precision := DefaultPrecision
	if r.Precision != nil {
		precision = *r.Precision
	}
	return usecase.OpenAccountInput{
		ClientID:             clientID,
		Currency:             r.Currency,
		Precision:            precision,
		AllowNegativeBalance: r.AllowNegativeBalance,
	}
}

// PostingRequest applies a signed amount to the client's account in Currency.
type PostingRequest struct {
	Currency       string          `json:"currency" validate:"required,currency"`
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty" validate:"omitempty,max=128"`
	CategoryID     *int64          `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	ActorID        *int64          `json:"actor_id,omitempty" validate:"omitempty,gt=0"`
	Comment        *string         `json:"comment,omitempty" validate:"omitempty,max=1000"`
	Source         *string         `json:"source,omitempty" validate:"omitempty,max=64"`
	OccurredAt     *time.Time      `json:"occurred_at,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *PostingRequest) ToUseCaseInput(clientID int64) usecase.PostInput {
	return usecase.PostInput{
		ClientID:       clientID,
		Currency:       r.Currency,
		Amount:         r.Amount,
		IdempotencyKey: r.IdempotencyKey,
		CategoryID:     r.CategoryID,
		ActorID:        r.ActorID,
		Comment:        r.Comment,
		Source:         r.Source,
		OccurredAt:     r.OccurredAt,
	}
}

// OverdraftRequest switches the negative balance policy of an account.
type OverdraftRequest struct {
	AllowNegativeBalance *bool `json:"allow_negative_balance" validate:"required"`
}

// CreateCategoryRequest represents a request to create a category.
type CreateCategoryRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// CreateActorRequest represents a request to create an actor.
type CreateActorRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=255"`
}

// AddManagerRequest grants manager rights to a user.
type AddManagerRequest struct {
	UserID      int64  `json:"user_id" validate:"required"`
	DisplayName string `json:"display_name" validate:"required,max=255"`
}
