package domain

import "errors"

var (
	// Account errors
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountInactive      = errors.New("account is inactive")
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrInsufficientFunds    = errors.New("insufficient funds")

	// Posting errors
	ErrInvalidAmount         = errors.New("amount must not be zero")
	ErrPrecisionViolation    = errors.New("amount exceeds account precision")
	ErrBackdatedPosting      = errors.New("posting is older than the latest transaction")
	ErrIdempotencyConflict   = errors.New("idempotency key is being used concurrently")
	ErrConcurrencyConflict   = errors.New("concurrent modification, retry later")
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrInvalidIdempotencyKey = errors.New("invalid idempotency key")

	// Directory errors
	ErrClientNotFound        = errors.New("client not found")
	ErrCategoryNotFound      = errors.New("category not found")
	ErrCategoryAlreadyExists = errors.New("category already exists")
	ErrActorNotFound         = errors.New("actor not found")
	ErrManagerNotFound       = errors.New("manager not found")

	// Statement errors
	ErrInvalidCursor        = errors.New("invalid cursor")
	ErrInvalidBalanceFilter = errors.New("invalid balance filter")
)
