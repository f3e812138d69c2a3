package domain

import "time"

// Event types
const (
	EventTypeTransactionPosted  = "transaction.posted"
	EventTypeAccountOpened      = "account.opened"
	EventTypeAccountDeactivated = "account.deactivated"
	EventTypeAccountReactivated = "account.reactivated"
)

// Aggregate types
const (
	AggregateTypeAccount = "account"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// TransactionPostedEvent payload
type TransactionPostedEvent struct {
	TransactionID int64  `json:"transaction_id"`
	ClientID      int64  `json:"client_id"`
	AccountID     int64  `json:"account_id"`
	Currency      string `json:"currency"`
	Amount        string `json:"amount"`
	BalanceAfter  string `json:"balance_after"`
	OccurredAt    string `json:"occurred_at"`
}

// AccountOpenedEvent payload
type AccountOpenedEvent struct {
	AccountID int64  `json:"account_id"`
	ClientID  int64  `json:"client_id"`
	Currency  string `json:"currency"`
	Precision int32  `json:"precision"`
}

// AccountStatusEvent payload for deactivation and reactivation
type AccountStatusEvent struct {
	AccountID int64  `json:"account_id"`
	ClientID  int64  `json:"client_id"`
	Currency  string `json:"currency"`
	Active    bool   `json:"active"`
}
