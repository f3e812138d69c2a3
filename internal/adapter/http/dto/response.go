package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/chatledger/internal/domain"
	"github.com/iho/chatledger/internal/usecase"
)

// ClientResponse represents a client in API responses.
type ClientResponse struct {
	ID        int64     `json:"id"`
	ChatRef   int64     `json:"chat_ref"`
	Name      string    `json:"name"`
	City      *string   `json:"city"`
	CreatedAt time.Time `json:"created_at"`
}

// ClientFromDomain converts domain client to response.
func ClientFromDomain(c *domain.Client) *ClientResponse {
	return &ClientResponse{
		ID:        c.ID,
		ChatRef:   c.ChatRef,
		Name:      c.Name,
		City:      c.City,
		CreatedAt: c.CreatedAt,
	}
}

// ClientsFromDomain converts domain clients to responses.
func ClientsFromDomain(clients []*domain.Client) []*ClientResponse {
	result := make([]*ClientResponse, len(clients))
	for i, c := range clients {
		result[i] = ClientFromDomain(c)
	}
	return result
}

// ListClientsResponse is a page of clients.
type ListClientsResponse struct {
	Clients []*ClientResponse `json:"clients"`
	Limit   int               `json:"limit"`
	Offset  int               `json:"offset"`
}

// AccountResponse represents an account in API responses.
// Balance is rendered with exactly Precision fractional digits.
type AccountResponse struct {
	ID                   int64      `json:"id"`
	ClientID             int64      `json:"client_id"`
	Currency             string     `json:"currency"`
	Precision            int32      `json:"precision"`
	Balance              string     `json:"balance"`
	AllowNegativeBalance bool       `json:"allow_negative_balance"`
	IsActive             bool       `json:"is_active"`
	Version              int64      `json:"version"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	DeactivatedAt        *time.Time `json:"deactivated_at,omitempty"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:                   a.ID,
		ClientID:             a.ClientID,
		Currency:             a.Currency,
		Precision:            a.Precision,
		Balance:              a.Balance.StringFixed(a.Precision),
		AllowNegativeBalance: a.AllowNegativeBalance,
		IsActive:             a.IsActive,
		Version:              a.Version,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
		DeactivatedAt:        a.DeactivatedAt,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// ClientBalanceResponse is one row of the cross-client balance listing.
type ClientBalanceResponse struct {
	ClientID   int64  `json:"client_id"`
	ClientName string `json:"client_name"`
	ChatRef    int64  `json:"chat_ref"`
	AccountID  int64  `json:"account_id"`
	Currency   string `json:"currency"`
	Precision  int32  `json:"precision"`
	Balance    string `json:"balance"`
	IsActive   bool   `json:"is_active"`
}

// ClientBalancesFromDomain converts balances to responses.
func ClientBalancesFromDomain(balances []*domain.ClientBalance) []*ClientBalanceResponse {
	result := make([]*ClientBalanceResponse, len(balances))
	for i, b := range balances {
		result[i] = &ClientBalanceResponse{
			ClientID:   b.ClientID,
			ClientName: b.ClientName,
			ChatRef:    b.ChatRef,
			AccountID:  b.AccountID,
			Currency:   b.Currency,
			Precision:  b.Precision,
			Balance:    b.Balance.StringFixed(b.Precision),
			IsActive:   b.IsActive,
		}
	}
	return result
}

// TransactionResponse represents a transaction in API responses.
type TransactionResponse struct {
	ID             int64           `json:"id"`
	ClientID       int64           `json:"client_id"`
	AccountID      int64           `json:"account_id"`
	OccurredAt     time.Time       `json:"occurred_at"`
	Amount         decimal.Decimal `json:"amount"`
	BalanceAfter   decimal.Decimal `json:"balance_after"`
	CategoryID     *int64          `json:"category_id,omitempty"`
	ActorID        *int64          `json:"actor_id,omitempty"`
	Comment        *string         `json:"comment,omitempty"`
	Source         *string         `json:"source,omitempty"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// TransactionFromDomain converts domain transaction to response.
func TransactionFromDomain(t *domain.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:             t.ID,
		ClientID:       t.ClientID,
		AccountID:      t.AccountID,
		OccurredAt:     t.OccurredAt,
		Amount:         t.Amount,
		BalanceAfter:   t.BalanceAfter,
		CategoryID:     t.CategoryID,
		ActorID:        t.ActorID,
		Comment:        t.Comment,
		Source:         t.Source,
		IdempotencyKey: t.IdempotencyKey,
		CreatedAt:      t.CreatedAt,
	}
}

// TransactionsFromDomain converts domain transactions to responses.
func TransactionsFromDomain(txs []*domain.Transaction) []*TransactionResponse {
	result := make([]*TransactionResponse, len(txs))
	for i, t := range txs {
		result[i] = TransactionFromDomain(t)
	}
	return result
}

// PostingResponse is the committed transaction of a posting.
// Replayed is set when an earlier posting with the same idempotency key was returned.
type PostingResponse struct {
	Transaction *TransactionResponse `json:"transaction"`
	Replayed    bool                 `json:"replayed"`
}

// PostingFromResult converts a posting result to response.
func PostingFromResult(r *usecase.PostResult) *PostingResponse {
	return &PostingResponse{
		Transaction: TransactionFromDomain(r.Transaction),
		Replayed:    r.Replayed,
	}
}

// StatementResponse is one page of a statement.
type StatementResponse struct {
	Transactions []*TransactionResponse `json:"transactions"`
	NextCursor   string                 `json:"next_cursor,omitempty"`
}

// StatementFromPage converts a statement page to response.
func StatementFromPage(p *usecase.StatementPage) *StatementResponse {
	return &StatementResponse{
		Transactions: TransactionsFromDomain(p.Transactions),
		NextCursor:   p.NextCursor,
	}
}

// BalanceResponse is the balance of an account at a point in time.
type BalanceResponse struct {
	AccountID int64           `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	At        time.Time       `json:"at"`
}

// ReconciliationResponse is the reconciliation of one account.
type ReconciliationResponse struct {
	AccountID         int64           `json:"account_id"`
	Currency          string          `json:"currency"`
	RecordedBalance   decimal.Decimal `json:"recorded_balance"`
	CalculatedBalance decimal.Decimal `json:"calculated_balance"`
	LatestSnapshot    decimal.Decimal `json:"latest_snapshot"`
	Difference        decimal.Decimal `json:"difference"`
	TransactionCount  int             `json:"transaction_count"`
	BrokenLinks       int             `json:"broken_links"`
	IsReconciled      bool            `json:"is_reconciled"`
	LastChecked       time.Time       `json:"last_checked"`
}

// ReconciliationFromResult converts a reconciliation result to response.
func ReconciliationFromResult(r *usecase.ReconciliationResult) *ReconciliationResponse {
	return &ReconciliationResponse{
		AccountID:         r.AccountID,
		Currency:          r.Currency,
		RecordedBalance:   r.RecordedBalance,
		CalculatedBalance: r.CalculatedBalance,
		LatestSnapshot:    r.LatestSnapshot,
		Difference:        r.Difference,
		TransactionCount:  r.TransactionCount,
		BrokenLinks:       r.BrokenLinks,
		IsReconciled:      r.IsReconciled,
		LastChecked:       r.LastChecked,
	}
}

// ReconciliationReportResponse summarizes a reconciliation of the whole ledger.
type ReconciliationReportResponse struct {
	TotalAccounts      int                       `json:"total_accounts"`
	ReconciledAccounts int                       `json:"reconciled_accounts"`
	Discrepancies      []*ReconciliationResponse `json:"discrepancies"`
	CheckedAt          time.Time                 `json:"checked_at"`
}

// ReconciliationReportFromDomain converts a reconciliation report to response.
func ReconciliationReportFromDomain(r *usecase.ReconciliationReport) *ReconciliationReportResponse {
	discrepancies := make([]*ReconciliationResponse, len(r.Discrepancies))
	for i, d := range r.Discrepancies {
		discrepancies[i] = ReconciliationFromResult(d)
	}
	return &ReconciliationReportResponse{
		TotalAccounts:      r.TotalAccounts,
		ReconciledAccounts: r.ReconciledAccounts,
		Discrepancies:      discrepancies,
		CheckedAt:          r.CheckedAt,
	}
}

// CategoryResponse represents a category in API responses.
type CategoryResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CategoriesFromDomain converts domain categories to responses.
func CategoriesFromDomain(categories []*domain.Category) []*CategoryResponse {
	result := make([]*CategoryResponse, len(categories))
	for i, c := range categories {
		result[i] = &CategoryResponse{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt}
	}
	return result
}

// ActorResponse represents an actor in API responses.
type ActorResponse struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// ActorsFromDomain converts domain actors to responses.
func ActorsFromDomain(actors []*domain.Actor) []*ActorResponse {
	result := make([]*ActorResponse, len(actors))
	for i, a := range actors {
		result[i] = &ActorResponse{ID: a.ID, DisplayName: a.DisplayName, CreatedAt: a.CreatedAt}
	}
	return result
}

// ManagerResponse represents a manager in API responses.
type ManagerResponse struct {
	UserID      int64     `json:"user_id"`
	DisplayName string    `json:"display_name"`
	AddedAt     time.Time `json:"added_at"`
}

// ManagersFromDomain converts domain managers to responses.
func ManagersFromDomain(managers []*domain.Manager) []*ManagerResponse {
	result := make([]*ManagerResponse, len(managers))
	for i, m := range managers {
		result[i] = &ManagerResponse{UserID: m.UserID, DisplayName: m.DisplayName, AddedAt: m.AddedAt}
	}
	return result
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
