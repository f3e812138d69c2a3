package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/chatledger/internal/adapter/http/dto"
	"github.com/iho/chatledger/internal/usecase"
)

// StatementService defines the behavior needed by StatementHandler.
type StatementService interface {
	ListTransactions(ctx context.Context, accountID int64, q usecase.StatementQuery) (*usecase.StatementPage, error)
	ListClientTransactions(ctx context.Context, clientID int64, q usecase.StatementQuery) (*usecase.StatementPage, error)
	BalanceAt(ctx context.Context, accountID int64, asOf time.Time) (decimal.Decimal, error)
}

// StatementHandler serves transaction history.
type StatementHandler struct {
	statementUC StatementService
	now         func() time.Time
}

// NewStatementHandler creates a new StatementHandler.
func NewStatementHandler(statementUC StatementService) *StatementHandler {
	return &StatementHandler{statementUC: statementUC, now: time.Now}
}

// ListByAccount returns one page of an account statement.
func (h *StatementHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := parseIDParam(w, r, "accountID")
	if !ok {
		return
	}
	q, ok := statementQuery(w, r)
	if !ok {
		return
	}

	page, err := h.statementUC.ListTransactions(r.Context(), accountID, q)
	if err != nil {
		writeDomainError(w, r, "failed to list transactions", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.StatementFromPage(page))
}

// ListByClient returns one page of the history of every account of a client.
func (h *StatementHandler) ListByClient(w http.ResponseWriter, r *http.Request) {
	clientID, ok := parseIDParam(w, r, "clientID")
	if !ok {
		return
	}
	q, ok := statementQuery(w, r)
	if !ok {
		return
	}

	page, err := h.statementUC.ListClientTransactions(r.Context(), clientID, q)
	if err != nil {
		writeDomainError(w, r, "failed to list transactions", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.StatementFromPage(page))
}

// Balance returns the balance of an account as of ?at=, defaulting to now.
func (h *StatementHandler) Balance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := parseIDParam(w, r, "accountID")
	if !ok {
		return
	}

	at, err := parseTimeQuery(r, "at")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid query", err.Error())
		return
	}
	asOf := h.now().UTC()
	if at != nil {
		asOf = *at
	}

	balance, err := h.statementUC.BalanceAt(r.Context(), accountID, asOf)
	if err != nil {
		writeDomainError(w, r, "failed to get balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceResponse{
		AccountID: accountID,
		Balance:   balance,
		At:        asOf,
	})
}

func statementQuery(w http.ResponseWriter, r *http.Request) (usecase.StatementQuery, bool) {
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid query", err.Error())
		return usecase.StatementQuery{}, false
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid query", err.Error())
		return usecase.StatementQuery{}, false
	}

	return usecase.StatementQuery{
		From:   from,
		To:     to,
		Cursor: r.URL.Query().Get("cursor"),
		Limit:  parseIntQuery(r, "limit", usecase.DefaultStatementLimit),
	}, true
}
