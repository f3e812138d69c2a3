package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/chatledger/internal/adapter/http/dto"
	"github.com/iho/chatledger/internal/domain"
	"github.com/iho/chatledger/internal/usecase"
)

// AccountService defines the behavior needed by AccountHandler.
type AccountService interface {
	OpenAccount(ctx context.Context, input usecase.OpenAccountInput) (*domain.Account, error)
	GetAccount(ctx context.Context, clientID int64, currency string) (*domain.Account, error)
	GetAccountByID(ctx context.Context, id int64) (*domain.Account, error)
	ListClientAccounts(ctx context.Context, clientID int64) ([]*domain.Account, error)
	Deactivate(ctx context.Context, id int64) (*domain.Account, error)
	Reactivate(ctx context.Context, id int64) (*domain.Account, error)
	SetOverdraftPolicy(ctx context.Context, id int64, allowNegative bool) (*domain.Account, error)
	ListBalances(ctx context.Context, filter domain.BalanceFilter) ([]*domain.ClientBalance, error)
}

// AccountHandler handles account-related HTTP requests.
type AccountHandler struct {
	accountUC AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountUC AccountService) *AccountHandler {
	return &AccountHandler{accountUC: accountUC}
}

// Open opens an account for the client in the requested currency.
func (h *AccountHandler) Open(w http.ResponseWriter, r *http.Request) {
	clientID, ok := parseIDParam(w, r, "clientID")
	if !ok {
		return
	}

	var req dto.OpenAccountRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	account, err := h.accountUC.OpenAccount(r.Context(), req.ToUseCaseInput(clientID))
	if err != nil {
		writeDomainError(w, r, "failed to open account", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.AccountFromDomain(account))
}

// ListByClient lists every account of a client, inactive ones included.
func (h *AccountHandler) ListByClient(w http.ResponseWriter, r *http.Request) {
	clientID, ok := parseIDParam(w, r, "clientID")
	if !ok {
		return
	}

	accounts, err := h.accountUC.ListClientAccounts(r.Context(), clientID)
	if err != nil {
		writeDomainError(w, r, "failed to list accounts", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountsFromDomain(accounts))
}

// Balances lists balances across all clients.
// Query: currency, active_only, non_zero, sign (+ or -), min_abs.
func (h *AccountHandler) Balances(w http.ResponseWriter, r *http.Request) {
	filter, err := balanceFilterQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid query", err.Error())
		return
	}

	balances, err := h.accountUC.ListBalances(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, "failed to list balances", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ClientBalancesFromDomain(balances))
}

func balanceFilterQuery(r *http.Request) (domain.BalanceFilter, error) {
	q := r.URL.Query()
	filter := domain.BalanceFilter{Currency: q.Get("currency")}

	var err error
	if filter.ActiveOnly, err = parseBoolQuery(r, "active_only"); err != nil {
		return filter, err
	}
	if filter.NonZero, err = parseBoolQuery(r, "non_zero"); err != nil {
		return filter, err
	}
	if filter.Sign, err = domain.ParseBalanceSign(q.Get("sign")); err != nil {
		return filter, err
	}
	if raw := q.Get("min_abs"); raw != "" {
		if filter.MinAbs, err = decimal.NewFromString(raw); err != nil {
			return filter, fmt.Errorf("min_abs must be a decimal: %w", err)
		}
	}
	return filter, nil
}

// GetByCurrency retrieves the account of a client in one currency.
func (h *AccountHandler) GetByCurrency(w http.ResponseWriter, r *http.Request) {
	clientID, ok := parseIDParam(w, r, "clientID")
	if !ok {
		return
	}

	account, err := h.accountUC.GetAccount(r.Context(), clientID, chi.URLParam(r, "currency"))
	if err != nil {
		writeDomainError(w, r, "failed to get account", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// Get retrieves an account by ID.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "accountID")
	if !ok {
		return
	}

	account, err := h.accountUC.GetAccountByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, "failed to get account", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// Deactivate soft-deletes an account. Repeating it is a no-op.
func (h *AccountHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.accountUC.Deactivate, "failed to deactivate account")
}

// Reactivate reopens a deactivated account. Repeating it is a no-op.
func (h *AccountHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.accountUC.Reactivate, "failed to reactivate account")
}

func (h *AccountHandler) changeStatus(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, id int64) (*domain.Account, error),
	message string,
) {
	id, ok := parseIDParam(w, r, "accountID")
	if !ok {
		return
	}

	account, err := op(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, message, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// SetOverdraft switches whether the account may go below zero.
func (h *AccountHandler) SetOverdraft(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "accountID")
	if !ok {
		return
	}

	var req dto.OverdraftRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	account, err := h.accountUC.SetOverdraftPolicy(r.Context(), id, *req.AllowNegativeBalance)
	if err != nil {
		writeDomainError(w, r, "failed to update overdraft policy", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}
