package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/chatledger/internal/adapter/http/dto"
	"github.com/iho/chatledger/internal/domain"
	"github.com/iho/chatledger/internal/usecase"
)

type statementServiceStub struct {
	listFn       func(ctx context.Context, accountID int64, q usecase.StatementQuery) (*usecase.StatementPage, error)
	listClientFn func(ctx context.Context, clientID int64, q usecase.StatementQuery) (*usecase.StatementPage, error)
	balanceFn    func(ctx context.Context, accountID int64, asOf time.Time) (decimal.Decimal, error)
}

func (s *statementServiceStub) ListTransactions(ctx context.Context, accountID int64, q usecase.StatementQuery) (*usecase.StatementPage, error) {
	return s.listFn(ctx, accountID, q)
}

func (s *statementServiceStub) ListClientTransactions(ctx context.Context, clientID int64, q usecase.StatementQuery) (*usecase.StatementPage, error) {
	return s.listClientFn(ctx, clientID, q)
}

func (s *statementServiceStub) BalanceAt(ctx context.Context, accountID int64, asOf time.Time) (decimal.Decimal, error) {
	return s.balanceFn(ctx, accountID, asOf)
}

func TestStatementHandler_ListByAccount(t *testing.T) {
	var captured usecase.StatementQuery
	handler := NewStatementHandler(&statementServiceStub{
		listFn: func(ctx context.Context, accountID int64, q usecase.StatementQuery) (*usecase.StatementPage, error) {
			captured = q
			return &usecase.StatementPage{
				Transactions: []*domain.Transaction{{ID: 1}, {ID: 2}},
				NextCursor:   "next",
			}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/accounts/2/transactions?limit=2&cursor=abc&from=2026-01-01T00:00:00Z", nil)
	req = setChiURLParam(req, "accountID", "2")
	rec := httptest.NewRecorder()

	handler.ListByAccount(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if captured.Limit != 2 || captured.Cursor != "abc" || captured.From == nil || captured.To != nil {
		t.Fatalf("unexpected query %+v", captured)
	}

	var resp dto.StatementResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Transactions) != 2 || resp.NextCursor != "next" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestStatementHandler_ListByAccount_BadInput(t *testing.T) {
	handler := NewStatementHandler(&statementServiceStub{
		listFn: func(ctx context.Context, accountID int64, q usecase.StatementQuery) (*usecase.StatementPage, error) {
			return nil, domain.ErrInvalidCursor
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/accounts/2/transactions?to=soon", nil)
	req = setChiURLParam(req, "accountID", "2")
	rec := httptest.NewRecorder()
	handler.ListByAccount(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad time, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/accounts/2/transactions?cursor=%21%21", nil)
	req = setChiURLParam(req, "accountID", "2")
	rec = httptest.NewRecorder()
	handler.ListByAccount(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad cursor, got %d", rec.Code)
	}
}

func TestStatementHandler_ListByClient(t *testing.T) {
	handler := NewStatementHandler(&statementServiceStub{
		listClientFn: func(ctx context.Context, clientID int64, q usecase.StatementQuery) (*usecase.StatementPage, error) {
			if clientID != 8 || q.Limit != usecase.DefaultStatementLimit {
				t.Fatalf("unexpected call %d %+v", clientID, q)
			}
			return &usecase.StatementPage{Transactions: []*domain.Transaction{}}, nil
		},
	})

	req := setChiURLParam(httptest.NewRequest(http.MethodGet, "/clients/8/transactions", nil), "clientID", "8")
	rec := httptest.NewRecorder()

	handler.ListByClient(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "{\"transactions\":[]}\n" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
}

func TestStatementHandler_Balance(t *testing.T) {
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	var gotAt time.Time
	handler := NewStatementHandler(&statementServiceStub{
		balanceFn: func(ctx context.Context, accountID int64, asOf time.Time) (decimal.Decimal, error) {
			gotAt = asOf
			return decimal.RequireFromString("42.5"), nil
		},
	})
	handler.now = func() time.Time { return fixed }

	req := setChiURLParam(httptest.NewRequest(http.MethodGet, "/accounts/3/balance", nil), "accountID", "3")
	rec := httptest.NewRecorder()
	handler.Balance(rec, req)

	if rec.Code != http.StatusOK || !gotAt.Equal(fixed) {
		t.Fatalf("unexpected result %d at %v", rec.Code, gotAt)
	}
	var resp dto.BalanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.AccountID != 3 || !resp.Balance.Equal(decimal.RequireFromString("42.5")) {
		t.Fatalf("unexpected response %+v", resp)
	}

	req = setChiURLParam(httptest.NewRequest(http.MethodGet, "/accounts/3/balance?at=2026-02-01T00:00:00Z", nil), "accountID", "3")
	rec = httptest.NewRecorder()
	handler.Balance(rec, req)

	if !gotAt.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected explicit time, got %v", gotAt)
	}
}
