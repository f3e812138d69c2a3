package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/chatledger/internal/domain"
	"github.com/iho/chatledger/internal/infrastructure/idgen"
	pginfra "github.com/iho/chatledger/internal/infrastructure/postgres"
	"github.com/iho/chatledger/internal/infrastructure/retry"
	"github.com/iho/chatledger/internal/usecase"
)

const testDatabaseURLEnv = "CHATLEDGER_TEST_DATABASE_URL"

type ledgerFixture struct {
	pool       *pgxpool.Pool
	clients    *usecase.ClientUseCase
	accounts   *usecase.AccountUseCase
	ledger     *usecase.LedgerUseCase
	statements *usecase.StatementUseCase
	reconcile  *usecase.ReconciliationUseCase
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()

	url := os.Getenv(testDatabaseURLEnv)
	if url == "" {
		t.Skipf("%s not set", testDatabaseURLEnv)
	}

	require.NoError(t, pginfra.RunMigrations(url, zerolog.Nop()))

	ctx := context.Background()
	pool, err := pginfra.NewPool(ctx, url, 20, 2)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	txManager := NewTxManager(pool)
	clientRepo := NewClientRepository(pool)
	accountRepo := NewAccountRepository(pool)
	txRepo := NewTransactionRepository(pool)
	outboxRepo := NewOutboxRepository(pool)
	ids := idgen.NewULIDGenerator()

	return &ledgerFixture{
		pool:     pool,
		clients:  usecase.NewClientUseCase(clientRepo),
		accounts: usecase.NewAccountUseCase(txManager, clientRepo, accountRepo, outboxRepo, ids, domain.NewOverdraftPolicy(false, nil), nil),
		ledger: usecase.NewLedgerUseCase(txManager, accountRepo, txRepo, outboxRepo,
			retry.NewRetrier(5, zerolog.Nop()), ids, nil),
		statements: usecase.NewStatementUseCase(accountRepo, clientRepo, txRepo),
		reconcile:  usecase.NewReconciliationUseCase(accountRepo, txRepo, nil),
	}
}

// newClientAccount creates a client with a unique chat reference and opens an account.
func (f *ledgerFixture) newClientAccount(t *testing.T, currency string, precision int32) (*domain.Client, *domain.Account) {
	t.Helper()
	ctx := context.Background()

	client, err := f.clients.EnsureClient(ctx, usecase.EnsureClientInput{
		ChatRef: time.Now().UnixNano(),
		Name:    t.Name(),
	})
	require.NoError(t, err)

	account, err := f.accounts.OpenAccount(ctx, usecase.OpenAccountInput{
		ClientID: client.ID, Currency: currency, Precision: precision,
	})
	require.NoError(t, err)

	return client, account
}

func TestIntegrationConcurrentPostingsOnOneAccount(t *testing.T) {
	f := newLedgerFixture(t)
	client, account := f.newClientAccount(t, "USD", 2)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Post(ctx, usecase.PostInput{
				ClientID: client.ID, Currency: "USD", Amount: decimal.RequireFromString("1.25"),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := f.accounts.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("25").Equal(got.Balance), "balance %s", got.Balance)

	result, err := f.reconcile.ReconcileAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, result.IsReconciled)
	assert.Equal(t, workers, result.TransactionCount)
}

func TestIntegrationIdempotentReplayAcrossGoroutines(t *testing.T) {
	f := newLedgerFixture(t)
	client, _ := f.newClientAccount(t, "EUR", 2)
	ctx := context.Background()

	key := fmt.Sprintf("replay-%d", time.Now().UnixNano())

	const workers = 8
	var wg sync.WaitGroup
	ids := make(chan int64, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.ledger.Post(ctx, usecase.PostInput{
				ClientID: client.ID, Currency: "EUR", Amount: decimal.NewFromInt(10), IdempotencyKey: &key,
			})
			if assert.NoError(t, err) {
				ids <- res.Transaction.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	var first int64
	for id := range ids {
		if first == 0 {
			first = id
		}
		assert.Equal(t, first, id)
	}

	page, err := f.statements.ListClientTransactions(ctx, client.ID, usecase.StatementQuery{})
	require.NoError(t, err)
	assert.Len(t, page.Transactions, 1)
}

func TestIntegrationStatementPagination(t *testing.T) {
	f := newLedgerFixture(t)
	client, account := f.newClientAccount(t, "RUB", 0)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := f.ledger.Post(ctx, usecase.PostInput{
			ClientID: client.ID, Currency: "RUB", Amount: decimal.NewFromInt(int64(i * 100)),
		})
		require.NoError(t, err)
	}

	var seen []*domain.Transaction
	query := usecase.StatementQuery{Limit: 2}
	for {
		page, err := f.statements.ListTransactions(ctx, account.ID, query)
		require.NoError(t, err)
		seen = append(seen, page.Transactions...)
		if page.NextCursor == "" {
			break
		}
		query.Cursor = page.NextCursor
	}

	require.Len(t, seen, 5)
	for i := 1; i < len(seen); i++ {
		assert.True(t, seen[i-1].Less(seen[i]))
	}
	assert.True(t, decimal.NewFromInt(1500).Equal(seen[4].BalanceAfter))
}

func TestIntegrationInsufficientFundsLeavesNoTrace(t *testing.T) {
	f := newLedgerFixture(t)
	client, account := f.newClientAccount(t, "GBP", 2)
	ctx := context.Background()

	_, err := f.ledger.Post(ctx, usecase.PostInput{
		ClientID: client.ID, Currency: "GBP", Amount: decimal.NewFromInt(-5),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	got, err := f.accounts.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())

	page, err := f.statements.ListTransactions(ctx, account.ID, usecase.StatementQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.Transactions)
}

func TestIntegrationListBalances(t *testing.T) {
	f := newLedgerFixture(t)
	client, account := f.newClientAccount(t, "XAU", 3)
	ctx := context.Background()

	_, err := f.ledger.Post(ctx, usecase.PostInput{
		ClientID: client.ID, Currency: "XAU", Amount: decimal.RequireFromString("2.5"),
	})
	require.NoError(t, err)

	balances, err := f.accounts.ListBalances(ctx, domain.BalanceFilter{
		Currency: "xau", NonZero: true, Sign: domain.SignPositive, MinAbs: decimal.NewFromInt(1),
	})
	require.NoError(t, err)

	var found *domain.ClientBalance
	for _, b := range balances {
		assert.Equal(t, "XAU", b.Currency)
		assert.True(t, b.Balance.IsPositive())
		if b.AccountID == account.ID {
			found = b
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, client.Name, found.ClientName)
	assert.Equal(t, client.ChatRef, found.ChatRef)
	assert.True(t, decimal.RequireFromString("2.5").Equal(found.Balance))

	_, err = f.accounts.Deactivate(ctx, account.ID)
	require.NoError(t, err)

	active, err := f.accounts.ListBalances(ctx, domain.BalanceFilter{Currency: "XAU", ActiveOnly: true})
	require.NoError(t, err)
	for _, b := range active {
		assert.NotEqual(t, account.ID, b.AccountID)
	}
}

func TestIntegrationReplayAfterDeactivation(t *testing.T) {
	f := newLedgerFixture(t)
	client, account := f.newClientAccount(t, "CHF", 2)
	ctx := context.Background()
	key := "deactivated-" + t.Name()

	first, err := f.ledger.Post(ctx, usecase.PostInput{
		ClientID: client.ID, Currency: "CHF", Amount: decimal.NewFromInt(4), IdempotencyKey: &key,
	})
	require.NoError(t, err)

	_, err = f.accounts.Deactivate(ctx, account.ID)
	require.NoError(t, err)

	again, err := f.ledger.Post(ctx, usecase.PostInput{
		ClientID: client.ID, Currency: "CHF", Amount: decimal.NewFromInt(4), IdempotencyKey: &key,
	})
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Transaction.ID, again.Transaction.ID)
}
