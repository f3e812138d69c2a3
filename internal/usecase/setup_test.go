package usecase_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iho/chatledger/internal/adapter/repository/memory"
	"github.com/iho/chatledger/internal/domain"
	"github.com/iho/chatledger/internal/infrastructure/idgen"
	"github.com/iho/chatledger/internal/infrastructure/metrics"
	"github.com/iho/chatledger/internal/infrastructure/retry"
	"github.com/iho/chatledger/internal/usecase"
)

type testEnv struct {
	store       *memory.Store
	txManager   *memory.TxManager
	accountRepo *memory.AccountRepository
	txRepo      *memory.TransactionRepository
	outboxRepo  *memory.OutboxRepository
	refRepo     *memory.ReferenceRepository
	metrics     *metrics.Metrics

	clients        *usecase.ClientUseCase
	accounts       *usecase.AccountUseCase
	ledger         *usecase.LedgerUseCase
	statements     *usecase.StatementUseCase
	reconciliation *usecase.ReconciliationUseCase
	references     *usecase.ReferenceUseCase
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithPolicy(t, domain.NewOverdraftPolicy(false, nil))
}

func newTestEnvWithPolicy(t *testing.T, policy domain.OverdraftPolicy) *testEnv {
	t.Helper()

	store := memory.NewStore()
	txManager := memory.NewTxManager(store)
	clientRepo := memory.NewClientRepository(store)
	accountRepo := memory.NewAccountRepository(store)
	txRepo := memory.NewTransactionRepository(store)
	outboxRepo := memory.NewOutboxRepository(store)
	refRepo := memory.NewReferenceRepository(store)
	ids := idgen.NewULIDGenerator()
	m := metrics.New(prometheus.NewRegistry())

	return &testEnv{
		store:       store,
		txManager:   txManager,
		accountRepo: accountRepo,
		txRepo:      txRepo,
		outboxRepo:  outboxRepo,
		refRepo:     refRepo,
		metrics:     m,

		clients:  usecase.NewClientUseCase(clientRepo),
		accounts: usecase.NewAccountUseCase(txManager, clientRepo, accountRepo, outboxRepo, ids, policy, m),
		ledger: usecase.NewLedgerUseCase(txManager, accountRepo, txRepo, outboxRepo,
			retry.NewRetrier(10, zerolog.Nop()), ids, m),
		statements:     usecase.NewStatementUseCase(accountRepo, clientRepo, txRepo),
		reconciliation: usecase.NewReconciliationUseCase(accountRepo, txRepo, m),
		references:     usecase.NewReferenceUseCase(refRepo),
	}
}

func (e *testEnv) client(t *testing.T, chatRef int64) *domain.Client {
	t.Helper()
	c, err := e.clients.EnsureClient(context.Background(), usecase.EnsureClientInput{ChatRef: chatRef, Name: "chat"})
	require.NoError(t, err)
	return c
}

func (e *testEnv) open(t *testing.T, clientID int64, currency string, precision int32) *domain.Account {
	t.Helper()
	acc, err := e.accounts.OpenAccount(context.Background(), usecase.OpenAccountInput{
		ClientID: clientID, Currency: currency, Precision: precision,
	})
	require.NoError(t, err)
	return acc
}

func (e *testEnv) post(t *testing.T, clientID int64, currency, amount string) *domain.Transaction {
	t.Helper()
	res, err := e.ledger.Post(context.Background(), usecase.PostInput{
		ClientID: clientID, Currency: currency, Amount: decimal.RequireFromString(amount),
	})
	require.NoError(t, err)
	return res.Transaction
}

func ptr[T any](v T) *T {
	return &v
}
