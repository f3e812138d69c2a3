package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/chatledger/internal/domain"
	"github.com/iho/chatledger/internal/usecase"
)

func TestLedgerUseCase_Post(t *testing.T) {
	tests := []struct {
		name      string
		precision int32
		allowNeg  bool
		seed      string
		amount    string
		wantErr   error
		wantAfter string
	}{
		{name: "credit", precision: 2, seed: "0", amount: "10.50", wantAfter: "10.5"},
		{name: "debit within balance", precision: 2, seed: "10", amount: "-4.25", wantAfter: "5.75"},
		{name: "debit to exactly zero", precision: 0, seed: "7", amount: "-7", wantAfter: "0"},
		{name: "overdraft refused", precision: 2, seed: "1", amount: "-1.01", wantErr: domain.ErrInsufficientFunds},
		{name: "overdraft allowed", precision: 2, allowNeg: true, seed: "1", amount: "-3", wantAfter: "-2"},
		{name: "too many decimals", precision: 2, seed: "0", amount: "0.001", wantErr: domain.ErrPrecisionViolation},
		{name: "zero", precision: 2, seed: "0", amount: "0", wantErr: domain.ErrInvalidAmount},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			c := env.client(t, int64(100+i))

			_, err := env.accounts.OpenAccount(ctx, usecase.OpenAccountInput{
				ClientID: c.ID, Currency: "USD", Precision: tt.precision, AllowNegativeBalance: &tt.allowNeg,
			})
			require.NoError(t, err)

			if tt.seed != "0" {
				env.post(t, c.ID, "USD", tt.seed)
			}

			res, err := env.ledger.Post(ctx, usecase.PostInput{
				ClientID: c.ID, Currency: "usd", Amount: decimal.RequireFromString(tt.amount),
			})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.False(t, res.Replayed)
			assert.True(t, decimal.RequireFromString(tt.wantAfter).Equal(res.Transaction.BalanceAfter),
				"balance_after %s", res.Transaction.BalanceAfter)

			acc, err := env.accounts.GetAccount(ctx, c.ID, "USD")
			require.NoError(t, err)
			assert.True(t, acc.Balance.Equal(res.Transaction.BalanceAfter))
		})
	}
}

func TestLedgerUseCase_FailedPostingLeavesNoTrace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.client(t, 1)
	acc := env.open(t, c.ID, "USD", 2)
	env.post(t, c.ID, "USD", "5")

	_, err := env.ledger.Post(ctx, usecase.PostInput{ClientID: c.ID, Currency: "USD", Amount: decimal.NewFromInt(-6)})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	got, err := env.accounts.GetAccountByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5).Equal(got.Balance))

	page, err := env.statements.ListTransactions(ctx, acc.ID, usecase.StatementQuery{})
	require.NoError(t, err)
	assert.Len(t, page.Transactions, 1)
}

func TestLedgerUseCase_UnknownAndInactiveAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.client(t, 1)

	_, err := env.ledger.Post(ctx, usecase.PostInput{ClientID: c.ID, Currency: "EUR", Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	acc := env.open(t, c.ID, "EUR", 2)
	_, err = env.accounts.Deactivate(ctx, acc.ID)
	require.NoError(t, err)

	_, err = env.ledger.Post(ctx, usecase.PostInput{ClientID: c.ID, Currency: "EUR", Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, domain.ErrAccountInactive)

	_, err = env.accounts.Reactivate(ctx, acc.ID)
	require.NoError(t, err)
	env.post(t, c.ID, "EUR", "1")
}

func TestLedgerUseCase_DepositWithdraw(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.client(t, 1)
	env.open(t, c.ID, "RUB", 0)

	_, err := env.ledger.Deposit(ctx, usecase.PostInput{ClientID: c.ID, Currency: "руб", Amount: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	res, err := env.ledger.Deposit(ctx, usecase.PostInput{ClientID: c.ID, Currency: "руб", Amount: decimal.NewFromInt(300)})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(300).Equal(res.Transaction.Amount))

	res, err = env.ledger.Withdraw(ctx, usecase.PostInput{ClientID: c.ID, Currency: "RUB", Amount: decimal.NewFromInt(120)})
	require.NoError(t, err)
	assert.True(t, res.Transaction.IsDebit())
	assert.True(t, decimal.NewFromInt(180).Equal(res.Transaction.BalanceAfter))
}

func TestLedgerUseCase_IdempotentReplay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.client(t, 1)
	env.open(t, c.ID, "USD", 2)

	input := usecase.PostInput{
		ClientID: c.ID, Currency: "USD", Amount: decimal.NewFromInt(25), IdempotencyKey: ptr(" order-1 "),
	}
	first, err := env.ledger.Post(ctx, input)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	// A different amount under the same key still replays the first result.
	input.Amount = decimal.NewFromInt(999)
	second, err := env.ledger.Post(ctx, input)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
	assert.True(t, decimal.NewFromInt(25).Equal(second.Transaction.Amount))

	acc, err := env.accounts.GetAccount(ctx, c.ID, "USD")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(25).Equal(acc.Balance))
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.IdempotentReplays))

	// Keys are scoped per client.
	other := env.client(t, 2)
	env.open(t, other.ID, "USD", 2)
	res, err := env.ledger.Post(ctx, usecase.PostInput{
		ClientID: other.ID, Currency: "USD", Amount: decimal.NewFromInt(1), IdempotencyKey: ptr("order-1"),
	})
	require.NoError(t, err)
	assert.False(t, res.Replayed)
}

func TestLedgerUseCase_ReplayIgnoresCurrentAccountState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.client(t, 1)
	eur := env.open(t, c.ID, "EUR", 2)

	first, err := env.ledger.Post(ctx, usecase.PostInput{
		ClientID: c.ID, Currency: "EUR", Amount: decimal.NewFromInt(10), IdempotencyKey: ptr("k-1"),
	})
	require.NoError(t, err)

	// The client has no USD account; the committed key still answers.
	res, err := env.ledger.Post(ctx, usecase.PostInput{
		ClientID: c.ID, Currency: "USD", Amount: decimal.NewFromInt(10), IdempotencyKey: ptr("k-1"),
	})
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, first.Transaction.ID, res.Transaction.ID)

	_, err = env.accounts.Deactivate(ctx, eur.ID)
	require.NoError(t, err)

	res, err = env.ledger.Post(ctx, usecase.PostInput{
		ClientID: c.ID, Currency: "EUR", Amount: decimal.NewFromInt(10), IdempotencyKey: ptr("k-1"),
	})
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, first.Transaction.ID, res.Transaction.ID)

	// A new key on the inactive account is still refused.
	_, err = env.ledger.Post(ctx, usecase.PostInput{
		ClientID: c.ID, Currency: "EUR", Amount: decimal.NewFromInt(10), IdempotencyKey: ptr("k-2"),
	})
	require.ErrorIs(t, err, domain.ErrAccountInactive)
}

func TestLedgerUseCase_BlankKeyIsNoKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.client(t, 1)
	env.open(t, c.ID, "USD", 2)

	for range 2 {
		res, err := env.ledger.Post(ctx, usecase.PostInput{
			ClientID: c.ID, Currency: "USD", Amount: decimal.NewFromInt(1), IdempotencyKey: ptr("   "),
		})
		require.NoError(t, err)
		assert.False(t, res.Replayed)
		assert.Nil(t, res.Transaction.IdempotencyKey)
	}
}

func TestLedgerUseCase_ConcurrentPostingsSerialize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.client(t, 1)
	acc := env.open(t, c.ID, "USD", 2)

	const workers = 50
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.ledger.Post(ctx, usecase.PostInput{
				ClientID: c.ID, Currency: "USD", Amount: decimal.RequireFromString("0.10"),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := env.accounts.GetAccountByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5).Equal(got.Balance), "balance %s", got.Balance)

	// Each balance_after continues the previous one.
	running := decimal.Zero
	for txn, err := range env.statements.All(ctx, acc.ID, usecase.StatementQuery{Limit: 7}) {
		require.NoError(t, err)
		running = running.Add(txn.Amount)
		assert.True(t, running.Equal(txn.BalanceAfter))
	}
	assert.True(t, running.Equal(got.Balance))
}

func TestLedgerUseCase_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.client(t, 1)
	acc := env.open(t, c.ID, "USD", 0)
	env.post(t, c.ID, "USD", "10")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, deny int
	)
	for range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.ledger.Withdraw(ctx, usecase.PostInput{ClientID: c.ID, Currency: "USD", Amount: decimal.NewFromInt(1)})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if assert.ErrorIs(t, err, domain.ErrInsufficientFunds) {
				deny++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, 15, deny)

	got, err := env.accounts.GetAccountByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())
}

func TestLedgerUseCase_SameKeyAcrossCurrenciesAppliesOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.client(t, 1)
	usd := env.open(t, c.ID, "USD", 2)
	eur := env.open(t, c.ID, "EUR", 2)

	var wg sync.WaitGroup
	results := make(chan *usecase.PostResult, 2)
	for _, currency := range []string{"USD", "EUR"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := env.ledger.Post(ctx, usecase.PostInput{
				ClientID: c.ID, Currency: currency, Amount: decimal.NewFromInt(3), IdempotencyKey: ptr("shared"),
			})
			if assert.NoError(t, err) {
				results <- res
			}
		}()
	}
	wg.Wait()
	close(results)

	var ids []int64
	replays := 0
	for res := range results {
		ids = append(ids, res.Transaction.ID)
		if res.Replayed {
			replays++
		}
	}
	require.Len(t, ids, 2)
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, 1, replays)

	u, _ := env.accounts.GetAccountByID(ctx, usd.ID)
	e, _ := env.accounts.GetAccountByID(ctx, eur.ID)
	assert.True(t, u.Balance.Add(e.Balance).Equal(decimal.NewFromInt(3)))
}

func TestLedgerUseCase_OtherAccountsAreNotBlocked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.client(t, 1)
	usd := env.open(t, c.ID, "USD", 2)
	env.open(t, c.ID, "EUR", 2)

	// Hold the USD lock in an open transaction.
	tx, err := env.txManager.Begin(ctx)
	require.NoError(t, err)
	_, err = env.accountRepo.GetByIDForUpdate(ctx, tx, usd.ID)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := env.ledger.Post(ctx, usecase.PostInput{ClientID: c.ID, Currency: "EUR", Amount: decimal.NewFromInt(1)})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("posting on another account blocked")
	}

	// The locked account waits until its context gives up.
	blockedCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = env.ledger.Post(blockedCtx, usecase.PostInput{ClientID: c.ID, Currency: "USD", Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, tx.Rollback(ctx))
	env.post(t, c.ID, "USD", "1")
}

func TestLedgerUseCase_OccurredAtOrdering(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.client(t, 1)
	env.open(t, c.ID, "USD", 2)

	future := time.Now().UTC().Add(time.Hour)
	res, err := env.ledger.Post(ctx, usecase.PostInput{
		ClientID: c.ID, Currency: "USD", Amount: decimal.NewFromInt(1), OccurredAt: &future,
	})
	require.NoError(t, err)
	assert.True(t, future.Equal(res.Transaction.OccurredAt))

	past := future.Add(-time.Minute)
	_, err = env.ledger.Post(ctx, usecase.PostInput{
		ClientID: c.ID, Currency: "USD", Amount: decimal.NewFromInt(1), OccurredAt: &past,
	})
	require.ErrorIs(t, err, domain.ErrBackdatedPosting)

	// Without an explicit time the posting never lands before the latest one.
	res, err = env.ledger.Post(ctx, usecase.PostInput{ClientID: c.ID, Currency: "USD", Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.False(t, res.Transaction.OccurredAt.Before(future))
}

func TestLedgerUseCase_ReferencesAndNotes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.client(t, 1)
	env.open(t, c.ID, "USD", 2)

	cat, err := env.references.CreateCategory(ctx, "rent")
	require.NoError(t, err)
	actor, err := env.references.CreateActor(ctx, "Ivan")
	require.NoError(t, err)

	res, err := env.ledger.Post(ctx, usecase.PostInput{
		ClientID: c.ID, Currency: "USD", Amount: decimal.NewFromInt(10),
		CategoryID: &cat.ID, ActorID: &actor.ID, Comment: ptr("march"), Source: ptr("bot"),
	})
	require.NoError(t, err)
	assert.Equal(t, cat.ID, *res.Transaction.CategoryID)
	assert.Equal(t, "march", *res.Transaction.Comment)

	_, err = env.ledger.Post(ctx, usecase.PostInput{
		ClientID: c.ID, Currency: "USD", Amount: decimal.NewFromInt(10), CategoryID: ptr(int64(404)),
	})
	require.ErrorIs(t, err, domain.ErrCategoryNotFound)
}
