package usecase_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/chatledger/internal/domain"
	"github.com/iho/chatledger/internal/usecase"
)

func TestAccountUseCase_OpenAccount(t *testing.T) {
	env := newTestEnvWithPolicy(t, domain.NewOverdraftPolicy(true, []string{"rub"}))
	ctx := context.Background()
	c := env.client(t, 1)

	usd, err := env.accounts.OpenAccount(ctx, usecase.OpenAccountInput{ClientID: c.ID, Currency: " usd ", Precision: 2})
	require.NoError(t, err)
	assert.Equal(t, "USD", usd.Currency)
	assert.True(t, usd.Balance.IsZero())
	assert.True(t, usd.IsActive)
	assert.True(t, usd.AllowNegativeBalance)

	rub, err := env.accounts.OpenAccount(ctx, usecase.OpenAccountInput{ClientID: c.ID, Currency: "рубль", Precision: 0})
	require.NoError(t, err)
	assert.Equal(t, "RUB", rub.Currency)
	assert.False(t, rub.AllowNegativeBalance)

	_, err = env.accounts.OpenAccount(ctx, usecase.OpenAccountInput{ClientID: c.ID, Currency: "USD", Precision: 2})
	require.ErrorIs(t, err, domain.ErrAccountAlreadyExists)

	_, err = env.accounts.OpenAccount(ctx, usecase.OpenAccountInput{ClientID: 999, Currency: "USD", Precision: 2})
	require.ErrorIs(t, err, domain.ErrClientNotFound)

	_, err = env.accounts.OpenAccount(ctx, usecase.OpenAccountInput{ClientID: c.ID, Currency: "EUR", Precision: 9})
	require.ErrorIs(t, err, domain.ErrInvalidPrecision)

	_, err = env.accounts.OpenAccount(ctx, usecase.OpenAccountInput{ClientID: c.ID, Currency: "", Precision: 2})
	require.ErrorIs(t, err, domain.ErrInvalidCurrency)

	assert.Equal(t, float64(2), testutil.ToFloat64(env.metrics.AccountsOpened))

	events, err := env.outboxRepo.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventTypeAccountOpened, events[0].EventType)
}

func TestAccountUseCase_ListClientAccounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.client(t, 1)
	env.open(t, c.ID, "USD", 2)
	env.open(t, c.ID, "EUR", 2)

	accounts, err := env.accounts.ListClientAccounts(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	_, err = env.accounts.ListClientAccounts(ctx, 404)
	require.ErrorIs(t, err, domain.ErrClientNotFound)
}

func TestAccountUseCase_ListBalances(t *testing.T) {
	env := newTestEnvWithPolicy(t, domain.NewOverdraftPolicy(true, nil))
	ctx := context.Background()

	a := env.client(t, 10)
	b := env.client(t, 20)
	env.open(t, a.ID, "USD", 2)
	env.open(t, a.ID, "EUR", 2)
	bUSD := env.open(t, b.ID, "USD", 2)
	env.open(t, b.ID, "RUB", 0)

	env.post(t, a.ID, "USD", "15.50")
	env.post(t, a.ID, "EUR", "-0.40")
	env.post(t, b.ID, "USD", "-7")
	_, err := env.accounts.Deactivate(ctx, bUSD.ID)
	require.NoError(t, err)

	all, err := env.accounts.ListBalances(ctx, domain.BalanceFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []string{"EUR", "USD", "RUB", "USD"},
		[]string{all[0].Currency, all[1].Currency, all[2].Currency, all[3].Currency})
	assert.Equal(t, a.ID, all[0].ClientID)
	assert.Equal(t, int64(10), all[0].ChatRef)
	assert.Equal(t, "chat", all[0].ClientName)

	active, err := env.accounts.ListBalances(ctx, domain.BalanceFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 3)

	nonZero, err := env.accounts.ListBalances(ctx, domain.BalanceFilter{NonZero: true})
	require.NoError(t, err)
	assert.Len(t, nonZero, 3)

	both, err := env.accounts.ListBalances(ctx, domain.BalanceFilter{ActiveOnly: true, NonZero: true})
	require.NoError(t, err)
	require.Len(t, both, 2)
	assert.True(t, decimal.RequireFromString("-0.40").Equal(both[0].Balance))

	negativeUSD, err := env.accounts.ListBalances(ctx, domain.BalanceFilter{Currency: "доллар", Sign: domain.SignNegative})
	require.NoError(t, err)
	require.Len(t, negativeUSD, 1)
	assert.Equal(t, bUSD.ID, negativeUSD[0].AccountID)
	assert.False(t, negativeUSD[0].IsActive)

	aboveOne, err := env.accounts.ListBalances(ctx, domain.BalanceFilter{MinAbs: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.Len(t, aboveOne, 2)

	_, err = env.accounts.ListBalances(ctx, domain.BalanceFilter{Currency: "$$"})
	require.ErrorIs(t, err, domain.ErrInvalidCurrency)
}

func TestAccountUseCase_DeactivateIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.client(t, 1)
	acc := env.open(t, c.ID, "USD", 2)
	env.post(t, c.ID, "USD", "3")

	got, err := env.accounts.Deactivate(ctx, acc.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	require.NotNil(t, got.DeactivatedAt)

	again, err := env.accounts.Deactivate(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, got.DeactivatedAt, again.DeactivatedAt)
	assert.True(t, decimal.NewFromInt(3).Equal(again.Balance))

	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.AccountOperations.WithLabelValues("deactivate")))

	reactivated, err := env.accounts.Reactivate(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, reactivated.IsActive)
	assert.Nil(t, reactivated.DeactivatedAt)

	_, err = env.accounts.Deactivate(ctx, 4040)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAccountUseCase_SetOverdraftPolicy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.client(t, 1)
	acc := env.open(t, c.ID, "USD", 0)
	require.False(t, acc.AllowNegativeBalance)

	_, err := env.ledger.Post(ctx, usecase.PostInput{ClientID: c.ID, Currency: "USD", Amount: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	updated, err := env.accounts.SetOverdraftPolicy(ctx, acc.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.AllowNegativeBalance)

	env.post(t, c.ID, "USD", "-5")

	// Turning overdraft off keeps the negative balance but blocks further debits.
	_, err = env.accounts.SetOverdraftPolicy(ctx, acc.ID, false)
	require.NoError(t, err)
	_, err = env.ledger.Post(ctx, usecase.PostInput{ClientID: c.ID, Currency: "USD", Amount: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	env.post(t, c.ID, "USD", "2")

	got, err := env.accounts.GetAccountByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(-3).Equal(got.Balance))
}
