package inmemory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andymarkow/smmstore/internal/domain/intents"
	"github.com/andymarkow/smmstore/internal/domain/transactions"
	"github.com/andymarkow/smmstore/internal/domain/users"
	"github.com/andymarkow/smmstore/internal/storage"
)

func newFundedUser(t *testing.T, store *Storage, balance string) int64 {
	t.Helper()

	user, err := users.CreateUser("Holder", "holder@example.com", "password1", "password1")
	require.NoError(t, err)

	userID, err := store.CreateUser(context.Background(), user)
	require.NoError(t, err)

	amount := decimal.RequireFromString(balance)
	err = store.CreditUserBalance(context.Background(), userID, amount,
		transactions.NewDeposit(userID, amount, "Initial funding"))
	require.NoError(t, err)

	return userID
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store := NewStorage()

	first, err := users.CreateUser("Alice", "alice@example.com", "password1", "password1")
	require.NoError(t, err)

	_, err = store.CreateUser(context.Background(), first)
	require.NoError(t, err)

	second, err := users.CreateUser("Another Alice", "alice@example.com", "password2", "password2")
	require.NoError(t, err)

	_, err = store.CreateUser(context.Background(), second)
	require.ErrorIs(t, err, storage.ErrUserAlreadyExists)
}

func TestDebitUserBalanceConditional(t *testing.T) {
	store := NewStorage()
	userID := newFundedUser(t, store, "10")

	amount := decimal.RequireFromString("7")

	err := store.DebitUserBalance(context.Background(), userID, amount,
		transactions.NewDebit(userID, amount, "first debit"))
	require.NoError(t, err)

	// The remaining 3 cannot cover another 7.
	err = store.DebitUserBalance(context.Background(), userID, amount,
		transactions.NewDebit(userID, amount, "second debit"))
	require.ErrorIs(t, err, storage.ErrUserBalanceNotEnough)

	user, err := store.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, user.Balance.Equal(decimal.RequireFromString("3")))

	// The rejected debit must not leave a ledger row.
	txns, err := store.GetTransactionsByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}

func TestDebitUserBalanceConcurrent(t *testing.T) {
	store := NewStorage()
	userID := newFundedUser(t, store, "10")

	amount := decimal.RequireFromString("7")

	// Two racing debits of 7 against a balance of 10: exactly one wins.
	var wg sync.WaitGroup
	errs := make([]error, 2)

	for i := range errs {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			errs[i] = store.DebitUserBalance(context.Background(), userID, amount,
				transactions.NewDebit(userID, amount, "racing debit"))
		}(i)
	}

	wg.Wait()

	var failures int
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, storage.ErrUserBalanceNotEnough)
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	user, err := store.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, user.Balance.Equal(decimal.RequireFromString("3")), "balance: got %s", user.Balance)
}

func TestRecordPaymentDepositIdempotent(t *testing.T) {
	store := NewStorage()
	userID := newFundedUser(t, store, "0")

	amount := decimal.RequireFromString("25")

	err := store.RecordPaymentDeposit(context.Background(), "pay-1", userID, amount, "Crypto recharge")
	require.NoError(t, err)

	err = store.RecordPaymentDeposit(context.Background(), "pay-1", userID, amount, "Crypto recharge")
	require.ErrorIs(t, err, storage.ErrPaymentAlreadyProcessed)

	user, err := store.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, user.Balance.Equal(amount))
}

func TestCompensateIntentOnce(t *testing.T) {
	store := NewStorage()
	userID := newFundedUser(t, store, "10")

	amount := decimal.RequireFromString("3")

	err := store.DebitUserBalance(context.Background(), userID, amount,
		transactions.NewDebit(userID, amount, "order debit"))
	require.NoError(t, err)

	intent := intents.NewOrderIntent(userID, 1, 100, "https://example.com/profile", amount)
	require.NoError(t, store.CreateIntent(context.Background(), intent))

	err = store.CompensateIntent(context.Background(), intent.ID, userID, amount,
		transactions.NewCredit(userID, amount, "order refund"))
	require.NoError(t, err)

	// The intent is no longer pending, so a repeat must not credit again.
	err = store.CompensateIntent(context.Background(), intent.ID, userID, amount,
		transactions.NewCredit(userID, amount, "order refund"))
	require.ErrorIs(t, err, storage.ErrIntentNotFound)

	user, err := store.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, user.Balance.Equal(decimal.RequireFromString("10")), "balance: got %s", user.Balance)

	pending, err := store.ListPendingIntents(context.Background(), time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Empty(t, pending)

	txns, err := store.GetTransactionsByUser(context.Background(), userID)
	require.NoError(t, err)

	var credits int
	for _, txn := range txns {
		if txn.Type == transactions.TypeCredit {
			credits++
		}
	}
	assert.Equal(t, 1, credits)
}

func TestMarkupDefaultsToZero(t *testing.T) {
	store := NewStorage()

	markup, err := store.GetMarkup(context.Background())
	require.NoError(t, err)
	assert.True(t, markup.IsZero())

	require.NoError(t, store.SetMarkup(context.Background(), decimal.RequireFromString("0.05")))

	markup, err = store.GetMarkup(context.Background())
	require.NoError(t, err)
	assert.True(t, markup.Equal(decimal.RequireFromString("0.05")))
}
