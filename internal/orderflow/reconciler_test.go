package orderflow

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andymarkow/smmstore/internal/domain/intents"
	"github.com/andymarkow/smmstore/internal/domain/transactions"
	"github.com/andymarkow/smmstore/internal/domain/users"
	"github.com/andymarkow/smmstore/internal/logger"
	"github.com/andymarkow/smmstore/internal/storage/inmemory"
)

func TestReconcileCompensatesAbandonedIntent(t *testing.T) {
	store := inmemory.NewStorage()

	user, err := users.CreateUser("Buyer", "buyer@example.com", "password1", "password1")
	require.NoError(t, err)

	userID, err := store.CreateUser(context.Background(), user)
	require.NoError(t, err)

	amount := decimal.RequireFromString("3")

	err = store.CreditUserBalance(context.Background(), userID, decimal.RequireFromString("100"),
		transactions.NewDeposit(userID, decimal.RequireFromString("100"), "Initial funding"))
	require.NoError(t, err)

	// Simulate a placement that debited the balance, wrote its intent and
	// then died before resolving it.
	err = store.DebitUserBalance(context.Background(), userID, amount,
		transactions.NewDebit(userID, amount, "Order payment: Followers x100"))
	require.NoError(t, err)

	intent := intents.NewOrderIntent(userID, 1, 100, "https://example.com/profile", amount)
	require.NoError(t, store.CreateIntent(context.Background(), intent))

	reconciler := NewReconciler(store,
		WithReconcilerLogger(logger.NewLogger(logger.WithOutput(io.Discard))),
		WithReconcileMaxAge(0),
	)

	require.NoError(t, reconciler.Reconcile(context.Background()))

	usr, err := store.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, usr.Balance.Equal(decimal.RequireFromString("100")), "balance: got %s", usr.Balance)

	// The intent is resolved, so a second pass must not credit again.
	require.NoError(t, reconciler.Reconcile(context.Background()))

	usr, err = store.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, usr.Balance.Equal(decimal.RequireFromString("100")), "balance after second pass: got %s", usr.Balance)

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

// flakyStore fails its first compensation attempts and then recovers.
type flakyStore struct {
	*inmemory.Storage
	failures int
}

func (s *flakyStore) CompensateIntent(ctx context.Context, id string, userID int64, amount decimal.Decimal, txn *transactions.Transaction) error {
	if s.failures > 0 {
		s.failures--

		return errors.New("connection reset by peer")
	}

	return s.Storage.CompensateIntent(ctx, id, userID, amount, txn)
}

func TestReconcileTransientFailureCreditsOnce(t *testing.T) {
	store := inmemory.NewStorage()

	user, err := users.CreateUser("Buyer", "buyer@example.com", "password1", "password1")
	require.NoError(t, err)

	userID, err := store.CreateUser(context.Background(), user)
	require.NoError(t, err)

	amount := decimal.RequireFromString("3")

	err = store.CreditUserBalance(context.Background(), userID, decimal.RequireFromString("100"),
		transactions.NewDeposit(userID, decimal.RequireFromString("100"), "Initial funding"))
	require.NoError(t, err)

	err = store.DebitUserBalance(context.Background(), userID, amount,
		transactions.NewDebit(userID, amount, "Order payment: Followers x100"))
	require.NoError(t, err)

	intent := intents.NewOrderIntent(userID, 1, 100, "https://example.com/profile", amount)
	require.NoError(t, store.CreateIntent(context.Background(), intent))

	reconciler := NewReconciler(&flakyStore{Storage: store, failures: 1},
		WithReconcilerLogger(logger.NewLogger(logger.WithOutput(io.Discard))),
		WithReconcileMaxAge(0),
	)

	// The failed pass must leave both the balance and the intent as they
	// were: no credit without the state flip.
	require.NoError(t, reconciler.Reconcile(context.Background()))

	usr, err := store.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, usr.Balance.Equal(decimal.RequireFromString("97")), "balance after failed pass: got %s", usr.Balance)

	// The next passes refund exactly once.
	require.NoError(t, reconciler.Reconcile(context.Background()))
	require.NoError(t, reconciler.Reconcile(context.Background()))

	usr, err = store.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, usr.Balance.Equal(decimal.RequireFromString("100")), "balance after reconciliation: got %s", usr.Balance)

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

func TestReconcileSkipsResolvedIntents(t *testing.T) {
	store := inmemory.NewStorage()

	user, err := users.CreateUser("Buyer", "buyer@example.com", "password1", "password1")
	require.NoError(t, err)

	userID, err := store.CreateUser(context.Background(), user)
	require.NoError(t, err)

	amount := decimal.RequireFromString("3")

	intent := intents.NewOrderIntent(userID, 1, 100, "https://example.com/profile", amount)
	require.NoError(t, store.CreateIntent(context.Background(), intent))
	require.NoError(t, store.ResolveIntent(context.Background(), intent.ID, intents.StateCommitted))

	reconciler := NewReconciler(store,
		WithReconcilerLogger(logger.NewLogger(logger.WithOutput(io.Discard))),
		WithReconcileMaxAge(0),
	)

	require.NoError(t, reconciler.Reconcile(context.Background()))

	usr, err := store.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, usr.Balance.IsZero())
}
