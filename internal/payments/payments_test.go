package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andymarkow/smmstore/internal/domain/transactions"
	"github.com/andymarkow/smmstore/internal/domain/users"
	"github.com/andymarkow/smmstore/internal/httpclient"
	"github.com/andymarkow/smmstore/internal/logger"
	"github.com/andymarkow/smmstore/internal/storage/inmemory"
)

var testIPNSecret = []byte("ipn-test-secret")

func newTestProcessor(store *inmemory.Storage) *Processor {
	return NewProcessor(store, testIPNSecret,
		WithProcessorLogger(logger.NewLogger(logger.WithOutput(io.Discard))),
	)
}

// signBody computes the signature the processor would send for a payload
// whose keys are already sorted and compact.
func signBody(body []byte) string {
	mac := hmac.New(sha512.New, testIPNSecret)
	mac.Write(body)

	return hex.EncodeToString(mac.Sum(nil))
}

func newTestUser(t *testing.T, store *inmemory.Storage) int64 {
	t.Helper()

	user, err := users.CreateUser("Payer", "payer@example.com", "password1", "password1")
	require.NoError(t, err)

	userID, err := store.CreateUser(context.Background(), user)
	require.NoError(t, err)

	return userID
}

// seedUsers creates n users and returns the id of the last one.
func seedUsers(t *testing.T, store *inmemory.Storage, n int) int64 {
	t.Helper()

	var userID int64

	for i := 1; i <= n; i++ {
		user, err := users.CreateUser(fmt.Sprintf("Payer %d", i), fmt.Sprintf("payer%d@example.com", i), "password1", "password1")
		require.NoError(t, err)

		userID, err = store.CreateUser(context.Background(), user)
		require.NoError(t, err)
	}

	return userID
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"order_id":"recharge_7_1690000000","payment_id":"123","payment_status":"finished","price_amount":10.5}`)

	require.NoError(t, VerifySignature(body, signBody(body), testIPNSecret))
	require.ErrorIs(t, VerifySignature(body, "", testIPNSecret), ErrSignatureMissing)
	require.ErrorIs(t, VerifySignature(body, "deadbeef", testIPNSecret), ErrSignatureMismatch)
	require.ErrorIs(t, VerifySignature([]byte("not json"), signBody(body), testIPNSecret), ErrPayloadInvalid)
}

func TestVerifySignatureKeyOrderIndependent(t *testing.T) {
	sorted := []byte(`{"order_id":"recharge_7_1690000000","payment_id":"123","payment_status":"finished","price_amount":10.5}`)
	shuffled := []byte(`{"payment_status":"finished","price_amount":10.5,"payment_id":"123","order_id":"recharge_7_1690000000"}`)

	// The signature covers the key-sorted form, so key order on the wire
	// must not matter.
	require.NoError(t, VerifySignature(shuffled, signBody(sorted), testIPNSecret))
}

func TestHandleNotificationCreditsOnce(t *testing.T) {
	store := inmemory.NewStorage()
	userID := seedUsers(t, store, 7)
	processor := newTestProcessor(store)

	body := []byte(`{"order_id":"recharge_7_1690000000","payment_id":"123","payment_status":"finished","price_amount":10.5}`)
	require.Equal(t, int64(7), userID)

	require.NoError(t, processor.HandleNotification(context.Background(), body, signBody(body)))

	user, err := store.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, user.Balance.Equal(decimal.RequireFromString("10.5")), "balance: got %s", user.Balance)

	// The same notification delivered again must not credit twice.
	require.NoError(t, processor.HandleNotification(context.Background(), body, signBody(body)))

	user, err = store.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, user.Balance.Equal(decimal.RequireFromString("10.5")), "balance after replay: got %s", user.Balance)

	txns, err := store.GetTransactionsByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, transactions.TypeDeposit, txns[0].Type)
	assert.True(t, txns[0].Amount.Equal(decimal.RequireFromString("10.5")))
}

func TestHandleNotificationRejectsTamperedBody(t *testing.T) {
	store := inmemory.NewStorage()
	userID := newTestUser(t, store)
	processor := newTestProcessor(store)

	body := []byte(`{"order_id":"recharge_1_1690000000","payment_id":"123","payment_status":"finished","price_amount":10.5}`)
	tampered := []byte(`{"order_id":"recharge_1_1690000000","payment_id":"123","payment_status":"finished","price_amount":9999.5}`)

	err := processor.HandleNotification(context.Background(), tampered, signBody(body))
	require.ErrorIs(t, err, ErrSignatureMismatch)

	user, err := store.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, user.Balance.IsZero())
}

func TestHandleNotificationIgnoresUnfinished(t *testing.T) {
	store := inmemory.NewStorage()
	userID := newTestUser(t, store)
	processor := newTestProcessor(store)

	body := []byte(`{"order_id":"recharge_1_1690000000","payment_id":"124","payment_status":"waiting","price_amount":10.5}`)

	require.NoError(t, processor.HandleNotification(context.Background(), body, signBody(body)))

	user, err := store.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, user.Balance.IsZero())
}

func TestHandleNotificationRejectsBadOrderID(t *testing.T) {
	store := inmemory.NewStorage()
	newTestUser(t, store)
	processor := newTestProcessor(store)

	body := []byte(`{"order_id":"withdrawal_1_1690000000","payment_id":"125","payment_status":"finished","price_amount":10.5}`)

	err := processor.HandleNotification(context.Background(), body, signBody(body))
	require.ErrorIs(t, err, ErrPayloadInvalid)
}

func TestHandleNotificationRejectsMissingFields(t *testing.T) {
	store := inmemory.NewStorage()
	processor := newTestProcessor(store)

	body := []byte(`{"payment_id":"126","payment_status":"finished"}`)

	err := processor.HandleNotification(context.Background(), body, signBody(body))
	require.ErrorIs(t, err, ErrPayloadInvalid)
}

func TestManualRecharge(t *testing.T) {
	store := inmemory.NewStorage()
	userID := newTestUser(t, store)
	processor := newTestProcessor(store)

	require.NoError(t, processor.ManualRecharge(context.Background(), userID, decimal.RequireFromString("25"), "Support"))

	user, err := store.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, user.Balance.Equal(decimal.RequireFromString("25")))

	err = processor.ManualRecharge(context.Background(), userID, decimal.Zero, "Support")
	require.ErrorIs(t, err, ErrAmountInvalid)
}

func TestRechargeOrderID(t *testing.T) {
	orderID := RechargeOrderID(42, time.Unix(1690000000, 0))
	assert.Equal(t, "recharge_42_1690000000", orderID)

	userID, err := parseRechargeUserID(orderID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestCreatePayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payment", r.URL.Path)
		assert.Equal(t, "api-key", r.Header.Get("x-api-key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"payment_id":4987654321,"pay_address":"TTestAddress","pay_amount":10.53,"pay_currency":"usdttrc20"}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(
		WithAPIKey("api-key"),
		WithCallbackURL("https://store.example.com/api/webhooks/payments"),
		WithClient(httpclient.New(httpclient.WithBaseURL(srv.URL))),
	)

	invoice, err := client.CreatePayment(context.Background(), 42, decimal.RequireFromString("10.5"), "usdttrc20")
	require.NoError(t, err)

	assert.Equal(t, "4987654321", invoice.PaymentID.String())
	assert.Equal(t, "TTestAddress", invoice.PayAddress)
	assert.True(t, invoice.PayAmount.Equal(decimal.RequireFromString("10.53")))
	assert.Contains(t, invoice.OrderID, "recharge_42_")
}

func TestCreatePaymentProcessorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"pay_currency is not supported"}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(
		WithAPIKey("api-key"),
		WithClient(httpclient.New(httpclient.WithBaseURL(srv.URL))),
	)

	_, err := client.CreatePayment(context.Background(), 42, decimal.RequireFromString("10.5"), "doge")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pay_currency is not supported")
}
