// Package payments integrates the crypto payment processor: creating
// recharge invoices and handling its signed IPN callbacks, which feed
// deposits into the ledger.
package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/andymarkow/smmstore/internal/domain/transactions"
	"github.com/andymarkow/smmstore/internal/httpclient"
	"github.com/andymarkow/smmstore/internal/storage"
)

var (
	// ErrSignatureMissing means the notification carries no signature header.
	ErrSignatureMissing = errors.New("payment notification signature is missing")

	// ErrSignatureMismatch means the keyed hash over the payload does not
	// match the provided signature.
	ErrSignatureMismatch = errors.New("payment notification signature mismatch")

	// ErrPayloadInvalid means the notification body cannot be processed.
	ErrPayloadInvalid = errors.New("payment notification payload is invalid")

	ErrAmountInvalid = errors.New("recharge amount must be positive")
)

// PaymentStatusFinished is the processor status that credits the balance.
// Every other status is acknowledged without mutation.
const PaymentStatusFinished = "finished"

// rechargeOrderIDPattern extracts the user id from invoice order ids of the
// form recharge_<userID>_<unix>.
var rechargeOrderIDPattern = regexp.MustCompile(`^recharge_(\d+)_(\d+)$`)

// RechargeOrderID builds the invoice order id the webhook later parses.
func RechargeOrderID(userID int64, now time.Time) string {
	return fmt.Sprintf("recharge_%d_%d", userID, now.Unix())
}

// VerifySignature recomputes the HMAC-SHA512 over the key-sorted JSON body
// and compares it with the received hex signature in constant time.
func VerifySignature(body []byte, signature string, secret []byte) error {
	if signature == "" {
		return ErrSignatureMissing
	}

	canonical, err := canonicalizeJSON(body)
	if err != nil {
		return err
	}

	mac := hmac.New(sha512.New, secret)
	mac.Write(canonical)

	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureMismatch
	}

	return nil
}

// canonicalizeJSON re-marshals the payload with keys sorted, matching the
// processor's signing scheme. encoding/json sorts map keys on marshal.
func canonicalizeJSON(body []byte) ([]byte, error) {
	var payload map[string]any

	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPayloadInvalid, err)
	}

	canonical, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPayloadInvalid, err)
	}

	return canonical, nil
}

// Notification is the IPN payload subset the ledger cares about.
type Notification struct {
	PaymentID     json.Number     `json:"payment_id"`
	PaymentStatus string          `json:"payment_status"`
	OrderID       string          `json:"order_id"`
	PriceAmount   decimal.Decimal `json:"price_amount"`
}

// Processor validates and applies payment notifications.
type Processor struct {
	log       *slog.Logger
	storage   storage.Storage
	ipnSecret []byte
}

func NewProcessor(store storage.Storage, ipnSecret []byte, opts ...ProcessorOption) *Processor {
	p := &Processor{
		log:       slog.New(&slog.JSONHandler{}),
		storage:   store,
		ipnSecret: ipnSecret,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

type ProcessorOption func(p *Processor)

func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.log = logger
	}
}

// HandleNotification verifies the signature and, for a finished payment,
// credits the referenced user exactly once per payment id. Non-finished
// statuses and duplicate notifications are acknowledged without mutation.
func (p *Processor) HandleNotification(ctx context.Context, body []byte, signature string) error {
	if err := VerifySignature(body, signature, p.ipnSecret); err != nil {
		return err
	}

	var notif Notification
	if err := json.Unmarshal(body, &notif); err != nil {
		return fmt.Errorf("%w: %w", ErrPayloadInvalid, err)
	}

	if notif.PaymentID.String() == "" || notif.PaymentStatus == "" || notif.OrderID == "" {
		return fmt.Errorf("%w: missing required fields", ErrPayloadInvalid)
	}

	if notif.PaymentStatus != PaymentStatusFinished {
		p.log.Info("Payment notification acknowledged without mutation",
			slog.String("payment_id", notif.PaymentID.String()),
			slog.String("payment_status", notif.PaymentStatus),
		)

		return nil
	}

	userID, err := parseRechargeUserID(notif.OrderID)
	if err != nil {
		return err
	}

	if !notif.PriceAmount.IsPositive() {
		return fmt.Errorf("%w: price_amount is not positive", ErrPayloadInvalid)
	}

	description := fmt.Sprintf("Crypto recharge (payment id: %s)", notif.PaymentID.String())

	err = p.storage.RecordPaymentDeposit(ctx, notif.PaymentID.String(), userID, notif.PriceAmount, description)
	if err != nil {
		if errors.Is(err, storage.ErrPaymentAlreadyProcessed) {
			p.log.Info("Duplicate payment notification ignored",
				slog.String("payment_id", notif.PaymentID.String()))

			return nil
		}

		return fmt.Errorf("storage.RecordPaymentDeposit: %w", err)
	}

	p.log.Info("Payment finished, balance credited",
		slog.String("payment_id", notif.PaymentID.String()),
		slog.Int64("user_id", userID),
		slog.String("amount", notif.PriceAmount.String()),
	)

	return nil
}

func parseRechargeUserID(orderID string) (int64, error) {
	matches := rechargeOrderIDPattern.FindStringSubmatch(orderID)
	if matches == nil {
		return 0, fmt.Errorf("%w: unrecognized order_id %q", ErrPayloadInvalid, orderID)
	}

	userID, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: invalid user id in order_id %q", ErrPayloadInvalid, orderID)
	}

	return userID, nil
}

// ManualRecharge credits the balance immediately for out-of-band payment
// methods and records the deposit.
func (p *Processor) ManualRecharge(ctx context.Context, userID int64, amount decimal.Decimal, method string) error {
	if !amount.IsPositive() {
		return ErrAmountInvalid
	}

	txn := transactions.NewDeposit(userID, amount, "Recharge via "+method)

	if err := p.storage.CreditUserBalance(ctx, userID, amount, txn); err != nil {
		return fmt.Errorf("storage.CreditUserBalance: %w", err)
	}

	return nil
}

// Client creates payment invoices with the processor API.
type Client struct {
	log         *slog.Logger
	client      *resty.Client
	apiKey      string
	callbackURL string
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		log:    slog.New(&slog.JSONHandler{}),
		client: httpclient.New(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type ClientOption func(c *Client)

func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.log = logger
	}
}

func WithClient(client *resty.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

func WithCallbackURL(callbackURL string) ClientOption {
	return func(c *Client) {
		c.callbackURL = callbackURL
	}
}

type createPaymentRequest struct {
	PriceAmount    decimal.Decimal `json:"price_amount"`
	PriceCurrency  string          `json:"price_currency"`
	PayCurrency    string          `json:"pay_currency"`
	OrderID        string          `json:"order_id"`
	IPNCallbackURL string          `json:"ipn_callback_url"`
}

// Invoice is a created payment the user has to fulfill.
type Invoice struct {
	PaymentID   json.Number     `json:"payment_id"`
	PayAddress  string          `json:"pay_address"`
	PayAmount   decimal.Decimal `json:"pay_amount"`
	PayCurrency string          `json:"pay_currency"`
	OrderID     string          `json:"-"`
}

// CreatePayment opens an invoice for a recharge of amount USD payable in
// payCurrency.
func (c *Client) CreatePayment(ctx context.Context, userID int64, amount decimal.Decimal, payCurrency string) (*Invoice, error) {
	if !amount.IsPositive() {
		return nil, ErrAmountInvalid
	}

	orderID := RechargeOrderID(userID, time.Now())

	invoice := new(Invoice)

	errPayload := struct {
		Message string `json:"message"`
	}{}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("x-api-key", c.apiKey).
		SetBody(createPaymentRequest{
			PriceAmount:    amount,
			PriceCurrency:  "usd",
			PayCurrency:    payCurrency,
			OrderID:        orderID,
			IPNCallbackURL: c.callbackURL,
		}).
		SetResult(invoice).
		SetError(&errPayload).
		Post("/payment")
	if err != nil {
		return nil, fmt.Errorf("client.R: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("payment processor error: %s", errPayload.Message)
	}

	if invoice.PayAddress == "" || invoice.PaymentID.String() == "" {
		return nil, errors.New("payment processor response carries no invoice")
	}

	invoice.OrderID = orderID

	return invoice, nil
}
