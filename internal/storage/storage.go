package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andymarkow/smmstore/internal/domain/intents"
	"github.com/andymarkow/smmstore/internal/domain/orders"
	"github.com/andymarkow/smmstore/internal/domain/services"
	"github.com/andymarkow/smmstore/internal/domain/transactions"
	"github.com/andymarkow/smmstore/internal/domain/users"
)

var (
	ErrUserAlreadyExists       = errors.New("user already exists")
	ErrUserNotFound            = errors.New("user not found")
	ErrUserBalanceNotEnough    = errors.New("user balance not enough")
	ErrServiceNotFound         = errors.New("service not found")
	ErrOrderNotFound           = errors.New("order not found")
	ErrIntentNotFound          = errors.New("order intent not found")
	ErrPaymentAlreadyProcessed = errors.New("payment already processed")
	ErrMarkupSettingNotFound   = errors.New("markup setting not found")
)

type UserStorage interface {
	CreateUser(ctx context.Context, usr *users.User) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*users.User, error)
	GetUserByEmail(ctx context.Context, email string) (*users.User, error)
	ListUsers(ctx context.Context) ([]*users.User, error)

	// DebitUserBalance atomically subtracts amount from the user balance
	// and appends the ledger row. The subtraction is conditional on the
	// balance covering the amount; otherwise ErrUserBalanceNotEnough is
	// returned and nothing is written.
	DebitUserBalance(ctx context.Context, userID int64, amount decimal.Decimal, txn *transactions.Transaction) error

	// CreditUserBalance atomically adds amount to the user balance and
	// appends the ledger row.
	CreditUserBalance(ctx context.Context, userID int64, amount decimal.Decimal, txn *transactions.Transaction) error
}

type ServiceStorage interface {
	GetService(ctx context.Context, id int64) (*services.Service, error)
	ListServices(ctx context.Context) ([]*services.Service, error)

	// SaveServices upserts catalog entries keyed by vendor service id.
	SaveServices(ctx context.Context, svcs []*services.Service) error
}

type OrderStorage interface {
	// CreateOrder inserts the order row and, strictly after it, the profit
	// ledger row, both in one commit. It returns the local order id.
	CreateOrder(ctx context.Context, order *orders.Order, profit *transactions.Transaction) (int64, error)
	GetOrder(ctx context.Context, id int64) (*orders.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]*orders.Order, error)
	ListOrders(ctx context.Context, statuses ...string) ([]*orders.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status string) error
}

type TransactionStorage interface {
	GetTransactionsByUser(ctx context.Context, userID int64) ([]*transactions.Transaction, error)
	ProfitReport(ctx context.Context, now time.Time) (*transactions.ProfitReport, error)
}

type IntentStorage interface {
	CreateIntent(ctx context.Context, intent *intents.OrderIntent) error
	ResolveIntent(ctx context.Context, id string, state intents.State) error

	// CompensateIntent atomically flips a pending intent to compensated,
	// credits the amount back to the user balance and appends the ledger
	// row. An intent that is missing or no longer pending returns
	// ErrIntentNotFound with no mutation, so a refund can never be paid
	// twice for the same intent.
	CompensateIntent(ctx context.Context, id string, userID int64, amount decimal.Decimal, txn *transactions.Transaction) error

	// ListPendingIntents returns pending intents created before the cutoff.
	ListPendingIntents(ctx context.Context, cutoff time.Time) ([]*intents.OrderIntent, error)
}

type SettingsStorage interface {
	GetMarkup(ctx context.Context) (decimal.Decimal, error)
	SetMarkup(ctx context.Context, markup decimal.Decimal) error
}

type PaymentStorage interface {
	// RecordPaymentDeposit credits the user balance and appends the
	// deposit ledger row exactly once per payment id. A repeated payment
	// id returns ErrPaymentAlreadyProcessed with no mutation.
	RecordPaymentDeposit(ctx context.Context, paymentID string, userID int64, amount decimal.Decimal, description string) error
}

type Storage interface {
	UserStorage
	ServiceStorage
	OrderStorage
	TransactionStorage
	IntentStorage
	SettingsStorage
	PaymentStorage
	Close() error
	Ping(ctx context.Context) error
}

func NewStorage(store Storage) Storage {
	return store
}
