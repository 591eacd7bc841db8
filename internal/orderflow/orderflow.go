// Package orderflow orchestrates order placement against the vendor: balance
// debit, vendor submission, order persistence and compensating credits when
// any step after the debit fails.
package orderflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/andymarkow/smmstore/internal/domain/intents"
	"github.com/andymarkow/smmstore/internal/domain/orders"
	"github.com/andymarkow/smmstore/internal/domain/transactions"
	"github.com/andymarkow/smmstore/internal/pricing"
	"github.com/andymarkow/smmstore/internal/storage"
	"github.com/andymarkow/smmstore/internal/vendor"
)

var (
	ErrLinkEmpty           = errors.New("order link is empty")
	ErrQuantityInvalid     = errors.New("order quantity is invalid")
	ErrInsufficientBalance = errors.New("balance is not enough to place the order")
)

type Service struct {
	log     *slog.Logger
	storage storage.Storage
	vendor  *vendor.Client
}

func New(store storage.Storage, vendorClient *vendor.Client, opts ...Option) *Service {
	s := &Service{
		log:     slog.New(&slog.JSONHandler{}),
		storage: store,
		vendor:  vendorClient,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.log = logger.With(slog.String("module", "orderflow"))
	}
}

// Placement is the outcome of a successful order.
type Placement struct {
	OrderID       int64
	VendorOrderID int64
	UserPrice     decimal.Decimal
	Status        string
}

// PlaceOrder runs the full placement sequence. Validation failures reject
// before any mutation. After the debit commits, every failure path refunds
// the amount through the intent; if the refund itself fails, the intent
// stays pending and the reconciler retries it.
func (s *Service) PlaceOrder(ctx context.Context, userID, serviceID int64, quantity int, link string) (*Placement, error) {
	svc, err := s.storage.GetService(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetService: %w", err)
	}

	if quantity <= 0 {
		return nil, ErrQuantityInvalid
	}

	if err := svc.ValidateQuantity(quantity); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuantityInvalid, err)
	}

	link = strings.TrimSpace(link)
	if link == "" {
		return nil, ErrLinkEmpty
	}

	// The markup is read from the store at placement time and threaded
	// through the quote; there is no process-wide pricing state.
	markup, err := s.storage.GetMarkup(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage.GetMarkup: %w", err)
	}

	quote, err := pricing.NewQuote(svc.Rate, markup, quantity)
	if err != nil {
		return nil, fmt.Errorf("pricing.NewQuote: %w", err)
	}

	// Debit first. The conditional update re-reads the authoritative
	// balance, so a stale cached balance can never pass the check.
	debitDesc := fmt.Sprintf("Order payment: %s x%d", svc.Name, quantity)

	err = s.storage.DebitUserBalance(ctx, userID, quote.UserTotal,
		transactions.NewDebit(userID, quote.UserTotal, debitDesc))
	if err != nil {
		if errors.Is(err, storage.ErrUserBalanceNotEnough) {
			return nil, ErrInsufficientBalance
		}

		return nil, fmt.Errorf("storage.DebitUserBalance: %w", err)
	}

	// Durable intent between the debit and the vendor call: a crash from
	// here on leaves a pending intent for the reconciler to compensate.
	intent := intents.NewOrderIntent(userID, serviceID, quantity, link, quote.UserTotal)

	if err := s.storage.CreateIntent(ctx, intent); err != nil {
		s.compensate(ctx, userID, quote.UserTotal, "intent persistence failed")

		return nil, fmt.Errorf("storage.CreateIntent: %w", err)
	}

	vendorOrderID, err := s.vendor.AddOrder(ctx, svc.VendorServiceID, link, quantity)
	if err != nil {
		s.compensateIntent(ctx, intent, "vendor order submission failed")

		return nil, fmt.Errorf("vendor.AddOrder: %w", err)
	}

	order, err := orders.NewOrder(userID, serviceID, vendorOrderID, quantity, quote.UserTotal, quote.RealTotal)
	if err != nil {
		s.compensateIntent(ctx, intent, "order construction failed")

		return nil, fmt.Errorf("orders.NewOrder: %w", err)
	}

	profitDesc := fmt.Sprintf("Profit on order for service %s", svc.Name)
	profit := transactions.NewProfit(userID, quote.Profit, profitDesc)

	orderID, err := s.storage.CreateOrder(ctx, order, profit)
	if err != nil {
		s.compensateIntent(ctx, intent, "order persistence failed")

		return nil, fmt.Errorf("storage.CreateOrder: %w", err)
	}

	s.resolveIntent(ctx, intent.ID, intents.StateCommitted)

	s.log.Info("Order placed",
		slog.Int64("order_id", orderID),
		slog.Int64("vendor_order_id", vendorOrderID),
		slog.Int64("user_id", userID),
		slog.String("user_price", quote.UserTotal.String()),
		slog.String("profit", quote.Profit.String()),
	)

	return &Placement{
		OrderID:       orderID,
		VendorOrderID: vendorOrderID,
		UserPrice:     quote.UserTotal,
		Status:        order.Status,
	}, nil
}

// compensate credits the debited amount back directly. Only the path where
// the intent row itself could not be written uses it; every later failure
// goes through compensateIntent.
func (s *Service) compensate(ctx context.Context, userID int64, amount decimal.Decimal, reason string) {
	txn := transactions.NewCredit(userID, amount, "Order refund: "+reason)

	if err := s.storage.CreditUserBalance(ctx, userID, amount, txn); err != nil {
		s.log.Error("Compensating credit failed",
			slog.Int64("user_id", userID),
			slog.String("amount", amount.String()),
			slog.Any("error", err),
		)
	}
}

// compensateIntent refunds the debit and resolves the intent in one storage
// operation. On failure the intent stays pending, so the reconciler retries
// the refund instead of the money being lost.
func (s *Service) compensateIntent(ctx context.Context, intent *intents.OrderIntent, reason string) {
	txn := transactions.NewCredit(intent.UserID, intent.UserPrice, "Order refund: "+reason)

	err := s.storage.CompensateIntent(ctx, intent.ID, intent.UserID, intent.UserPrice, txn)
	if err != nil {
		s.log.Error("Intent compensation failed",
			slog.String("intent_id", intent.ID),
			slog.Int64("user_id", intent.UserID),
			slog.Any("error", err),
		)
	}
}

func (s *Service) resolveIntent(ctx context.Context, intentID string, state intents.State) {
	if err := s.storage.ResolveIntent(ctx, intentID, state); err != nil {
		s.log.Error("Intent resolution failed",
			slog.String("intent_id", intentID),
			slog.String("state", string(state)),
			slog.Any("error", err),
		)
	}
}

// RefreshStatus re-polls the vendor for the order status and overwrites the
// local copy. Admin-triggered only; there is no polling loop.
func (s *Service) RefreshStatus(ctx context.Context, orderID int64) (string, error) {
	order, err := s.storage.GetOrder(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("storage.GetOrder: %w", err)
	}

	status, err := s.vendor.OrderStatus(ctx, order.VendorOrderID)
	if err != nil {
		return "", fmt.Errorf("vendor.OrderStatus: %w", err)
	}

	if err := s.storage.UpdateOrderStatus(ctx, orderID, status); err != nil {
		return "", fmt.Errorf("storage.UpdateOrderStatus: %w", err)
	}

	return status, nil
}

// UserOrders lists the orders of one user, newest first.
func (s *Service) UserOrders(ctx context.Context, userID int64) ([]*orders.Order, error) {
	list, err := s.storage.GetOrdersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetOrdersByUser: %w", err)
	}

	return list, nil
}
