// Package adminflow implements the manual operations behind the admin
// surface: balance adjustments, markup management and reporting.
package adminflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andymarkow/smmstore/internal/domain/orders"
	"github.com/andymarkow/smmstore/internal/domain/transactions"
	"github.com/andymarkow/smmstore/internal/domain/users"
	"github.com/andymarkow/smmstore/internal/pricing"
	"github.com/andymarkow/smmstore/internal/storage"
)

var (
	ErrAmountNotPositive = errors.New("adjustment amount must be positive")
	ErrAdjustmentTypeBad = errors.New("adjustment type must be credit or debit")
	ErrInsufficientFunds = errors.New("user balance cannot cover the debit")
)

// AdjustmentType limits manual adjustments to the two recognized directions.
type AdjustmentType string

const (
	AdjustCredit AdjustmentType = "credit"
	AdjustDebit  AdjustmentType = "debit"
)

func ParseAdjustmentType(s string) (AdjustmentType, error) {
	switch AdjustmentType(s) {
	case AdjustCredit, AdjustDebit:
		return AdjustmentType(s), nil
	default:
		return "", ErrAdjustmentTypeBad
	}
}

type Service struct {
	log     *slog.Logger
	storage storage.Storage
}

func New(store storage.Storage, opts ...Option) *Service {
	s := &Service{
		log:     slog.New(&slog.JSONHandler{}),
		storage: store,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.log = logger.With(slog.String("module", "adminflow"))
	}
}

// AdjustBalance applies a manual credit or debit together with its ledger
// row. Guards reject before any mutation; the balance update and the
// transaction insert commit together.
func (s *Service) AdjustBalance(ctx context.Context, userID int64, amount decimal.Decimal, typ AdjustmentType, description string) error {
	if !amount.IsPositive() {
		return ErrAmountNotPositive
	}

	switch typ {
	case AdjustCredit:
		txn := transactions.NewCredit(userID, amount, description)

		if err := s.storage.CreditUserBalance(ctx, userID, amount, txn); err != nil {
			return fmt.Errorf("storage.CreditUserBalance: %w", err)
		}

	case AdjustDebit:
		txn := transactions.NewDebit(userID, amount, description)

		err := s.storage.DebitUserBalance(ctx, userID, amount, txn)
		if err != nil {
			if errors.Is(err, storage.ErrUserBalanceNotEnough) {
				return ErrInsufficientFunds
			}

			return fmt.Errorf("storage.DebitUserBalance: %w", err)
		}

	default:
		return ErrAdjustmentTypeBad
	}

	s.log.Info("Balance adjusted",
		slog.Int64("user_id", userID),
		slog.String("type", string(typ)),
		slog.String("amount", amount.String()),
	)

	return nil
}

// SetMarkup validates and persists the global markup amount. Invalid input
// leaves the stored configuration untouched.
func (s *Service) SetMarkup(ctx context.Context, markup decimal.Decimal) error {
	if err := pricing.ValidateMarkup(markup); err != nil {
		return err
	}

	if err := s.storage.SetMarkup(ctx, markup); err != nil {
		return fmt.Errorf("storage.SetMarkup: %w", err)
	}

	return nil
}

func (s *Service) GetMarkup(ctx context.Context) (decimal.Decimal, error) {
	markup, err := s.storage.GetMarkup(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("storage.GetMarkup: %w", err)
	}

	return markup, nil
}

func (s *Service) ProfitReport(ctx context.Context) (*transactions.ProfitReport, error) {
	report, err := s.storage.ProfitReport(ctx, time.Now())
	if err != nil {
		return nil, fmt.Errorf("storage.ProfitReport: %w", err)
	}

	return report, nil
}

func (s *Service) UserTransactions(ctx context.Context, userID int64) ([]*transactions.Transaction, error) {
	if _, err := s.storage.GetUserByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("storage.GetUserByID: %w", err)
	}

	list, err := s.storage.GetTransactionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetTransactionsByUser: %w", err)
	}

	return list, nil
}

func (s *Service) ListOrders(ctx context.Context, statuses ...string) ([]*orders.Order, error) {
	list, err := s.storage.ListOrders(ctx, statuses...)
	if err != nil {
		return nil, fmt.Errorf("storage.ListOrders: %w", err)
	}

	return list, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]*users.User, error) {
	list, err := s.storage.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage.ListUsers: %w", err)
	}

	return list, nil
}
