package transactions

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Type classifies a ledger movement.
type Type string

const (
	// TypeDeposit is a recharge credited by a payment processor or manually.
	TypeDeposit Type = "deposit"

	// TypeDebit is a charge against the user balance (order placement or
	// an admin debit). Stored with a negative amount.
	TypeDebit Type = "debit"

	// TypeCredit is a balance increase (admin credit or a compensating
	// reversal of a failed order debit).
	TypeCredit Type = "credit"

	// TypeProfit is the platform margin booked per placed order. Profit
	// rows do not take part in user balance reconciliation.
	TypeProfit Type = "profit"
)

var ErrTypeUnknown = errors.New("transaction type is unknown")

func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeDeposit, TypeDebit, TypeCredit, TypeProfit:
		return Type(s), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrTypeUnknown, s)
	}
}

// Transaction is an append-only ledger row. Amount is signed: debits are
// negative, everything else positive.
type Transaction struct {
	ID          int64
	UserID      int64
	OrderID     *int64
	Type        Type
	Amount      decimal.Decimal
	Description string
	CreatedAt   time.Time
}

func NewDeposit(userID int64, amount decimal.Decimal, description string) *Transaction {
	return newTransaction(userID, TypeDeposit, amount, description)
}

func NewDebit(userID int64, amount decimal.Decimal, description string) *Transaction {
	return newTransaction(userID, TypeDebit, amount.Neg(), description)
}

func NewCredit(userID int64, amount decimal.Decimal, description string) *Transaction {
	return newTransaction(userID, TypeCredit, amount, description)
}

func NewProfit(userID int64, amount decimal.Decimal, description string) *Transaction {
	return newTransaction(userID, TypeProfit, amount, description)
}

func newTransaction(userID int64, typ Type, amount decimal.Decimal, description string) *Transaction {
	return &Transaction{
		UserID:      userID,
		Type:        typ,
		Amount:      amount,
		Description: description,
		CreatedAt:   time.Now(),
	}
}

// ProfitReport aggregates booked profit rows for the admin dashboard.
type ProfitReport struct {
	Total decimal.Decimal
	Today decimal.Decimal
	Month decimal.Decimal
}
