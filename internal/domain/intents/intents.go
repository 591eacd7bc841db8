package intents

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// State tracks the lifecycle of an order intent. A pending intent marks a
// debit whose vendor submission has not been resolved yet; a crash between
// the debit and its resolution leaves the intent pending for the reconciler.
type State string

const (
	StatePending     State = "pending"
	StateCommitted   State = "committed"
	StateCompensated State = "compensated"
)

var ErrStateUnknown = errors.New("intent state is unknown")

// OrderIntent is the durable record written between the balance debit and the
// vendor call during order placement.
type OrderIntent struct {
	ID        string
	UserID    int64
	ServiceID int64
	Quantity  int
	Link      string
	UserPrice decimal.Decimal
	State     State
	CreatedAt time.Time
}

func NewOrderIntent(userID, serviceID int64, quantity int, link string, userPrice decimal.Decimal) *OrderIntent {
	return &OrderIntent{
		ID:        uuid.NewString(),
		UserID:    userID,
		ServiceID: serviceID,
		Quantity:  quantity,
		Link:      link,
		UserPrice: userPrice,
		State:     StatePending,
		CreatedAt: time.Now(),
	}
}

func ParseState(s string) (State, error) {
	switch State(s) {
	case StatePending, StateCommitted, StateCompensated:
		return State(s), nil
	default:
		return "", ErrStateUnknown
	}
}
