package orders

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrOrderUserInvalid    = errors.New("order user id is invalid")
	ErrOrderServiceInvalid = errors.New("order service id is invalid")
	ErrOrderQuantityBad    = errors.New("order quantity must be positive")
)

// StatusPending is the initial status of every order that reached the vendor.
// All later statuses are vendor-controlled free text overwritten on refresh.
const StatusPending = "Pending"

// Order is one placement attempt that reached vendor submission, with the
// pricing snapshot taken at placement time.
type Order struct {
	ID            int64
	UserID        int64
	ServiceID     int64
	VendorOrderID int64
	Quantity      int
	UserPrice     decimal.Decimal
	RealPrice     decimal.Decimal
	Profit        decimal.Decimal
	Status        string
	CreatedAt     time.Time
}

func NewOrder(userID, serviceID, vendorOrderID int64, quantity int, userPrice, realPrice decimal.Decimal) (*Order, error) {
	if userID <= 0 {
		return nil, ErrOrderUserInvalid
	}

	if serviceID <= 0 {
		return nil, ErrOrderServiceInvalid
	}

	if quantity <= 0 {
		return nil, ErrOrderQuantityBad
	}

	return &Order{
		UserID:        userID,
		ServiceID:     serviceID,
		VendorOrderID: vendorOrderID,
		Quantity:      quantity,
		UserPrice:     userPrice,
		RealPrice:     realPrice,
		Profit:        userPrice.Sub(realPrice),
		Status:        StatusPending,
		CreatedAt:     time.Now(),
	}, nil
}
