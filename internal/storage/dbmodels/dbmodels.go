package dbmodels

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	IsAdmin      bool
	Balance      decimal.Decimal
	CreatedAt    time.Time
}

type Service struct {
	ID              int64
	VendorServiceID int64
	Name            string
	Type            string
	Category        string
	Rate            decimal.Decimal
	Min             int
	Max             int
	Refill          bool
}

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

type Transaction struct {
	ID          int64
	UserID      int64
	OrderID     sql.NullInt64
	Type        string
	Amount      decimal.Decimal
	Description string
	CreatedAt   time.Time
}

type OrderIntent struct {
	ID        string
	UserID    int64
	ServiceID int64
	Quantity  int
	Link      string
	UserPrice decimal.Decimal
	State     string
	CreatedAt time.Time
}
