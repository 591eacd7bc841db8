package models

import "github.com/shopspring/decimal"

type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ServiceResponse struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Rate     float64 `json:"rate"`
	Min      int     `json:"min"`
	Max      int     `json:"max"`
	Refill   bool    `json:"refill"`
}

type CreateOrderRequest struct {
	ServiceID int64  `json:"service_id"`
	Quantity  int    `json:"quantity"`
	Link      string `json:"link"`
}

type CreateOrderResponse struct {
	OrderID       int64   `json:"order_id"`
	VendorOrderID int64   `json:"vendor_order_id"`
	UserPrice     float64 `json:"user_price"`
	Status        string  `json:"status"`
}

type OrderResponse struct {
	ID            int64   `json:"id"`
	ServiceID     int64   `json:"service_id"`
	VendorOrderID int64   `json:"vendor_order_id"`
	Quantity      int     `json:"quantity"`
	UserPrice     float64 `json:"user_price"`
	RealPrice     float64 `json:"real_price,omitempty"`
	Profit        float64 `json:"profit,omitempty"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"created_at"`
}

type UserBalanceResponse struct {
	Balance float64 `json:"balance"`
}

type TransactionResponse struct {
	ID          int64   `json:"id"`
	OrderID     *int64  `json:"order_id,omitempty"`
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	CreatedAt   string  `json:"created_at"`
}

type RechargeRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
}

type RechargeResponse struct {
	PaymentID   string  `json:"payment_id,omitempty"`
	PayAddress  string  `json:"pay_address,omitempty"`
	PayAmount   float64 `json:"pay_amount,omitempty"`
	PayCurrency string  `json:"pay_currency,omitempty"`
	OrderID     string  `json:"order_id,omitempty"`
}

type MarkupRequest struct {
	MarkupAmount decimal.Decimal `json:"markup_amount"`
}

type MarkupResponse struct {
	MarkupAmount float64 `json:"markup_amount"`
}

type AdjustBalanceRequest struct {
	UserID      int64           `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
}

type ProfitReportResponse struct {
	Total float64 `json:"total"`
	Today float64 `json:"today"`
	Month float64 `json:"month"`
}

type VendorBalanceResponse struct {
	Balance  float64 `json:"balance"`
	Currency string  `json:"currency"`
}

type UserResponse struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Balance float64 `json:"balance"`
	IsAdmin bool    `json:"is_admin"`
}

type OrderStatusResponse struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
}
