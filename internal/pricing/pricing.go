// Package pricing applies the global markup to vendor rates. The markup is a
// flat per-unit amount added to the vendor rate and is loaded from the
// settings store per request, never held in process-wide state.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrMarkupNegative = errors.New("markup amount must not be negative")

// ValidateMarkup rejects markup values that must not be persisted.
func ValidateMarkup(markup decimal.Decimal) error {
	if markup.IsNegative() {
		return ErrMarkupNegative
	}

	return nil
}

// UserRate returns the user-facing per-unit price for a vendor rate.
func UserRate(rate, markup decimal.Decimal) decimal.Decimal {
	return rate.Add(markup)
}

// Quote is the pricing snapshot for one order: what the user pays, what the
// vendor charges and the margin between the two.
type Quote struct {
	UserRate  decimal.Decimal
	UserTotal decimal.Decimal
	RealTotal decimal.Decimal
	Profit    decimal.Decimal
}

// NewQuote prices quantity units of a service with vendor rate under the
// given markup.
func NewQuote(rate, markup decimal.Decimal, quantity int) (*Quote, error) {
	if err := ValidateMarkup(markup); err != nil {
		return nil, err
	}

	qty := decimal.NewFromInt(int64(quantity))

	userRate := UserRate(rate, markup)
	userTotal := userRate.Mul(qty)
	realTotal := rate.Mul(qty)

	return &Quote{
		UserRate:  userRate,
		UserTotal: userTotal,
		RealTotal: realTotal,
		Profit:    userTotal.Sub(realTotal),
	}, nil
}
