package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrServiceNameEmpty    = errors.New("service name is empty")
	ErrServiceRateNegative = errors.New("service rate is negative")
	ErrQuantityBoundsBad   = errors.New("service quantity bounds are invalid")
)

// ErrQuantityOutOfRange reports a requested quantity outside the allowed
// [min, max] window of a service.
type ErrQuantityOutOfRange struct {
	Quantity int
	Min      int
	Max      int
}

func (e *ErrQuantityOutOfRange) Error() string {
	return fmt.Sprintf("quantity %d is out of range [%d, %d]", e.Quantity, e.Min, e.Max)
}

// Service is a catalog entry mirrored from the upstream vendor. Rate is the
// vendor unit price without markup.
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

func NewService(vendorServiceID int64, name, typ, category string, rate decimal.Decimal, min, max int, refill bool) (*Service, error) {
	if name == "" {
		return nil, ErrServiceNameEmpty
	}

	if rate.IsNegative() {
		return nil, ErrServiceRateNegative
	}

	if min <= 0 || max < min {
		return nil, ErrQuantityBoundsBad
	}

	return &Service{
		VendorServiceID: vendorServiceID,
		Name:            name,
		Type:            typ,
		Category:        category,
		Rate:            rate,
		Min:             min,
		Max:             max,
		Refill:          refill,
	}, nil
}

// ValidateQuantity checks the requested quantity against the service bounds.
func (s *Service) ValidateQuantity(quantity int) error {
	if quantity < s.Min || quantity > s.Max {
		return &ErrQuantityOutOfRange{Quantity: quantity, Min: s.Min, Max: s.Max}
	}

	return nil
}
