package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRate(t *testing.T) {
	rate := decimal.RequireFromString("0.02")
	markup := decimal.RequireFromString("0.01")

	assert.True(t, UserRate(rate, markup).Equal(decimal.RequireFromString("0.03")))
	assert.True(t, UserRate(rate, decimal.Zero).Equal(rate))
}

func TestValidateMarkup(t *testing.T) {
	require.NoError(t, ValidateMarkup(decimal.Zero))
	require.NoError(t, ValidateMarkup(decimal.RequireFromString("0.5")))
	require.ErrorIs(t, ValidateMarkup(decimal.RequireFromString("-0.01")), ErrMarkupNegative)
}

func TestNewQuote(t *testing.T) {
	testCases := []struct {
		name      string
		rate      string
		markup    string
		quantity  int
		userTotal string
		realTotal string
		profit    string
	}{
		{
			name:      "markup adds to every unit",
			rate:      "0.02",
			markup:    "0.01",
			quantity:  100,
			userTotal: "3",
			realTotal: "2",
			profit:    "1",
		},
		{
			name:      "zero markup sells at cost",
			rate:      "0.05",
			markup:    "0",
			quantity:  200,
			userTotal: "10",
			realTotal: "10",
			profit:    "0",
		},
		{
			name:      "fractional rate keeps exact arithmetic",
			rate:      "0.001",
			markup:    "0.002",
			quantity:  333,
			userTotal: "0.999",
			realTotal: "0.333",
			profit:    "0.666",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			quote, err := NewQuote(
				decimal.RequireFromString(tc.rate),
				decimal.RequireFromString(tc.markup),
				tc.quantity,
			)
			require.NoError(t, err)

			assert.True(t, quote.UserTotal.Equal(decimal.RequireFromString(tc.userTotal)),
				"user total: got %s", quote.UserTotal)
			assert.True(t, quote.RealTotal.Equal(decimal.RequireFromString(tc.realTotal)),
				"real total: got %s", quote.RealTotal)
			assert.True(t, quote.Profit.Equal(decimal.RequireFromString(tc.profit)),
				"profit: got %s", quote.Profit)
			assert.True(t, quote.Profit.Equal(quote.UserTotal.Sub(quote.RealTotal)))
		})
	}
}

func TestNewQuoteRejectsNegativeMarkup(t *testing.T) {
	_, err := NewQuote(decimal.RequireFromString("0.02"), decimal.RequireFromString("-1"), 10)
	require.ErrorIs(t, err, ErrMarkupNegative)
}
