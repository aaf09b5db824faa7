package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiplyIsExact(t *testing.T) {
	nightly := Must("0.10", "brl")
	total := nightly.Multiply(3)

	assert.Equal(t, "BRL", total.Currency)
	assert.True(t, total.Amount.Equal(decimal.RequireFromString("0.30")))
	assert.Equal(t, "0.30", total.String())
}

func TestMultiplyWholeNights(t *testing.T) {
	total := Must("100.00", "BRL").Multiply(3)
	assert.Equal(t, "300.00", total.String())
}

func TestNewValidatesCurrency(t *testing.T) {
	_, err := New(decimal.NewFromInt(1), "EURO")
	assert.ErrorIs(t, err, ErrInvalidCurrency)

	_, err = Parse("abc", "EUR")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestAdd(t *testing.T) {
	sum, err := Must("10.25", "EUR").Add(Must("0.75", "EUR"))
	require.NoError(t, err)
	assert.True(t, sum.Equal(Must("11", "EUR")))

	_, err = Must("1", "EUR").Add(Must("1", "USD"))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestIsNegative(t *testing.T) {
	assert.True(t, Must("-0.01", "EUR").IsNegative())
	assert.False(t, Must("0", "EUR").IsNegative())
	assert.True(t, Must("0", "EUR").IsZero())
}
