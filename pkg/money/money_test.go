package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRoundIsHalfUp(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"888.485", "888.49"},
		{"888.4849", "888.48"},
		{"0.005", "0.01"},
		{"2.675", "2.68"},
		{"10.125", "10.13"},
		{"10.135", "10.14"},
	}
	for _, tt := range tests {
		got := Round(decimal.RequireFromString(tt.in))
		assert.Equal(t, tt.want, got.StringFixed(2), tt.in)
	}
}

func TestHasValidScale(t *testing.T) {
	assert.True(t, HasValidScale(decimal.RequireFromString("10.50")))
	assert.True(t, HasValidScale(decimal.NewFromInt(7)))
	assert.False(t, HasValidScale(decimal.RequireFromString("10.505")))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "12,345.60", Format(decimal.RequireFromString("12345.6")))
	assert.Equal(t, "0.00", Format(decimal.Zero))
	assert.Equal(t, "KES 1,000.00", FormatWithCurrency("KES", decimal.NewFromInt(1000)))
}

func TestMinAndNonNegative(t *testing.T) {
	a := decimal.NewFromInt(3)
	b := decimal.NewFromInt(5)
	assert.True(t, Min(a, b).Equal(a))
	assert.True(t, Min(b, a).Equal(a))
	assert.True(t, NonNegative(decimal.NewFromInt(-2)).IsZero())
}
