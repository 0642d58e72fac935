// Package money holds the rounding law and display formatting for amounts.
package money

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Places is the number of fraction digits every stored amount carries.
const Places = 2

var (
	Hundred = decimal.NewFromInt(100)
	Twelve  = decimal.NewFromInt(12)
)

// Round applies half-up rounding to 2 places. decimal.Round rounds half away
// from zero, which is half-up for the non-negative amounts the ledger stores.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// NonNegative clamps d at zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// HasValidScale reports whether d has at most 2 fraction digits.
func HasValidScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(Places))
}

var printer = message.NewPrinter(language.English)

// Format renders an amount with grouping and two decimals, e.g. 12,345.60.
func Format(d decimal.Decimal) string {
	f, _ := Round(d).Float64()
	return printer.Sprint(number.Decimal(f, number.Scale(Places)))
}

// FormatWithCurrency prefixes the formatted amount with a currency code.
func FormatWithCurrency(code string, d decimal.Decimal) string {
	if code == "" {
		return Format(d)
	}
	return code + " " + Format(d)
}
