// Package money wraps shopspring/decimal so the rest of the module never
// touches floats for anything that represents cash or quantity.
package money

import "github.com/shopspring/decimal"

// TotalsScale is the fractional digit count for monetary totals.
const TotalsScale = 2

// UnitScale is the fractional digit count for unit prices and quantities.
const UnitScale = 4

// Amount is a monetary value rounded to TotalsScale on construction.
type Amount struct {
	decimal.Decimal
}

// NewAmount builds an Amount quantized to two fractional digits, half-up.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{d.Round(TotalsScale)}
}

// ParseAmount parses a decimal string into an Amount.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, err
	}
	return NewAmount(d), nil
}

// Zero is the additive identity.
func Zero() Amount { return Amount{decimal.Zero} }

// Sub returns a - b, quantized.
func (a Amount) Sub(b Amount) Amount { return NewAmount(a.Decimal.Sub(b.Decimal)) }

// Add returns a + b, quantized.
func (a Amount) Add(b Amount) Amount { return NewAmount(a.Decimal.Add(b.Decimal)) }

// AbsDiff returns |a-b| as a plain decimal (not re-quantized, callers decide).
func AbsDiff(a, b decimal.Decimal) decimal.Decimal {
	d := a.Sub(b)
	if d.IsNegative() {
		return d.Neg()
	}
	return d
}

// PercentageVariance returns |a-b| / max(|a|,|b|), or zero if both are zero.
// This is the same ratio as the tolerance engine's variance formula (spec
// §4.2), which computes it inline; the three-way line matcher calls this one.
func PercentageVariance(a, b decimal.Decimal) decimal.Decimal {
	if a.IsZero() && b.IsZero() {
		return decimal.Zero
	}
	max := a
	if b.Abs().GreaterThan(a.Abs()) {
		max = b
	}
	if max.IsZero() {
		return decimal.NewFromInt(1)
	}
	return AbsDiff(a, b).Div(max.Abs())
}

// Quantity is a decimal quantized to four fractional digits.
type Quantity struct {
	decimal.Decimal
}

// NewQuantity builds a Quantity quantized to four fractional digits.
func NewQuantity(d decimal.Decimal) Quantity {
	return Quantity{d.Round(UnitScale)}
}
