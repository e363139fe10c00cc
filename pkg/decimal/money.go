package decimal

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary amount with proper financial precision.
// Construction from strings keeps currency arithmetic exact; never build
// monetary values from binary floats.
type Money struct {
	decimal.Decimal
}

// NewFromString creates a Money instance from an exact decimal string.
func NewFromString(value string) (Money, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Money{}, err
	}
	return Money{d}, nil
}

// MustFromString is NewFromString for statically known values; it panics on
// malformed input and is meant for the fixed statutory tables.
func MustFromString(value string) Money {
	return Money{decimal.RequireFromString(value)}
}

// NewFromInt creates a Money instance from an integer amount.
func NewFromInt(value int64) Money {
	return Money{decimal.NewFromInt(value)}
}

// NewFromDecimal creates a Money instance from a decimal.Decimal.
func NewFromDecimal(d decimal.Decimal) Money {
	return Money{d}
}

// Round rounds the money amount to cents using banker's rounding.
func (m Money) Round() Money {
	return Money{m.Decimal.Round(2)}
}

// Annual converts a monthly amount to annual.
func (m Money) Annual() Money {
	return Money{m.Decimal.Mul(twelve)}
}

// Monthly converts an annual amount to monthly.
func (m Money) Monthly() Money {
	return Money{m.Decimal.Div(twelve)}
}

// ScaleToMonth scales an annual amount to its year-to-date share at the given
// 1-based month: amount/12*month.
func (m Money) ScaleToMonth(month int) Money {
	return Money{m.Decimal.Div(twelve).Mul(decimal.NewFromInt(int64(month)))}
}

var twelve = decimal.NewFromInt(12)

// Add adds another Money amount.
func (m Money) Add(other Money) Money {
	return Money{m.Decimal.Add(other.Decimal)}
}

// Sub subtracts another Money amount.
func (m Money) Sub(other Money) Money {
	return Money{m.Decimal.Sub(other.Decimal)}
}

// Mul multiplies by a decimal factor.
func (m Money) Mul(factor decimal.Decimal) Money {
	return Money{m.Decimal.Mul(factor)}
}

// Div divides by a decimal factor.
func (m Money) Div(factor decimal.Decimal) Money {
	return Money{m.Decimal.Div(factor)}
}

// GreaterThan checks if this amount is greater than another.
func (m Money) GreaterThan(other Money) bool {
	return m.Decimal.GreaterThan(other.Decimal)
}

// GreaterThanOrEqual checks if this amount is greater than or equal to another.
func (m Money) GreaterThanOrEqual(other Money) bool {
	return m.Decimal.GreaterThanOrEqual(other.Decimal)
}

// LessThan checks if this amount is less than another.
func (m Money) LessThan(other Money) bool {
	return m.Decimal.LessThan(other.Decimal)
}

// LessThanOrEqual checks if this amount is less than or equal to another.
func (m Money) LessThanOrEqual(other Money) bool {
	return m.Decimal.LessThanOrEqual(other.Decimal)
}

// Equal checks if this amount equals another.
func (m Money) Equal(other Money) bool {
	return m.Decimal.Equal(other.Decimal)
}

// IsZero checks if the amount is zero.
func (m Money) IsZero() bool {
	return m.Decimal.IsZero()
}

// IsPositive checks if the amount is positive.
func (m Money) IsPositive() bool {
	return m.Decimal.IsPositive()
}

// IsNegative checks if the amount is negative.
func (m Money) IsNegative() bool {
	return m.Decimal.IsNegative()
}

// Min returns the minimum of two Money amounts.
func Min(a, b Money) Money {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the maximum of two Money amounts.
func Max(a, b Money) Money {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Zero returns a zero Money amount.
func Zero() Money {
	return Money{decimal.Zero}
}

// Unbounded returns the sentinel used when a deduction carries no cap. It is
// only ever compared against, never fed back into a formula.
func Unbounded() Money {
	return Money{decimal.RequireFromString("9000000000000000")}
}

// String returns the amount rendered at cents for display. The stored value
// keeps full precision; only the rendering rounds.
func (m Money) String() string {
	return m.Decimal.StringFixed(2)
}

// Format formats the money amount with proper currency formatting.
func (m Money) Format() string {
	return "$" + m.String()
}
