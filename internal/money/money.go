// internal/money/money.go
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DecimalConfig defines fixed-point precision
type DecimalConfig struct {
	DecimalPrecision int   // Number of decimal places
	Scale            int64 // 10^DecimalPrecision
}

// AmountConfig is the precision of every balance and transaction amount.
var AmountConfig = DecimalConfig{DecimalPrecision: 4, Scale: 10_000} // 0.0001

// ErrOutOfRange is returned when an amount does not fit the fixed-point range.
var ErrOutOfRange = errors.New("amount out of range")

// Money is a signed fixed-point amount counted in 1/AmountConfig.Scale units.
// Arithmetic is exact; there is no floating point anywhere on the path.
type Money int64

// Zero is the additive identity.
const Zero Money = 0

// FromUnits builds a Money from a raw count of 0.0001 units.
func FromUnits(units int64) Money {
	return Money(units)
}

// Parse reads a decimal string. Digits past the 4th fractional place are
// truncated toward zero, never rounded.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return FromDecimal(d)
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromDecimal converts an arbitrary-precision decimal, truncating toward zero.
func FromDecimal(d decimal.Decimal) (Money, error) {
	precision := int32(AmountConfig.DecimalPrecision)
	scaled := d.Truncate(precision).Shift(precision).BigInt()
	if !scaled.IsInt64() {
		return 0, fmt.Errorf("%w: %s", ErrOutOfRange, d.String())
	}
	return Money(scaled.Int64()), nil
}

// Units returns the raw fixed-point count.
func (m Money) Units() int64 {
	return int64(m)
}

// Decimal returns the exact decimal value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -int32(AmountConfig.DecimalPrecision))
}

func (m Money) Add(o Money) Money {
	return m + o
}

func (m Money) Sub(o Money) Money {
	return m - o
}

// AddChecked is Add that reports int64 overflow as ErrOutOfRange instead
// of wrapping.
func (m Money) AddChecked(o Money) (Money, error) {
	sum := m + o
	if (o > 0 && sum < m) || (o < 0 && sum > m) {
		return 0, fmt.Errorf("%w: %s + %s", ErrOutOfRange, m, o)
	}
	return sum, nil
}

// SubChecked is Sub that reports int64 overflow as ErrOutOfRange.
func (m Money) SubChecked(o Money) (Money, error) {
	diff := m - o
	if (o > 0 && diff > m) || (o < 0 && diff < m) {
		return 0, fmt.Errorf("%w: %s - %s", ErrOutOfRange, m, o)
	}
	return diff, nil
}

// Cmp returns -1, 0 or +1.
func (m Money) Cmp(o Money) int {
	switch {
	case m < o:
		return -1
	case m > o:
		return 1
	default:
		return 0
	}
}

func (m Money) IsPositive() bool {
	return m > 0
}

func (m Money) IsNegative() bool {
	return m < 0
}

func (m Money) IsZero() bool {
	return m == 0
}

// String renders exactly four fractional digits, e.g. "-50.0000".
func (m Money) String() string {
	return m.Decimal().StringFixed(int32(AmountConfig.DecimalPrecision))
}

// MarshalJSON encodes the amount as a JSON string to keep every digit.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts both JSON strings and JSON numbers.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("parse amount: %w", err)
	}
	parsed, err := FromDecimal(d)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
