package num

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimal is the fixed point decimal used for every monetary value crossing
// the gateway boundary.
type Decimal = decimal.Decimal

var dzero = decimal.Zero

// DecimalZero returns a zero decimal.
func DecimalZero() Decimal {
	return dzero
}

// DecimalFromString parses a decimal from its string representation.
func DecimalFromString(s string) (Decimal, error) {
	return decimal.NewFromString(s)
}

// MustDecimalFromString parses a decimal and panics on invalid input. For
// use with compile time constants only.
func MustDecimalFromString(s string) Decimal {
	d, err := DecimalFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DecimalFromInt64 returns the decimal representation of an int64.
func DecimalFromInt64(i int64) Decimal {
	return decimal.NewFromInt(i)
}

// DecimalFromUint64 returns the decimal representation of a uint64.
func DecimalFromUint64(u uint64) Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(u), 0)
}

// Sum adds up the given decimals.
func Sum(ds ...Decimal) Decimal {
	t := dzero
	for _, d := range ds {
		t = t.Add(d)
	}
	return t
}
