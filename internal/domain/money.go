package domain

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

var (
	ErrAmountPrecision = errors.New("amount has more than two decimal places")
	ErrAmountRange     = errors.New("amount out of range")
)

var maxCents = decimal.NewFromInt(math.MaxInt64)

// Amount is a decimal money value as it arrives over the API. It accepts
// JSON numbers and quoted strings.
type Amount struct {
	decimal.Decimal
}

func (a Amount) Cents() (int64, error) {
	return ToCents(a.Decimal)
}

func ToCents(d decimal.Decimal) (int64, error) {
	scaled := d.Shift(2)
	if !scaled.IsInteger() {
		return 0, ErrAmountPrecision
	}
	if scaled.Abs().GreaterThan(maxCents) {
		return 0, ErrAmountRange
	}
	return scaled.IntPart(), nil
}

func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
