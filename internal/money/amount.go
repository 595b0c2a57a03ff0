package money

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/apd/v3"
)

// Amount is an exact decimal quantity. Sums of Amounts do not depend on
// the order in which they are added, which float64 cannot promise.
type Amount struct {
	value apd.Decimal
}

var ctx = apd.BaseContext.WithPrecision(34)

func Zero() Amount { return Amount{} }

func FromInt64(i int64) Amount {
	var d apd.Decimal
	d.SetInt64(i)
	return Amount{value: d}
}

// Parse reads a plain decimal string such as "1234.50" or "-3".
func Parse(s string) (Amount, error) {
	var d apd.Decimal
	if _, _, err := d.SetString(s); err != nil {
		return Amount{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	if d.Form != apd.Finite {
		return Amount{}, fmt.Errorf("invalid decimal %q: not finite", s)
	}
	return Amount{value: d}, nil
}

func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) String() string { return a.value.Text('f') }

func (a Amount) IsZero() bool { return a.value.IsZero() }

func (a Amount) Sign() int { return a.value.Sign() }

func (a Amount) Cmp(other Amount) int { return a.value.Cmp(&other.value) }

func (a Amount) Add(other Amount) Amount {
	var r apd.Decimal
	ctx.Add(&r, &a.value, &other.value)
	return Amount{value: r}
}

func (a Amount) Sub(other Amount) Amount {
	var r apd.Decimal
	ctx.Sub(&r, &a.value, &other.value)
	return Amount{value: r}
}

func (a Amount) Mul(other Amount) Amount {
	var r apd.Decimal
	ctx.Mul(&r, &a.value, &other.value)
	return Amount{value: r}
}

func (a Amount) MulInt(i int64) Amount { return a.Mul(FromInt64(i)) }

// Div divides a by other. The caller guards against a zero divisor; Div
// reports false instead of producing an infinity.
func (a Amount) Div(other Amount) (Amount, bool) {
	if other.IsZero() {
		return Amount{}, false
	}
	var r apd.Decimal
	if _, err := ctx.Quo(&r, &a.value, &other.value); err != nil {
		return Amount{}, false
	}
	return Amount{value: r}, true
}

// RoundHalfEven rounds to the nearest integer, ties to even.
func (a Amount) RoundHalfEven() int64 {
	rc := *ctx
	rc.Rounding = apd.RoundHalfEven
	var r apd.Decimal
	if _, err := rc.Quantize(&r, &a.value, 0); err != nil {
		return 0
	}
	i, err := r.Int64()
	if err != nil {
		return 0
	}
	return i
}

// Float64 rounds to the given number of decimal places (half-even) and
// converts.
func (a Amount) Float64(places int32) float64 {
	rc := *ctx
	rc.Rounding = apd.RoundHalfEven
	var r apd.Decimal
	if _, err := rc.Quantize(&r, &a.value, -places); err != nil {
		f, _ := a.value.Float64()
		return f
	}
	f, err := strconv.ParseFloat(r.Text('f'), 64)
	if err != nil {
		return 0
	}
	return f
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(a.Float64(2), 'f', -1, 64)), nil
}

// Sum adds amounts in any order.
func Sum(amounts ...Amount) Amount {
	total := Zero()
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
