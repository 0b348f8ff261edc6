package pricemath

import (
	"github.com/shopspring/decimal"
)

// Precision is the minimum number of significant digits carried by every
// rounded intermediate in this package.
const Precision = 40

// guardDigits are carried on top of Precision inside iterative routines.
const guardDigits = 20

const workDigits = Precision + guardDigits

var (
	one  = decimal.New(1, 0)
	half = decimal.New(5, -1)
)

// Quo returns a/b rounded to at least Precision significant digits.
// b must be non-zero.
func Quo(a, b decimal.Decimal) decimal.Decimal {
	if a.IsZero() {
		return decimal.Zero
	}
	places := workDigits - (magnitude(a) - magnitude(b))
	if places < 0 {
		places = 0
	}
	return a.DivRound(b, int32(places))
}

// Round trims d to Precision significant digits.
func Round(d decimal.Decimal) decimal.Decimal {
	return roundSig(d, Precision)
}

// Sqrt returns the square root of d using Newton iteration. d must be
// non-negative; zero and negative inputs return zero.
func Sqrt(d decimal.Decimal) decimal.Decimal {
	if d.Sign() <= 0 {
		return decimal.Zero
	}

	x := decimal.New(1, int32(magnitude(d)/2))
	for i := 0; i < 200; i++ {
		next := roundSig(x.Add(Quo(d, x)).Mul(half), workDigits)
		if next.Equal(x) {
			break
		}
		x = next
	}
	return x
}

// magnitude returns the number of digits left of the decimal point of the
// leading digit of d (negative for |d| < 0.1).
func magnitude(d decimal.Decimal) int {
	coef := d.Coefficient()
	return len(coef.Abs(coef).String()) + int(d.Exponent())
}

func roundSig(d decimal.Decimal, digits int) decimal.Decimal {
	if d.IsZero() {
		return d
	}
	return d.Round(int32(digits - magnitude(d)))
}

// powInt raises base to exp with square-and-multiply, keeping workDigits
// significant digits after every product.
func powInt(base decimal.Decimal, exp int64) decimal.Decimal {
	negative := exp < 0
	if negative {
		exp = -exp
	}

	result := one
	square := base
	for exp > 0 {
		if exp&1 == 1 {
			result = roundSig(result.Mul(square), workDigits)
		}
		exp >>= 1
		if exp > 0 {
			square = roundSig(square.Mul(square), workDigits)
		}
	}

	if negative {
		return Quo(one, result)
	}
	return result
}
