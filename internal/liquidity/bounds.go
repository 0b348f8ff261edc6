package liquidity

import (
	"fmt"

	"github.com/shopspring/decimal"

	"lpValuer/internal/pricemath"
)

// Bounds is a square-root price window. When Unbounded is set the upper
// bound is +inf and Upper is ignored.
type Bounds struct {
	Lower     decimal.Decimal
	Upper     decimal.Decimal
	Unbounded bool
}

// Validate checks 0 <= Lower < Upper.
func (b Bounds) Validate() error {
	if b.Lower.Sign() < 0 {
		return fmt.Errorf("lower bound %s is negative", b.Lower)
	}
	if !b.Unbounded && b.Upper.LessThanOrEqual(b.Lower) {
		return fmt.Errorf("%w: lower %s, upper %s", ErrEmptyRange, b.Lower, b.Upper)
	}
	return nil
}

// LiquidityForAmounts infers the liquidity that amount0/amount1 support in
// the window at the current square-root price. Inside the window the
// smaller of the two single-asset liquidities wins.
func LiquidityForAmounts(amount0, amount1, current decimal.Decimal, bounds Bounds) (decimal.Decimal, error) {
	if err := bounds.Validate(); err != nil {
		return decimal.Zero, err
	}

	lower := bounds.Lower
	if current.LessThanOrEqual(lower) {
		return liquidity0(amount0, lower, bounds), nil
	}
	if !bounds.Unbounded && current.GreaterThanOrEqual(bounds.Upper) {
		return pricemath.Quo(amount1, bounds.Upper.Sub(lower)), nil
	}

	l0 := liquidity0(amount0, current, bounds)
	l1 := pricemath.Quo(amount1, current.Sub(lower))
	return decimal.Min(l0, l1), nil
}

// liquidity0 is amount0 * (upper*from)/(upper-from); with no upper bound the
// ratio tends to from.
func liquidity0(amount0, from decimal.Decimal, bounds Bounds) decimal.Decimal {
	if bounds.Unbounded {
		return amount0.Mul(from)
	}
	return pricemath.Quo(amount0.Mul(bounds.Upper.Mul(from)), bounds.Upper.Sub(from))
}
