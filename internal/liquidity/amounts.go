// Package liquidity splits concentrated liquidity into token amounts and
// back. All prices are square-root prices; amounts keep whatever units the
// caller supplies.
package liquidity

import (
	"errors"

	"github.com/shopspring/decimal"

	"lpValuer/internal/pricemath"
)

// ErrEmptyRange is returned when a range has no width.
var ErrEmptyRange = errors.New("liquidity range is empty")

// Branch tells where the current price sits relative to a range.
type Branch int

const (
	BelowRange Branch = iota
	InRange
	AboveRange
)

func (b Branch) String() string {
	switch b {
	case BelowRange:
		return "below"
	case InRange:
		return "in_range"
	case AboveRange:
		return "above"
	default:
		return "unknown"
	}
}

// Classify places current against [lower, upper]. A price equal to either
// bound belongs to the single-asset side.
func Classify(current, lower, upper decimal.Decimal) Branch {
	switch {
	case current.LessThanOrEqual(lower):
		return BelowRange
	case current.GreaterThanOrEqual(upper):
		return AboveRange
	default:
		return InRange
	}
}

// AmountsForLiquidity returns the asset0/asset1 amounts represented by
// liquidity between the lower and upper square-root prices at the current
// square-root price. lower must not exceed upper and both must be positive.
func AmountsForLiquidity(liquidity, current, lower, upper decimal.Decimal) (decimal.Decimal, decimal.Decimal, Branch) {
	branch := Classify(current, lower, upper)
	switch branch {
	case BelowRange:
		amount0 := liquidity.Mul(inverse(lower).Sub(inverse(upper)))
		return amount0, decimal.Zero, branch
	case AboveRange:
		return decimal.Zero, liquidity.Mul(upper.Sub(lower)), branch
	default:
		amount0 := liquidity.Mul(inverse(current).Sub(inverse(upper)))
		amount1 := liquidity.Mul(current.Sub(lower))
		return amount0, amount1, branch
	}
}

// FullRangeAmounts converts liquidity into amounts as if it spanned every
// price: L/sqrtPrice of asset0 and L*sqrtPrice of asset1.
func FullRangeAmounts(liquidity, sqrtPrice decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if liquidity.IsZero() {
		return decimal.Zero, decimal.Zero
	}
	return pricemath.Quo(liquidity, sqrtPrice), liquidity.Mul(sqrtPrice)
}

func inverse(d decimal.Decimal) decimal.Decimal {
	return pricemath.Quo(decimal.New(1, 0), d)
}
