// Package pricemath converts between the Q64.96 square-root price encoding,
// tick indices and ordinary decimal prices without touching float64.
package pricemath

import (
	"math/big"
	"sync"

	"github.com/shopspring/decimal"
)

const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

// 2^-96 == 5^96 * 10^-96, so a Q96 value decodes exactly.
var q96Numerator = new(big.Int).Exp(big.NewInt(5), big.NewInt(96), nil)

var (
	tickBase     = decimal.RequireFromString("1.0001")
	sqrtTickBase decimal.Decimal
	sqrtBaseOnce sync.Once
)

// DecodeSqrtPrice returns raw / 2^96 exactly. raw must be non-negative.
func DecodeSqrtPrice(raw *big.Int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(new(big.Int).Mul(raw, q96Numerator), -96)
}

// PriceFromSqrtPrice squares a square-root price.
func PriceFromSqrtPrice(sqrtPrice decimal.Decimal) decimal.Decimal {
	return sqrtPrice.Mul(sqrtPrice)
}

// SqrtPriceFromTick returns 1.0001^(tick/2).
func SqrtPriceFromTick(tick int32) decimal.Decimal {
	sqrtBaseOnce.Do(func() {
		sqrtTickBase = Sqrt(tickBase)
	})
	return powInt(sqrtTickBase, int64(tick))
}

// PriceFromTick returns 1.0001^tick.
func PriceFromTick(tick int32) decimal.Decimal {
	return powInt(tickBase, int64(tick))
}

// TickAtSqrtPrice returns the greatest tick whose square-root price is
// less than or equal to sqrtPrice, clamped to [MinTick, MaxTick].
func TickAtSqrtPrice(sqrtPrice decimal.Decimal) int32 {
	lo, hi := MinTick, MaxTick
	if sqrtPrice.LessThan(SqrtPriceFromTick(lo)) {
		return lo
	}
	if sqrtPrice.GreaterThanOrEqual(SqrtPriceFromTick(hi)) {
		return hi
	}
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		if SqrtPriceFromTick(mid).LessThanOrEqual(sqrtPrice) {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}
