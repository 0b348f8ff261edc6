package pricemath

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// AdjustForDecimals converts a raw-unit price of asset1 per asset0 into a
// human-scale price by shifting it by decimals0 - decimals1 powers of ten.
func AdjustForDecimals(price decimal.Decimal, decimals0, decimals1 uint8) decimal.Decimal {
	return price.Shift(int32(decimals0) - int32(decimals1))
}

// ScaleAmount converts a raw token amount into whole-token units.
func ScaleAmount(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}
