// Package valuation turns position, pool and price data into a USD
// valuation of a concentrated-liquidity position.
package valuation

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"lpValuer/internal/liquidity"
	"lpValuer/internal/model"
	"lpValuer/internal/pricemath"
)

// Inputs is everything Valuate needs. Nothing in it is fetched lazily.
type Inputs struct {
	BlockNumber uint64
	Position    model.Position
	Pool        model.PoolState
	Assets      model.AssetMetadata
	Fees        model.FeeAccrual
	Window      model.PriceRange
	Asset0USD   decimal.Decimal
	Asset1USD   decimal.Decimal
}

// PoolPrice returns the decimal-adjusted price of asset0 in asset1.
func PoolPrice(pool model.PoolState, assets model.AssetMetadata) (decimal.Decimal, error) {
	if err := validatePool(pool); err != nil {
		return decimal.Zero, err
	}
	sqrtPrice := pricemath.DecodeSqrtPrice(pool.SqrtPriceX96)
	return pricemath.AdjustForDecimals(pricemath.PriceFromSqrtPrice(sqrtPrice), assets.Decimals0, assets.Decimals1), nil
}

// Valuate values a position. It is deterministic: the same Inputs always
// produce the same Valuation.
func Valuate(in Inputs) (model.Valuation, error) {
	if err := validate(in); err != nil {
		return model.Valuation{}, err
	}

	liq := decimal.NewFromBigInt(in.Position.Liquidity, 0)
	current := pricemath.DecodeSqrtPrice(in.Pool.SqrtPriceX96)
	lower := pricemath.SqrtPriceFromTick(in.Position.TickLower)
	upper := pricemath.SqrtPriceFromTick(in.Position.TickUpper)

	raw0, raw1, branch := liquidity.AmountsForLiquidity(liq, current, lower, upper)
	amount0 := raw0.Shift(-int32(in.Assets.Decimals0))
	amount1 := raw1.Shift(-int32(in.Assets.Decimals1))

	poolPrice := pricemath.AdjustForDecimals(pricemath.PriceFromSqrtPrice(current), in.Assets.Decimals0, in.Assets.Decimals1)
	sqrtPoolPrice := pricemath.Sqrt(poolPrice)

	displayL, err := liquidity.LiquidityForAmounts(amount0, amount1, sqrtPoolPrice, windowBounds(in.Window))
	if err != nil {
		return model.Valuation{}, fmt.Errorf("%w: display window %s: %w", ErrInvalidInput, in.Window, err)
	}

	value0, value1 := liquidity.FullRangeAmounts(displayL, sqrtPoolPrice)
	positionUSD := value0.Mul(in.Asset0USD).Add(value1.Mul(in.Asset1USD))

	fee0 := pricemath.ScaleAmount(in.Fees.Amount0, in.Assets.Decimals0)
	fee1 := pricemath.ScaleAmount(in.Fees.Amount1, in.Assets.Decimals1)
	feesUSD := fee0.Mul(in.Asset0USD).Add(fee1.Mul(in.Asset1USD))

	return model.Valuation{
		BlockNumber:      in.BlockNumber,
		PoolPrice:        pricemath.Round(poolPrice),
		Asset0USD:        pricemath.Round(in.Asset0USD),
		Asset1USD:        pricemath.Round(in.Asset1USD),
		PositionUSD:      pricemath.Round(positionUSD),
		FeesUSD:          pricemath.Round(feesUSD),
		TotalUSD:         pricemath.Round(positionUSD.Add(feesUSD)),
		PoolTick:         in.Pool.Tick,
		InRange:          branch == liquidity.InRange,
		Amount0:          pricemath.Round(amount0),
		Amount1:          pricemath.Round(amount1),
		DisplayLiquidity: pricemath.Round(displayL),
		Fee0:             fee0,
		Fee1:             fee1,
	}, nil
}

// windowBounds maps a price window onto square-root price bounds.
func windowBounds(w model.PriceRange) liquidity.Bounds {
	b := liquidity.Bounds{Lower: pricemath.Sqrt(w.Lower), Unbounded: w.Unbounded}
	if !w.Unbounded {
		b.Upper = pricemath.Sqrt(w.Upper)
	}
	return b
}

func validate(in Inputs) error {
	pos := in.Position
	if pos.Liquidity == nil {
		return fmt.Errorf("%w: position liquidity missing", ErrInvalidInput)
	}
	if pos.Liquidity.Sign() < 0 {
		return fmt.Errorf("%w: negative liquidity %s", ErrInvalidInput, pos.Liquidity)
	}
	if pos.TickLower >= pos.TickUpper {
		return fmt.Errorf("%w: tick lower %d not below tick upper %d", ErrInvalidInput, pos.TickLower, pos.TickUpper)
	}
	if pos.TickLower < pricemath.MinTick || pos.TickUpper > pricemath.MaxTick {
		return fmt.Errorf("%w: ticks [%d, %d] outside [%d, %d]", ErrInvalidInput, pos.TickLower, pos.TickUpper, pricemath.MinTick, pricemath.MaxTick)
	}
	if err := validatePool(in.Pool); err != nil {
		return err
	}
	if in.Window.Lower.Sign() < 0 {
		return fmt.Errorf("%w: negative window lower %s", ErrInvalidInput, in.Window.Lower)
	}
	if !in.Window.Unbounded && in.Window.Upper.LessThanOrEqual(in.Window.Lower) {
		return fmt.Errorf("%w: empty display window %s", ErrInvalidInput, in.Window)
	}
	if negative(in.Fees.Amount0) || negative(in.Fees.Amount1) {
		return fmt.Errorf("%w: negative fee amount", ErrInvalidInput)
	}
	if in.Asset0USD.Sign() < 0 || in.Asset1USD.Sign() < 0 {
		return fmt.Errorf("%w: negative usd price", ErrInvalidInput)
	}
	return nil
}

func negative(v *big.Int) bool {
	return v != nil && v.Sign() < 0
}

// A zero sqrt price marks an uninitialized pool and cannot be valued.
func validatePool(pool model.PoolState) error {
	if pool.SqrtPriceX96 == nil || pool.SqrtPriceX96.Sign() <= 0 {
		return fmt.Errorf("%w: pool sqrt price missing or non-positive", ErrInvalidInput)
	}
	return nil
}
