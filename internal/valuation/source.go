package valuation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// PriceOracle quotes an asset in USD at a block.
type PriceOracle interface {
	USDPrice(ctx context.Context, ref string, block uint64) (decimal.Decimal, error)
}

// PriceSource decides the USD prices of both assets given the pool price.
type PriceSource interface {
	USDPrices(ctx context.Context, poolPrice decimal.Decimal, block uint64) (asset0, asset1 decimal.Decimal, err error)
}

// PoolQuotedSource prices asset0 at the pool price and asset1 at 1, which
// treats asset1 as the USD unit.
type PoolQuotedSource struct{}

func (PoolQuotedSource) USDPrices(_ context.Context, poolPrice decimal.Decimal, _ uint64) (decimal.Decimal, decimal.Decimal, error) {
	return poolPrice, decimal.New(1, 0), nil
}

// OracleSource asks Oracle for each asset with a non-empty ref. A leg with
// an empty ref keeps its pool-quoted price.
type OracleSource struct {
	Oracle    PriceOracle
	Asset0Ref string
	Asset1Ref string
}

func (s OracleSource) USDPrices(ctx context.Context, poolPrice decimal.Decimal, block uint64) (decimal.Decimal, decimal.Decimal, error) {
	asset0, asset1, _ := PoolQuotedSource{}.USDPrices(ctx, poolPrice, block)
	if s.Oracle == nil {
		return asset0, asset1, nil
	}

	if s.Asset0Ref != "" {
		price, err := s.Oracle.USDPrice(ctx, s.Asset0Ref, block)
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("%w: asset0 usd price from %s: %w", ErrChainRead, s.Asset0Ref, err)
		}
		asset0 = price
	}
	if s.Asset1Ref != "" {
		price, err := s.Oracle.USDPrice(ctx, s.Asset1Ref, block)
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("%w: asset1 usd price from %s: %w", ErrChainRead, s.Asset1Ref, err)
		}
		asset1 = price
	}
	return asset0, asset1, nil
}
