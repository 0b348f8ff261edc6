// Package oracle prices assets in USD from on-chain reference pools.
package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lpValuer/internal/model"
	"lpValuer/internal/pricemath"
	"lpValuer/internal/valuation"
)

// invertSuffix on a reference asks for the pool's token1 instead of token0.
const invertSuffix = ":inv"

// PoolReader is the chain access a PoolOracle needs.
type PoolReader interface {
	PoolState(ctx context.Context, pool common.Address, block uint64) (model.PoolState, error)
	TokenMeta(ctx context.Context, token common.Address, block uint64) (model.TokenMeta, error)
}

// PoolOracle quotes an asset by the price of a pool pairing it with a USD
// stable coin. A reference is the pool address; the quoted asset is token0
// unless the reference ends in ":inv".
type PoolOracle struct {
	reader PoolReader
	logger *zap.Logger
}

func NewPoolOracle(reader PoolReader, logger *zap.Logger) *PoolOracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PoolOracle{reader: reader, logger: logger}
}

var _ valuation.PriceOracle = (*PoolOracle)(nil)

// USDPrice implements valuation.PriceOracle.
func (o *PoolOracle) USDPrice(ctx context.Context, ref string, block uint64) (decimal.Decimal, error) {
	address, invert, err := ParseRef(ref)
	if err != nil {
		return decimal.Zero, err
	}

	state, err := o.reader.PoolState(ctx, address, block)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reference pool %s: %w", address.Hex(), err)
	}
	meta0, err := o.reader.TokenMeta(ctx, common.HexToAddress(state.Token0), block)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reference token0: %w", err)
	}
	meta1, err := o.reader.TokenMeta(ctx, common.HexToAddress(state.Token1), block)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reference token1: %w", err)
	}

	price, err := valuation.PoolPrice(state, model.AssetMetadata{Decimals0: meta0.Decimals, Decimals1: meta1.Decimals})
	if err != nil {
		return decimal.Zero, err
	}
	if invert {
		price = pricemath.Quo(decimal.New(1, 0), price)
	}

	o.logger.Debug("reference price",
		zap.String("pool", address.Hex()),
		zap.Bool("inverted", invert),
		zap.String("price", price.StringFixed(6)),
		zap.Uint64("block", block),
	)
	return price, nil
}

// ParseRef splits a reference into its pool address and inversion flag.
func ParseRef(ref string) (common.Address, bool, error) {
	ref = strings.TrimSpace(ref)
	invert := strings.HasSuffix(ref, invertSuffix)
	ref = strings.TrimSuffix(ref, invertSuffix)
	if !common.IsHexAddress(ref) {
		return common.Address{}, false, fmt.Errorf("invalid reference pool %q", ref)
	}
	return common.HexToAddress(ref), invert, nil
}
