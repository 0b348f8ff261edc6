package model

import "github.com/shopspring/decimal"

// Valuation is a point-in-time valuation of one position.
type Valuation struct {
	BlockNumber uint64

	// PoolPrice is asset1 per asset0, decimal adjusted.
	PoolPrice decimal.Decimal
	Asset0USD decimal.Decimal
	Asset1USD decimal.Decimal

	PositionUSD decimal.Decimal
	FeesUSD     decimal.Decimal
	TotalUSD    decimal.Decimal

	PoolTick         int32
	InRange          bool
	Amount0          decimal.Decimal
	Amount1          decimal.Decimal
	DisplayLiquidity decimal.Decimal
	Fee0             decimal.Decimal
	Fee1             decimal.Decimal
}

// ValuationRecord is the persisted form of a Valuation. Decimals are
// encoded as strings.
type ValuationRecord struct {
	RunID            string `json:"run_id"`
	ChainID          uint64 `json:"chain_id"`
	PositionID       string `json:"position_id"`
	Pool             string `json:"pool"`
	BlockNumber      uint64 `json:"block_number"`
	BlockTimestamp   uint64 `json:"block_timestamp"`
	PoolTick         int32  `json:"pool_tick"`
	InRange          bool   `json:"in_range"`
	PoolPrice        string `json:"pool_price"`
	Asset0USD        string `json:"asset0_usd"`
	Asset1USD        string `json:"asset1_usd"`
	Amount0          string `json:"amount0"`
	Amount1          string `json:"amount1"`
	DisplayLiquidity string `json:"display_liquidity"`
	Fee0             string `json:"fee0"`
	Fee1             string `json:"fee1"`
	PositionUSD      string `json:"position_usd"`
	FeesUSD          string `json:"fees_usd"`
	TotalUSD         string `json:"total_usd"`
	ComputedAt       string `json:"computed_at"`
}

// Record converts v into its persisted form.
func (v Valuation) Record() ValuationRecord {
	return ValuationRecord{
		BlockNumber:      v.BlockNumber,
		PoolTick:         v.PoolTick,
		InRange:          v.InRange,
		PoolPrice:        v.PoolPrice.String(),
		Asset0USD:        v.Asset0USD.String(),
		Asset1USD:        v.Asset1USD.String(),
		Amount0:          v.Amount0.String(),
		Amount1:          v.Amount1.String(),
		DisplayLiquidity: v.DisplayLiquidity.String(),
		Fee0:             v.Fee0.String(),
		Fee1:             v.Fee1.String(),
		PositionUSD:      v.PositionUSD.String(),
		FeesUSD:          v.FeesUSD.String(),
		TotalUSD:         v.TotalUSD.String(),
	}
}
