package model

import "math/big"

// Position is a position-manager NFT position read at a given block.
type Position struct {
	ID        *big.Int `json:"id"`
	Token0    string   `json:"token0"`
	Token1    string   `json:"token1"`
	Fee       uint32   `json:"fee"`
	TickLower int32    `json:"tick_lower"`
	TickUpper int32    `json:"tick_upper"`
	Liquidity *big.Int `json:"liquidity"`
}

// CollectRequest mirrors the position manager's collect parameters.
type CollectRequest struct {
	PositionID *big.Int
	Recipient  string
	Amount0Max *big.Int
	Amount1Max *big.Int
}

// FeeAccrual holds uncollected fees in raw token units. Nil amounts count
// as zero.
type FeeAccrual struct {
	Amount0 *big.Int `json:"amount0"`
	Amount1 *big.Int `json:"amount1"`
}
