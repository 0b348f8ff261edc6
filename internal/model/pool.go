package model

import "math/big"

// PoolMeta captures immutable pool metadata.
type PoolMeta struct {
	Address string `json:"address"`
	Token0  string `json:"token0"`
	Token1  string `json:"token1"`
	Fee     uint32 `json:"fee"`
}

// PoolState is the slot0 view of a pool at one block.
type PoolState struct {
	PoolMeta
	SqrtPriceX96 *big.Int `json:"sqrt_price_x96"`
	Tick         int32    `json:"tick"`
}
