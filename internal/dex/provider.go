package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"lpValuer/internal/model"
)

// Provider reads position, pool and token state through eth_call.
type Provider struct {
	caller  ContractCaller
	manager common.Address
	tokens  *TokenMetaCache
	logger  *zap.Logger
}

// NewProvider builds a Provider for the given position manager.
func NewProvider(caller ContractCaller, manager common.Address, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		caller:  caller,
		manager: manager,
		tokens:  NewTokenMetaCache(),
		logger:  logger,
	}
}

// LatestBlockNumber returns the chain head.
func (p *Provider) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return p.caller.LatestBlockNumber(ctx)
}

// Position reads positions(id) from the manager at block.
func (p *Provider) Position(ctx context.Context, id *big.Int, block uint64) (model.Position, error) {
	if id == nil {
		return model.Position{}, fmt.Errorf("position id is nil")
	}
	pmABI, err := PositionManagerABI()
	if err != nil {
		return model.Position{}, fmt.Errorf("parse position manager abi: %w", err)
	}

	values, err := callMethod(ctx, p.caller, p.manager, pmABI, "positions", blockArg(block), id)
	if err != nil {
		return model.Position{}, err
	}
	if len(values) < 8 {
		return model.Position{}, fmt.Errorf("unexpected positions values: %d", len(values))
	}

	token0, err := asAddress(values[2])
	if err != nil {
		return model.Position{}, fmt.Errorf("token0: %w", err)
	}
	token1, err := asAddress(values[3])
	if err != nil {
		return model.Position{}, fmt.Errorf("token1: %w", err)
	}
	fee, err := asUint(values[4], 24)
	if err != nil {
		return model.Position{}, fmt.Errorf("fee: %w", err)
	}
	tickLower, err := asInt24(values[5])
	if err != nil {
		return model.Position{}, fmt.Errorf("tick lower: %w", err)
	}
	tickUpper, err := asInt24(values[6])
	if err != nil {
		return model.Position{}, fmt.Errorf("tick upper: %w", err)
	}
	liquidity, err := asUint(values[7], 128)
	if err != nil {
		return model.Position{}, fmt.Errorf("liquidity: %w", err)
	}

	return model.Position{
		ID:        new(big.Int).Set(id),
		Token0:    token0.Hex(),
		Token1:    token1.Hex(),
		Fee:       uint32(fee.Uint64()),
		TickLower: tickLower,
		TickUpper: tickUpper,
		Liquidity: liquidity,
	}, nil
}

// PoolState reads token0, token1, fee and slot0 of a pool.
func (p *Provider) PoolState(ctx context.Context, pool common.Address, block uint64) (model.PoolState, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return model.PoolState{}, fmt.Errorf("parse pool abi: %w", err)
	}
	blockPtr := blockArg(block)

	values, err := callMethod(ctx, p.caller, pool, poolABI, "token0", blockPtr)
	if err != nil {
		return model.PoolState{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("token0: %w", err)
	}

	values, err = callMethod(ctx, p.caller, pool, poolABI, "token1", blockPtr)
	if err != nil {
		return model.PoolState{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("token1: %w", err)
	}

	values, err = callMethod(ctx, p.caller, pool, poolABI, "fee", blockPtr)
	if err != nil {
		return model.PoolState{}, err
	}
	fee, err := asUint(values[0], 24)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("fee: %w", err)
	}

	values, err = callMethod(ctx, p.caller, pool, poolABI, "slot0", blockPtr)
	if err != nil {
		return model.PoolState{}, err
	}
	if len(values) < 2 {
		return model.PoolState{}, fmt.Errorf("unexpected slot0 values: %d", len(values))
	}
	sqrtPrice, err := asUint(values[0], 160)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("sqrt price: %w", err)
	}
	tick, err := asInt24(values[1])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("tick: %w", err)
	}

	return model.PoolState{
		PoolMeta: model.PoolMeta{
			Address: pool.Hex(),
			Token0:  token0.Hex(),
			Token1:  token1.Hex(),
			Fee:     uint32(fee.Uint64()),
		},
		SqrtPriceX96: sqrtPrice,
		Tick:         tick,
	}, nil
}

// TokenMeta returns cached ERC20 metadata, loading it at block on a miss.
func (p *Provider) TokenMeta(ctx context.Context, token common.Address, block uint64) (model.TokenMeta, error) {
	if meta, ok := p.tokens.Get(token); ok {
		return meta, nil
	}
	meta, err := FetchTokenMeta(ctx, p.caller, token, blockArg(block), p.logger)
	if err != nil {
		return model.TokenMeta{}, err
	}
	p.tokens.Set(token, meta)
	return meta, nil
}

// PoolAddress resolves a pool through the manager's factory.
func (p *Provider) PoolAddress(ctx context.Context, token0, token1 common.Address, fee uint32, block uint64) (common.Address, error) {
	pmABI, err := PositionManagerABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse position manager abi: %w", err)
	}
	factoryABI, err := V3FactoryABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse factory abi: %w", err)
	}
	blockPtr := blockArg(block)

	values, err := callMethod(ctx, p.caller, p.manager, pmABI, "factory", blockPtr)
	if err != nil {
		return common.Address{}, err
	}
	factory, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, fmt.Errorf("factory: %w", err)
	}

	values, err = callMethod(ctx, p.caller, factory, factoryABI, "getPool", blockPtr, token0, token1, new(big.Int).SetUint64(uint64(fee)))
	if err != nil {
		return common.Address{}, err
	}
	pool, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, fmt.Errorf("pool: %w", err)
	}
	if pool == (common.Address{}) {
		return common.Address{}, fmt.Errorf("no pool for %s/%s fee %d", token0.Hex(), token1.Hex(), fee)
	}
	return pool, nil
}

// SimulateCollect runs collect as an eth_call from the position owner so
// the manager's approval check passes, returning the fees it would pay.
func (p *Provider) SimulateCollect(ctx context.Context, req model.CollectRequest, block uint64) (model.FeeAccrual, error) {
	if req.PositionID == nil {
		return model.FeeAccrual{}, fmt.Errorf("position id is nil")
	}
	pmABI, err := PositionManagerABI()
	if err != nil {
		return model.FeeAccrual{}, fmt.Errorf("parse position manager abi: %w", err)
	}
	blockPtr := blockArg(block)

	var from common.Address
	if values, err := callMethod(ctx, p.caller, p.manager, pmABI, "ownerOf", blockPtr, req.PositionID); err == nil {
		if owner, err := asAddress(values[0]); err == nil {
			from = owner
		}
	} else {
		p.logger.Debug("ownerOf call failed", zap.String("position", req.PositionID.String()), zap.Error(err))
	}

	params := collectParams{
		TokenID:    req.PositionID,
		Recipient:  common.HexToAddress(req.Recipient),
		Amount0Max: orMax(req.Amount0Max),
		Amount1Max: orMax(req.Amount1Max),
	}
	values, err := callMethodFrom(ctx, p.caller, from, p.manager, pmABI, "collect", blockPtr, params)
	if err != nil {
		return model.FeeAccrual{}, err
	}
	if len(values) < 2 {
		return model.FeeAccrual{}, fmt.Errorf("unexpected collect values: %d", len(values))
	}
	amount0, err := asBigInt(values[0])
	if err != nil {
		return model.FeeAccrual{}, fmt.Errorf("amount0: %w", err)
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return model.FeeAccrual{}, fmt.Errorf("amount1: %w", err)
	}
	return model.FeeAccrual{Amount0: amount0, Amount1: amount1}, nil
}

func orMax(v *big.Int) *big.Int {
	if v == nil {
		return MaxUint128.ToBig()
	}
	return v
}
