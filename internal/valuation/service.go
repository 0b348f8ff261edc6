package valuation

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lpValuer/internal/model"
	"lpValuer/internal/pricemath"
)

// ChainStateProvider reads on-chain state at an explicit block.
type ChainStateProvider interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	Position(ctx context.Context, id *big.Int, block uint64) (model.Position, error)
	PoolState(ctx context.Context, pool common.Address, block uint64) (model.PoolState, error)
	TokenMeta(ctx context.Context, token common.Address, block uint64) (model.TokenMeta, error)
	PoolAddress(ctx context.Context, token0, token1 common.Address, fee uint32, block uint64) (common.Address, error)
	SimulateCollect(ctx context.Context, req model.CollectRequest, block uint64) (model.FeeAccrual, error)
}

// Request selects the position, block and presentation of one valuation.
type Request struct {
	PositionID *big.Int
	// Pool is resolved through the position manager's factory when zero.
	Pool common.Address
	// Block nil pins the latest block; any value, genesis included, is
	// read as given.
	Block     *uint64
	Window    model.PriceRange
	Recipient common.Address
	Prices    PriceSource
}

// Result is a valuation plus the chain context it was computed from.
type Result struct {
	Valuation     model.Valuation
	Pool          common.Address
	Position      model.Position
	Token0        model.TokenMeta
	Token1        model.TokenMeta
	FeesAvailable bool
}

// Service fetches chain state for a position and values it.
type Service struct {
	provider ChainStateProvider
	logger   *zap.Logger
}

func NewService(provider ChainStateProvider, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{provider: provider, logger: logger}
}

// Value values req.PositionID with every read pinned to the same block.
func (s *Service) Value(ctx context.Context, req Request) (Result, error) {
	if s.provider == nil {
		return Result{}, fmt.Errorf("chain state provider is nil")
	}
	if req.PositionID == nil || req.PositionID.Sign() < 0 {
		return Result{}, fmt.Errorf("%w: position id missing or negative", ErrInvalidInput)
	}

	var block uint64
	if req.Block != nil {
		block = *req.Block
	} else {
		latest, err := s.provider.LatestBlockNumber(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("%w: latest block: %w", ErrChainRead, err)
		}
		block = latest
	}
	logger := s.logger.With(zap.String("position", req.PositionID.String()), zap.Uint64("block", block))

	var (
		res       = Result{Pool: req.Pool}
		pool      model.PoolState
		fees      model.FeeAccrual
		poolKnown = req.Pool != (common.Address{})
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pos, err := s.provider.Position(gctx, req.PositionID, block)
		if err != nil {
			return fmt.Errorf("%w: position: %w", ErrChainRead, err)
		}
		res.Position = pos
		return nil
	})
	if poolKnown {
		g.Go(func() error {
			state, err := s.provider.PoolState(gctx, req.Pool, block)
			if err != nil {
				return fmt.Errorf("%w: pool state: %w", ErrChainRead, err)
			}
			pool = state
			return nil
		})
	}
	g.Go(func() error {
		accrual, err := s.provider.SimulateCollect(gctx, model.CollectRequest{
			PositionID: req.PositionID,
			Recipient:  req.Recipient.Hex(),
		}, block)
		if err != nil {
			logger.Warn("fees valued at zero", zap.Error(fmt.Errorf("%w: %w", ErrFeesUnavailable, err)))
			return nil
		}
		fees = accrual
		res.FeesAvailable = true
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	if !poolKnown {
		addr, err := s.provider.PoolAddress(ctx, common.HexToAddress(res.Position.Token0), common.HexToAddress(res.Position.Token1), res.Position.Fee, block)
		if err != nil {
			return Result{}, fmt.Errorf("%w: resolve pool: %w", ErrChainRead, err)
		}
		res.Pool = addr
		logger.Debug("pool resolved", zap.String("pool", addr.Hex()))

		state, err := s.provider.PoolState(ctx, addr, block)
		if err != nil {
			return Result{}, fmt.Errorf("%w: pool state: %w", ErrChainRead, err)
		}
		pool = state
	}

	if !sameToken(pool.Token0, res.Position.Token0) || !sameToken(pool.Token1, res.Position.Token1) {
		return Result{}, fmt.Errorf("%w: pool %s tokens %s/%s do not match position tokens %s/%s",
			ErrInvalidInput, res.Pool.Hex(), pool.Token0, pool.Token1, res.Position.Token0, res.Position.Token1)
	}

	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		meta, err := s.provider.TokenMeta(gctx, common.HexToAddress(pool.Token0), block)
		if err != nil {
			return fmt.Errorf("%w: token0 metadata: %w", ErrChainRead, err)
		}
		res.Token0 = meta
		return nil
	})
	g.Go(func() error {
		meta, err := s.provider.TokenMeta(gctx, common.HexToAddress(pool.Token1), block)
		if err != nil {
			return fmt.Errorf("%w: token1 metadata: %w", ErrChainRead, err)
		}
		res.Token1 = meta
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	assets := model.AssetMetadata{Decimals0: res.Token0.Decimals, Decimals1: res.Token1.Decimals}

	poolPrice, err := PoolPrice(pool, assets)
	if err != nil {
		return Result{}, err
	}
	if tick := pricemath.TickAtSqrtPrice(pricemath.DecodeSqrtPrice(pool.SqrtPriceX96)); tick != pool.Tick {
		logger.Warn("slot0 tick disagrees with sqrt price", zap.Int32("slot0_tick", pool.Tick), zap.Int32("derived_tick", tick))
	}

	prices := req.Prices
	if prices == nil {
		prices = PoolQuotedSource{}
	}
	asset0USD, asset1USD, err := prices.USDPrices(ctx, poolPrice, block)
	if err != nil {
		return Result{}, err
	}

	valuation, err := Valuate(Inputs{
		BlockNumber: block,
		Position:    res.Position,
		Pool:        pool,
		Assets:      assets,
		Fees:        fees,
		Window:      req.Window,
		Asset0USD:   asset0USD,
		Asset1USD:   asset1USD,
	})
	if err != nil {
		return Result{}, err
	}
	res.Valuation = valuation

	logger.Info("position valued",
		zap.String("pool", res.Pool.Hex()),
		zap.String("position_usd", valuation.PositionUSD.StringFixed(2)),
		zap.String("fees_usd", valuation.FeesUSD.StringFixed(6)),
		zap.Bool("in_range", valuation.InRange),
	)
	return res, nil
}

func sameToken(a, b string) bool {
	return strings.EqualFold(a, b)
}
