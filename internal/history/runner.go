// Package history values one position across a range of blocks.
package history

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lpValuer/internal/model"
	"lpValuer/internal/storage"
	"lpValuer/internal/valuation"
)

// Valuer values a position at a block.
type Valuer interface {
	Value(ctx context.Context, req valuation.Request) (valuation.Result, error)
}

// ChainInfo is the block metadata the runner stamps on records.
type ChainInfo interface {
	ChainID(ctx context.Context) (uint64, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, block uint64) (uint64, error)
}

// RunConfig holds the settings of one history run.
type RunConfig struct {
	// Request is the valuation template; its Block is set per step.
	Request      valuation.Request
	FromBlock    uint64
	ToBlock      uint64
	Step         uint64
	FlushEvery   int
	MaxRetries   int
	RetryBackoff time.Duration
}

// Runner walks the schedule, writes records to the sink and checkpoints
// after every flush.
type Runner struct {
	cfg    RunConfig
	valuer Valuer
	chain  ChainInfo
	sink   storage.Sink
	state  StateStore
	logger *zap.Logger
	runID  string
	now    func() time.Time
}

func NewRunner(cfg RunConfig, valuer Valuer, chainInfo ChainInfo, sink storage.Sink, state StateStore, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = 1
	}
	return &Runner{
		cfg:    cfg,
		valuer: valuer,
		chain:  chainInfo,
		sink:   sink,
		state:  state,
		logger: logger,
		runID:  uuid.NewString(),
		now:    time.Now,
	}
}

// RunID identifies the records written by this runner.
func (r *Runner) RunID() string {
	return r.runID
}

// Run values every scheduled block not yet covered by the checkpoint.
func (r *Runner) Run(ctx context.Context) error {
	if r.valuer == nil {
		return fmt.Errorf("valuer is nil")
	}
	if r.chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if r.sink == nil {
		return fmt.Errorf("storage is nil")
	}
	if r.cfg.Request.PositionID == nil {
		return fmt.Errorf("position id is required")
	}

	chainID, err := r.chain.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}

	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.chain.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	blocks, err := Schedule(r.cfg.FromBlock, to, r.cfg.Step)
	if err != nil {
		return err
	}

	if r.state != nil {
		last, ok, err := r.state.Load(ctx)
		if err != nil {
			return fmt.Errorf("load checkpoint: %w", err)
		}
		if ok {
			blocks = After(blocks, last)
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last), zap.Int("remaining", len(blocks)))
		}
	}
	if len(blocks) == 0 {
		r.logger.Info("nothing to value", zap.Uint64("from", r.cfg.FromBlock), zap.Uint64("to", to))
		return nil
	}

	r.logger.Info("history start",
		zap.String("run_id", r.runID),
		zap.String("position", r.cfg.Request.PositionID.String()),
		zap.Int("blocks", len(blocks)),
	)

	pending := make([]model.ValuationRecord, 0, r.cfg.FlushEvery)
	for _, block := range blocks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		record, err := r.valueBlock(ctx, chainID, block)
		if err != nil {
			return fmt.Errorf("value block %d: %w", block, err)
		}
		pending = append(pending, record)

		if len(pending) >= r.cfg.FlushEvery {
			if err := r.flush(ctx, pending); err != nil {
				return err
			}
			pending = pending[:0]
		}
	}
	if err := r.flush(ctx, pending); err != nil {
		return err
	}

	r.logger.Info("history complete", zap.String("run_id", r.runID), zap.Int("blocks", len(blocks)))
	return nil
}

func (r *Runner) valueBlock(ctx context.Context, chainID, block uint64) (model.ValuationRecord, error) {
	req := r.cfg.Request
	req.Block = &block

	var res valuation.Result
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, isTransient, func(ctx context.Context) error {
		var err error
		res, err = r.valuer.Value(ctx, req)
		if err != nil {
			r.logger.Warn("valuation failed", zap.Error(err), zap.Uint64("block", block))
		}
		return err
	})
	if err != nil {
		return model.ValuationRecord{}, err
	}

	var ts uint64
	err = withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, nil, func(ctx context.Context) error {
		var err error
		ts, err = r.chain.BlockTimestamp(ctx, block)
		if err != nil {
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block", block))
		}
		return err
	})
	if err != nil {
		return model.ValuationRecord{}, fmt.Errorf("block timestamp: %w", err)
	}

	return BuildRecord(res, r.runID, chainID, req.PositionID, ts, r.now()), nil
}

func (r *Runner) flush(ctx context.Context, records []model.ValuationRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := r.sink.PutValuations(ctx, records); err != nil {
		return fmt.Errorf("store valuations: %w", err)
	}
	last := records[len(records)-1].BlockNumber
	if r.state != nil {
		if err := r.state.Save(ctx, last); err != nil {
			return fmt.Errorf("save checkpoint: %w", err)
		}
	}
	r.logger.Info("batch complete", zap.Int("valuations", len(records)), zap.Uint64("last_block", last))
	return nil
}

// BuildRecord stamps a valuation with the identity of its run.
func BuildRecord(res valuation.Result, runID string, chainID uint64, positionID *big.Int, blockTimestamp uint64, computedAt time.Time) model.ValuationRecord {
	record := res.Valuation.Record()
	record.RunID = runID
	record.ChainID = chainID
	record.PositionID = positionID.String()
	record.Pool = res.Pool.Hex()
	record.BlockTimestamp = blockTimestamp
	record.ComputedAt = computedAt.UTC().Format(time.RFC3339Nano)
	return record
}

// Only chain reads are worth repeating; bad input fails the same way twice.
func isTransient(err error) bool {
	return !errors.Is(err, valuation.ErrInvalidInput)
}
