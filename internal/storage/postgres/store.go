package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lpValuer/internal/model"
)

// Store persists valuation snapshots and history progress in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS position_valuations (
	chain_id          BIGINT      NOT NULL,
	position_id       NUMERIC     NOT NULL,
	block_number      BIGINT      NOT NULL,
	pool_address      TEXT        NOT NULL,
	block_timestamp   BIGINT      NOT NULL DEFAULT 0,
	pool_tick         INTEGER     NOT NULL,
	in_range          BOOLEAN     NOT NULL,
	pool_price        NUMERIC     NOT NULL,
	asset0_usd        NUMERIC     NOT NULL,
	asset1_usd        NUMERIC     NOT NULL,
	amount0           NUMERIC     NOT NULL,
	amount1           NUMERIC     NOT NULL,
	display_liquidity NUMERIC     NOT NULL,
	fee0              NUMERIC     NOT NULL,
	fee1              NUMERIC     NOT NULL,
	position_usd      NUMERIC     NOT NULL,
	fees_usd          NUMERIC     NOT NULL,
	total_usd         NUMERIC     NOT NULL,
	run_id            TEXT        NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, position_id, block_number)
);

CREATE TABLE IF NOT EXISTS valuer_state (
	name                 TEXT PRIMARY KEY,
	last_processed_block BIGINT NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EnsureSchema creates the tables if they do not exist. Safe to run on
// every start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutValuations upserts valuation records keyed by chain, position and
// block, so re-running a history range overwrites earlier snapshots.
func (s *Store) PutValuations(ctx context.Context, records []model.ValuationRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO position_valuations (
				chain_id, position_id, block_number, pool_address, block_timestamp, pool_tick, in_range,
				pool_price, asset0_usd, asset1_usd, amount0, amount1, display_liquidity,
				fee0, fee1, position_usd, fees_usd, total_usd, run_id, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,now(),now())
			ON CONFLICT (chain_id, position_id, block_number)
			DO UPDATE SET
				pool_address = EXCLUDED.pool_address,
				block_timestamp = EXCLUDED.block_timestamp,
				pool_tick = EXCLUDED.pool_tick,
				in_range = EXCLUDED.in_range,
				pool_price = EXCLUDED.pool_price,
				asset0_usd = EXCLUDED.asset0_usd,
				asset1_usd = EXCLUDED.asset1_usd,
				amount0 = EXCLUDED.amount0,
				amount1 = EXCLUDED.amount1,
				display_liquidity = EXCLUDED.display_liquidity,
				fee0 = EXCLUDED.fee0,
				fee1 = EXCLUDED.fee1,
				position_usd = EXCLUDED.position_usd,
				fees_usd = EXCLUDED.fees_usd,
				total_usd = EXCLUDED.total_usd,
				run_id = EXCLUDED.run_id,
				updated_at = now()
		`,
			int64(r.ChainID),
			r.PositionID,
			int64(r.BlockNumber),
			r.Pool,
			int64(r.BlockTimestamp),
			r.PoolTick,
			r.InRange,
			r.PoolPrice,
			r.Asset0USD,
			r.Asset1USD,
			r.Amount0,
			r.Amount1,
			r.DisplayLiquidity,
			r.Fee0,
			r.Fee1,
			r.PositionUSD,
			r.FeesUSD,
			r.TotalUSD,
			r.RunID,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert valuation: %w", err)
		}
	}
	return nil
}

// LoadState returns the last processed block recorded under name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM valuer_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts the last processed block for name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO valuer_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}
