package history

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"lpValuer/internal/model"
	"lpValuer/internal/valuation"
)

type stubValuer struct {
	calls    map[uint64]int
	failures map[uint64]error
	// failOnce errors are returned on the first attempt only.
	failOnce map[uint64]error
}

func newStubValuer() *stubValuer {
	return &stubValuer{
		calls:    make(map[uint64]int),
		failures: make(map[uint64]error),
		failOnce: make(map[uint64]error),
	}
}

func (s *stubValuer) Value(_ context.Context, req valuation.Request) (valuation.Result, error) {
	block := *req.Block
	s.calls[block]++
	if err, ok := s.failures[block]; ok {
		return valuation.Result{}, err
	}
	if err, ok := s.failOnce[block]; ok && s.calls[block] == 1 {
		return valuation.Result{}, err
	}
	return valuation.Result{
		Pool: common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640"),
		Valuation: model.Valuation{
			BlockNumber: block,
			TotalUSD:    decimal.NewFromInt(int64(block)),
		},
	}, nil
}

type stubChain struct {
	latest uint64
}

func (s stubChain) ChainID(context.Context) (uint64, error)           { return 1, nil }
func (s stubChain) LatestBlockNumber(context.Context) (uint64, error) { return s.latest, nil }
func (s stubChain) BlockTimestamp(_ context.Context, block uint64) (uint64, error) {
	return 1_700_000_000 + block*12, nil
}

type memorySink struct {
	records []model.ValuationRecord
	batches int
}

func (m *memorySink) PutValuations(_ context.Context, records []model.ValuationRecord) error {
	m.records = append(m.records, records...)
	m.batches++
	return nil
}

func runConfig(from, to, step uint64) RunConfig {
	return RunConfig{
		Request:      valuation.Request{PositionID: big.NewInt(77), Window: model.FullPriceRange()},
		FromBlock:    from,
		ToBlock:      to,
		Step:         step,
		FlushEvery:   2,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}
}

func TestRunnerValuesScheduleAndCheckpoints(t *testing.T) {
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "state.json")}
	sink := &memorySink{}
	runner := NewRunner(runConfig(100, 130, 10), newStubValuer(), stubChain{}, sink, state, nil)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sink.records) != 4 || sink.batches != 2 {
		t.Fatalf("unexpected records %d batches %d", len(sink.records), sink.batches)
	}
	first := sink.records[0]
	if first.BlockNumber != 100 || first.PositionID != "77" || first.ChainID != 1 {
		t.Fatalf("record mismatch: %+v", first)
	}
	if first.RunID != runner.RunID() || first.BlockTimestamp != 1_700_001_200 || first.TotalUSD != "100" {
		t.Fatalf("record stamp mismatch: %+v", first)
	}
	if first.Pool != common.HexToAddress("0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640").Hex() {
		t.Fatalf("pool mismatch: %s", first.Pool)
	}

	last, ok, err := state.Load(context.Background())
	if err != nil || !ok || last != 130 {
		t.Fatalf("checkpoint mismatch: %d %v %v", last, ok, err)
	}
}

func TestRunnerResumesFromCheckpoint(t *testing.T) {
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "state.json")}
	if err := state.Save(context.Background(), 110); err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}
	valuer := newStubValuer()
	sink := &memorySink{}

	if err := NewRunner(runConfig(100, 130, 10), valuer, stubChain{}, sink, state, nil).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if valuer.calls[100] != 0 || valuer.calls[110] != 0 {
		t.Fatalf("checkpointed blocks revalued: %v", valuer.calls)
	}
	if len(sink.records) != 2 || sink.records[0].BlockNumber != 120 {
		t.Fatalf("unexpected records: %+v", sink.records)
	}
}

func TestRunnerUsesLatestWhenToUnset(t *testing.T) {
	sink := &memorySink{}
	if err := NewRunner(runConfig(10, 0, 5), newStubValuer(), stubChain{latest: 20}, sink, nil, nil).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sink.records) != 3 || sink.records[2].BlockNumber != 20 {
		t.Fatalf("unexpected records: %+v", sink.records)
	}
}

const (
	historyPool   = "0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640"
	historyToken0 = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	historyToken1 = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
)

// chainState serves a parity position (price 1, ticks +-1000) at any block
// and records every block it is asked for.
type chainState struct {
	mu     sync.Mutex
	latest uint64
	blocks map[uint64]int
}

func (c *chainState) seen(block uint64) {
	c.mu.Lock()
	c.blocks[block]++
	c.mu.Unlock()
}

func (c *chainState) LatestBlockNumber(context.Context) (uint64, error) {
	return c.latest, nil
}

func (c *chainState) Position(_ context.Context, id *big.Int, block uint64) (model.Position, error) {
	c.seen(block)
	return model.Position{
		ID:        id,
		Token0:    historyToken0,
		Token1:    historyToken1,
		Fee:       500,
		TickLower: -1000,
		TickUpper: 1000,
		Liquidity: big.NewInt(1_000_000_000_000_000_000),
	}, nil
}

func (c *chainState) PoolState(_ context.Context, _ common.Address, block uint64) (model.PoolState, error) {
	c.seen(block)
	return model.PoolState{
		PoolMeta:     model.PoolMeta{Address: historyPool, Token0: historyToken0, Token1: historyToken1, Fee: 500},
		SqrtPriceX96: new(big.Int).Lsh(big.NewInt(1), 96),
	}, nil
}

func (c *chainState) TokenMeta(_ context.Context, token common.Address, block uint64) (model.TokenMeta, error) {
	c.seen(block)
	return model.TokenMeta{Address: token.Hex(), Decimals: 18}, nil
}

func (c *chainState) PoolAddress(_ context.Context, _, _ common.Address, _ uint32, block uint64) (common.Address, error) {
	c.seen(block)
	return common.HexToAddress(historyPool), nil
}

func (c *chainState) SimulateCollect(_ context.Context, _ model.CollectRequest, block uint64) (model.FeeAccrual, error) {
	c.seen(block)
	return model.FeeAccrual{Amount0: big.NewInt(0), Amount1: big.NewInt(0)}, nil
}

func TestRunnerValuesGenesisWithService(t *testing.T) {
	chain := &chainState{latest: 999, blocks: make(map[uint64]int)}
	valuer := valuation.NewService(chain, nil)
	sink := &memorySink{}

	if err := NewRunner(runConfig(0, 20, 10), valuer, stubChain{latest: 999}, sink, nil, nil).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sink.records) != 3 {
		t.Fatalf("unexpected records: %+v", sink.records)
	}
	for i, want := range []uint64{0, 10, 20} {
		if sink.records[i].BlockNumber != want {
			t.Fatalf("record %d at block %d, want %d", i, sink.records[i].BlockNumber, want)
		}
	}
	if chain.blocks[999] != 0 {
		t.Fatalf("latest block read %d times", chain.blocks[999])
	}
	if chain.blocks[0] == 0 {
		t.Fatalf("genesis never read: %v", chain.blocks)
	}
}

func TestRunnerRetriesChainErrors(t *testing.T) {
	valuer := newStubValuer()
	valuer.failOnce[110] = fmt.Errorf("%w: rpc timeout", valuation.ErrChainRead)
	sink := &memorySink{}

	if err := NewRunner(runConfig(100, 110, 10), valuer, stubChain{}, sink, nil, nil).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if valuer.calls[110] != 2 {
		t.Fatalf("expected a retry, got %d calls", valuer.calls[110])
	}
	if len(sink.records) != 2 {
		t.Fatalf("unexpected records: %d", len(sink.records))
	}
}

func TestRunnerDoesNotRetryInvalidInput(t *testing.T) {
	valuer := newStubValuer()
	valuer.failures[100] = fmt.Errorf("%w: tick lower not below tick upper", valuation.ErrInvalidInput)
	sink := &memorySink{}

	err := NewRunner(runConfig(100, 110, 10), valuer, stubChain{}, sink, nil, nil).Run(context.Background())
	if !errors.Is(err, valuation.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
	if valuer.calls[100] != 1 {
		t.Fatalf("invalid input retried %d times", valuer.calls[100])
	}
	if len(sink.records) != 0 {
		t.Fatalf("nothing should be stored")
	}
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := withRetry(ctx, 5, time.Hour, nil, func(context.Context) error {
		calls++
		cancel()
		return errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("unexpected calls: %d", calls)
	}
}

type memoryRows map[string]uint64

func (m memoryRows) LoadState(_ context.Context, name string) (uint64, bool, error) {
	v, ok := m[name]
	return v, ok, nil
}

func (m memoryRows) SaveState(_ context.Context, name string, block uint64) error {
	m[name] = block
	return nil
}

func TestDBStateStore(t *testing.T) {
	rows := memoryRows{}
	store := &DBStateStore{Rows: rows, Name: StateName(1, "77")}
	if _, ok, _ := store.Load(context.Background()); ok {
		t.Fatalf("expected empty state")
	}
	if err := store.Save(context.Background(), 42); err != nil {
		t.Fatalf("save: %v", err)
	}
	if rows["history:1:77"] != 42 {
		t.Fatalf("row mismatch: %v", rows)
	}
}
