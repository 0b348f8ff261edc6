package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"lpValuer/internal/chain"
	"lpValuer/internal/config"
	"lpValuer/internal/dex"
	"lpValuer/internal/history"
	"lpValuer/internal/model"
	"lpValuer/internal/oracle"
	"lpValuer/internal/report"
	"lpValuer/internal/storage"
	"lpValuer/internal/storage/postgres"
	"lpValuer/internal/valuation"
)

func main() {
	root := &cobra.Command{
		Use:          "valuer",
		Short:        "Concentrated-liquidity position valuation",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	valueCmd := &cobra.Command{
		Use:   "value",
		Short: "Value a position at one block",
		RunE:  runValue,
	}
	addPositionFlags(valueCmd.Flags())
	valueCmd.Flags().Uint64("block", 0, "block to value at, 0 means latest")
	valueCmd.Flags().String("out", "", "optional JSONL file to append the valuation to")
	valueCmd.Flags().Bool("json", false, "print the valuation record as JSON")
	root.AddCommand(valueCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Value a position across a block range",
		RunE:  runHistory,
	}
	addPositionFlags(historyCmd.Flags())
	historyCmd.Flags().Uint64("from", 0, "first block (inclusive)")
	historyCmd.Flags().Uint64("to", 0, "last block (inclusive), 0 means latest")
	historyCmd.Flags().Uint64("step", 7200, "blocks between valuations")
	historyCmd.Flags().String("out", "./data/valuations.jsonl", "output JSONL path")
	historyCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path, empty to disable (ignored with --pg-dsn)")
	historyCmd.Flags().Int("flush-every", 20, "valuations per storage write")
	historyCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	historyCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	root.AddCommand(historyCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addPositionFlags(flags *pflag.FlagSet) {
	flags.String("rpc", "", "RPC URL (archive node for historical blocks)")
	flags.String("position-manager", "", "NonfungiblePositionManager address")
	flags.String("pool", "", "pool address, resolved through the factory when empty")
	flags.String("position-id", "", "position NFT id")
	flags.String("price-lower", "", "display window lower price (asset1 per asset0), default 0")
	flags.String("price-upper", "", "display window upper price, empty, inf or 0 for unbounded")
	flags.String("usd-pool0", "", "reference pool pricing asset0 in USD (append :inv to quote token1)")
	flags.String("usd-pool1", "", "reference pool pricing asset1 in USD (append :inv to quote token1)")
	flags.String("recipient", "", "collect recipient used in the fee simulation")
	flags.String("pg-dsn", "", "Postgres DSN for valuation snapshots")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func runValue(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := wire(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	req, err := buildRequest(cfg, svc.provider, logger)
	if err != nil {
		return err
	}
	if cfg.Block != 0 {
		block := cfg.Block
		req.Block = &block
	}

	res, err := svc.service.Value(ctx, req)
	if err != nil {
		return err
	}

	sinks := svc.sinks(cfg.Out)
	var record model.ValuationRecord
	if len(sinks) > 0 || asJSON {
		chainID, err := svc.client.ChainID(ctx)
		if err != nil {
			return fmt.Errorf("get chain id: %w", err)
		}
		ts, err := svc.client.BlockTimestamp(ctx, res.Valuation.BlockNumber)
		if err != nil {
			return fmt.Errorf("block timestamp: %w", err)
		}
		record = history.BuildRecord(res, uuid.NewString(), chainID, req.PositionID, ts, time.Now())
	}
	if len(sinks) > 0 {
		if err := sinks.PutValuations(ctx, []model.ValuationRecord{record}); err != nil {
			return fmt.Errorf("store valuation: %w", err)
		}
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	}
	return report.Write(cmd.OutOrStdout(), res)
}

// services are the long-lived clients shared by both commands.
type services struct {
	client   *chain.Client
	provider *dex.Provider
	service  *valuation.Service
	store    *postgres.Store
}

func wire(ctx context.Context, cfg config.Config, logger *zap.Logger) (*services, error) {
	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	d := &services{client: client}

	d.provider = dex.NewProvider(client, common.HexToAddress(cfg.PositionManager), logger.Named("dex"))
	d.service = valuation.NewService(d.provider, logger.Named("valuation"))

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			d.Close()
			return nil, err
		}
		d.store = store
	}
	return d, nil
}

// sinks returns the configured outputs: the JSONL file if out is set and
// the Postgres store if one is connected.
func (d *services) sinks(out string) storage.Multi {
	var sinks storage.Multi
	if out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(out))
	}
	if d.store != nil {
		sinks = append(sinks, d.store)
	}
	return sinks
}

func (d *services) Close() {
	if d.store != nil {
		d.store.Close()
	}
	if d.client != nil {
		d.client.Close()
	}
}

// buildRequest turns config into a valuation request without a block.
func buildRequest(cfg config.Config, provider *dex.Provider, logger *zap.Logger) (valuation.Request, error) {
	id, ok := new(big.Int).SetString(cfg.PositionID, 10)
	if !ok || id.Sign() < 0 {
		return valuation.Request{}, fmt.Errorf("invalid position id %q", cfg.PositionID)
	}
	window, err := model.ParsePriceRange(cfg.PriceLower, cfg.PriceUpper)
	if err != nil {
		return valuation.Request{}, err
	}

	req := valuation.Request{
		PositionID: id,
		Window:     window,
		Recipient:  common.HexToAddress(cfg.Recipient),
		Prices:     valuation.PoolQuotedSource{},
	}
	if cfg.Pool != "" {
		req.Pool = common.HexToAddress(cfg.Pool)
	}
	if cfg.USDPool0 != "" || cfg.USDPool1 != "" {
		req.Prices = valuation.OracleSource{
			Oracle:    oracle.NewPoolOracle(provider, logger.Named("oracle")),
			Asset0Ref: cfg.USDPool0,
			Asset1Ref: cfg.USDPool1,
		}
	}
	return req, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
