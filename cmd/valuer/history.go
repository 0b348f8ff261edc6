package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lpValuer/internal/config"
	"lpValuer/internal/history"
)

func runHistory(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadHistory(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := wire(ctx, cfg.Config, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	req, err := buildRequest(cfg.Config, svc.provider, logger)
	if err != nil {
		return err
	}

	sinks := svc.sinks(cfg.Out)

	var state history.StateStore = &history.FileStateStore{Path: cfg.Checkpoint}
	if svc.store != nil {
		chainID, err := svc.client.ChainID(ctx)
		if err != nil {
			return err
		}
		state = &history.DBStateStore{Rows: svc.store, Name: history.StateName(chainID, cfg.PositionID)}
	}

	runner := history.NewRunner(history.RunConfig{
		Request:      req,
		FromBlock:    cfg.FromBlock,
		ToBlock:      cfg.ToBlock,
		Step:         cfg.Step,
		FlushEvery:   cfg.FlushEvery,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, svc.service, svc.client, sinks, state, logger.Named("history"))

	logger.Info("history start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("position", cfg.PositionID),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("step", cfg.Step),
		zap.String("out", cfg.Out),
		zap.Bool("postgres", svc.store != nil),
		zap.String("run_id", runner.RunID()),
	)

	return runner.Run(ctx)
}
