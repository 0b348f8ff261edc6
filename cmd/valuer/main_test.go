package main

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"lpValuer/internal/config"
	"lpValuer/internal/dex"
	"lpValuer/internal/valuation"
)

func TestBuildRequest(t *testing.T) {
	provider := dex.NewProvider(nil, common.Address{}, nil)
	cfg := config.Config{
		PositionID: "123456",
		Pool:       "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640",
		PriceLower: "1000",
		PriceUpper: "5000",
	}

	req, err := buildRequest(cfg, provider, zap.NewNop())
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if req.PositionID.Int64() != 123456 {
		t.Fatalf("position id mismatch: %s", req.PositionID)
	}
	if req.Pool != common.HexToAddress(cfg.Pool) {
		t.Fatalf("pool mismatch: %s", req.Pool.Hex())
	}
	if req.Window.Unbounded || req.Window.Upper.IntPart() != 5000 {
		t.Fatalf("window mismatch: %s", req.Window)
	}
	if _, ok := req.Prices.(valuation.PoolQuotedSource); !ok {
		t.Fatalf("expected pool quoted prices, got %T", req.Prices)
	}

	cfg.USDPool1 = "0x8ad599c3a0ff1de082011efddc58f1908eb6e6d8:inv"
	req, err = buildRequest(cfg, provider, zap.NewNop())
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	source, ok := req.Prices.(valuation.OracleSource)
	if !ok || source.Asset0Ref != "" || source.Asset1Ref != cfg.USDPool1 {
		t.Fatalf("oracle source mismatch: %+v", req.Prices)
	}
}

func TestBuildRequestRejectsBadID(t *testing.T) {
	provider := dex.NewProvider(nil, common.Address{}, nil)
	for _, id := range []string{"abc", "-1", "1.5"} {
		if _, err := buildRequest(config.Config{PositionID: id}, provider, zap.NewNop()); err == nil {
			t.Fatalf("expected error for id %q", id)
		}
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := newLogger("loud"); err == nil {
		t.Fatalf("expected level error")
	}
	logger, err := newLogger("debug")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	_ = logger.Sync()
}
