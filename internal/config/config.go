package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. VALUER_POSITION_ID.
const EnvPrefix = "VALUER"

// Config holds the settings of a single valuation, loaded from flags, env,
// a .env file or a config file.
type Config struct {
	RPCURL          string
	PositionManager string
	Pool            string
	PositionID      string
	Block           uint64
	PriceLower      string
	PriceUpper      string
	USDPool0        string
	USDPool1        string
	Recipient       string
	Out             string
	PGDSN           string
	LogLevel        string
}

// HistoryConfig adds the block range and run controls of the history
// command.
type HistoryConfig struct {
	Config
	FromBlock    uint64
	ToBlock      uint64
	Step         uint64
	Checkpoint   string
	FlushEvery   int
	MaxRetries   int
	RetryBackoff time.Duration
}

// Load merges .env, config file, environment variables and flags into
// Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, nil)
	if err != nil {
		return Config{}, err
	}
	cfg := fromViper(v)
	return cfg, cfg.Validate()
}

// LoadHistory is Load for the history command.
func LoadHistory(cfgFile string, flags *pflag.FlagSet) (HistoryConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"out":           "./data/valuations.jsonl",
		"checkpoint":    "./data/checkpoint.json",
		"step":          uint64(7200),
		"flush-every":   20,
		"max-retries":   5,
		"retry-backoff": 500 * time.Millisecond,
	})
	if err != nil {
		return HistoryConfig{}, err
	}

	cfg := HistoryConfig{
		Config:       fromViper(v),
		FromBlock:    v.GetUint64("from"),
		ToBlock:      v.GetUint64("to"),
		Step:         v.GetUint64("step"),
		Checkpoint:   v.GetString("checkpoint"),
		FlushEvery:   v.GetInt("flush-every"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
	}
	if err := cfg.Validate(); err != nil {
		return HistoryConfig{}, err
	}
	if cfg.Step == 0 {
		return HistoryConfig{}, fmt.Errorf("step must be greater than zero")
	}
	if cfg.ToBlock != 0 && cfg.ToBlock < cfg.FromBlock {
		return HistoryConfig{}, fmt.Errorf("to block %d is before from block %d", cfg.ToBlock, cfg.FromBlock)
	}
	return cfg, nil
}

// Validate checks the fields every command needs.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc is required")
	}
	if !common.IsHexAddress(c.PositionManager) {
		return fmt.Errorf("position-manager must be an address, got %q", c.PositionManager)
	}
	if c.Pool != "" && !common.IsHexAddress(c.Pool) {
		return fmt.Errorf("pool must be an address, got %q", c.Pool)
	}
	if c.Recipient != "" && !common.IsHexAddress(c.Recipient) {
		return fmt.Errorf("recipient must be an address, got %q", c.Recipient)
	}
	if c.PositionID == "" {
		return fmt.Errorf("position-id is required")
	}
	return nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("out", "")
	v.SetDefault("log-level", "info")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func fromViper(v *viper.Viper) Config {
	return Config{
		RPCURL:          strings.TrimSpace(v.GetString("rpc")),
		PositionManager: strings.TrimSpace(v.GetString("position-manager")),
		Pool:            strings.TrimSpace(v.GetString("pool")),
		PositionID:      strings.TrimSpace(v.GetString("position-id")),
		Block:           v.GetUint64("block"),
		PriceLower:      strings.TrimSpace(v.GetString("price-lower")),
		PriceUpper:      strings.TrimSpace(v.GetString("price-upper")),
		USDPool0:        strings.TrimSpace(v.GetString("usd-pool0")),
		USDPool1:        strings.TrimSpace(v.GetString("usd-pool1")),
		Recipient:       strings.TrimSpace(v.GetString("recipient")),
		Out:             v.GetString("out"),
		PGDSN:           v.GetString("pg-dsn"),
		LogLevel:        v.GetString("log-level"),
	}
}

// loadDotEnv exports the variables of path unless they are already set.
// A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
