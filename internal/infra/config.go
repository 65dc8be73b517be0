package infra

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"marketsim/internal/domain"
)

// Config carries every setting needed to stand up a run of the
// simulator. Sensitive or environment-specific fields may be overridden
// after loading via environment variables.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Market struct {
		Symbols []SymbolConfig `yaml:"symbols"`
		Seed    int64          `yaml:"seed"`
	} `yaml:"market"`

	Participants []ParticipantConfig `yaml:"participants"`

	Bots struct {
		Momentum     []MomentumBotConfig    `yaml:"momentum"`
		MarketMakers []MarketMakerBotConfig `yaml:"market_makers"`
	} `yaml:"bots"`

	Feed struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"feed"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// SymbolConfig describes one symbol the Market Data Engine should drive.
type SymbolConfig struct {
	Symbol       string          `yaml:"symbol"`
	InitialPrice decimal.Decimal `yaml:"initial_price"`
	Volatility   float64         `yaml:"volatility"`
}

// ParticipantConfig describes one human-controlled (or scripted, via the
// host binding) trading participant seeded at startup.
type ParticipantConfig struct {
	ID          string           `yaml:"id"`
	InitialCash decimal.Decimal  `yaml:"initial_cash"`
	Positions   map[string]int64 `yaml:"positions"`
}

// MomentumBotConfig configures one synthetic momentum trader.
type MomentumBotConfig struct {
	ID           string          `yaml:"id"`
	InitialCash  decimal.Decimal `yaml:"initial_cash"`
	Symbols      []string        `yaml:"symbols"`
	Lookback     int             `yaml:"lookback"`
	Threshold    decimal.Decimal `yaml:"threshold"`
	PositionSize int64           `yaml:"position_size"`
}

// MarketMakerBotConfig configures one synthetic market maker.
type MarketMakerBotConfig struct {
	InitialCash   decimal.Decimal `yaml:"initial_cash"`
	Symbols       []string        `yaml:"symbols"`
	SpreadBps     int             `yaml:"spread_bps"`
	QuoteSize     int64           `yaml:"quote_size"`
	MaxPosition   int64           `yaml:"max_position"`
	InventorySkew decimal.Decimal `yaml:"inventory_skew"`
}

// LoadConfig reads and parses the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if len(c.Market.Symbols) == 0 {
		return fmt.Errorf("at least one market symbol is required")
	}
	for _, s := range c.Market.Symbols {
		if s.Symbol == "" {
			return fmt.Errorf("symbol entry missing a name")
		}
		if s.InitialPrice.Sign() <= 0 {
			return fmt.Errorf("symbol %s: initial_price must be positive", s.Symbol)
		}
	}
	for _, p := range c.Participants {
		if p.ID == "" {
			return fmt.Errorf("participant entry missing an id")
		}
		if p.InitialCash.IsNegative() {
			return fmt.Errorf("participant %s: initial_cash must not be negative", p.ID)
		}
	}
	return nil
}

// overrideWithEnv applies environment-variable overrides for settings
// that operators commonly want to change without editing the file, e.g.
// in CI.
func overrideWithEnv(cfg *Config) {
	if level := os.Getenv("MARKETSIM_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if seed := os.Getenv("MARKETSIM_SEED"); seed != "" {
		var parsed int64
		if _, err := fmt.Sscanf(seed, "%d", &parsed); err == nil {
			cfg.Market.Seed = parsed
		}
	}
	if addr := os.Getenv("MARKETSIM_FEED_ADDR"); addr != "" {
		cfg.Feed.Addr = addr
	}
}
