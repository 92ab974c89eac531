package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rustyeddy/tradelab/broker"
	"github.com/rustyeddy/tradelab/broker/sim"
	"github.com/rustyeddy/tradelab/pricing"
	"github.com/rustyeddy/tradelab/risk"
	"github.com/rustyeddy/tradelab/strategies"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the complete backtest configuration
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account" toml:"account"`
	Broker   BrokerConfig   `json:"broker" yaml:"broker" toml:"broker"`
	Replay   ReplayConfig   `json:"replay" yaml:"replay" toml:"replay"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy" toml:"strategy"`
	Journal  JournalConfig  `json:"journal" yaml:"journal" toml:"journal"`
}

type AccountConfig struct {
	Balance float64 `json:"balance" yaml:"balance" toml:"balance"`
}

// BrokerConfig maps onto sim.Settings. Fee rate is a fraction of notional
// per leg, fee max caps a single leg (0 means no cap).
type BrokerConfig struct {
	Name              string  `json:"name" yaml:"name" toml:"name"`
	Leverage          float64 `json:"leverage" yaml:"leverage" toml:"leverage"`
	MinOrderValue     float64 `json:"min_order_value" yaml:"min_order_value" toml:"min_order_value"`
	MaintenanceMargin float64 `json:"maintenance_margin" yaml:"maintenance_margin" toml:"maintenance_margin"`
	FeeRate           float64 `json:"fee_rate" yaml:"fee_rate" toml:"fee_rate"`
	FeeMax            float64 `json:"fee_max" yaml:"fee_max" toml:"fee_max"`
}

type ReplayConfig struct {
	Candles string `json:"candles" yaml:"candles" toml:"candles"`
	// Tick CSV; replaces Candles when set.
	Ticks   string `json:"ticks,omitempty" yaml:"ticks,omitempty" toml:"ticks,omitempty"`

	Symbol       string `json:"symbol" yaml:"symbol" toml:"symbol"`
	Instrument   string `json:"instrument" yaml:"instrument" toml:"instrument"`
	ExtremeOrder string `json:"extreme_order" yaml:"extreme_order" toml:"extreme_order"`
	CandleStep   string `json:"candle_step" yaml:"candle_step" toml:"candle_step"` // e.g. "1m", "1h"
}

type StrategyConfig struct {
	Name       string  `json:"name" yaml:"name" toml:"name"`
	Side       string  `json:"side,omitempty" yaml:"side,omitempty" toml:"side,omitempty"`
	Quantity   float64 `json:"quantity" yaml:"quantity" toml:"quantity"`
	Pullback   float64 `json:"pullback" yaml:"pullback" toml:"pullback"`
	TakeProfit float64 `json:"take_profit" yaml:"take_profit" toml:"take_profit"`
	StopLoss   float64 `json:"stop_loss" yaml:"stop_loss" toml:"stop_loss"`
	Fast       int     `json:"fast" yaml:"fast" toml:"fast"`
	Slow       int     `json:"slow" yaml:"slow" toml:"slow"`
	ATRPeriod  int     `json:"atr_period" yaml:"atr_period" toml:"atr_period"`
	ATRMult    float64 `json:"atr_mult" yaml:"atr_mult" toml:"atr_mult"`
	RiskPct    float64 `json:"risk_pct" yaml:"risk_pct" toml:"risk_pct"`
	Callback   float64 `json:"callback" yaml:"callback" toml:"callback"`

	// Enables the pre-trade risk checks for strategies that size by risk.
	RiskChecks bool `json:"risk_checks,omitempty" yaml:"risk_checks,omitempty" toml:"risk_checks,omitempty"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type           string `json:"type" yaml:"type" toml:"type"` // "sqlite", "csv", "memory" or "none"
	DBPath         string `json:"db_path" yaml:"db_path" toml:"db_path"`
	ExecutionsFile string `json:"executions_file" yaml:"executions_file" toml:"executions_file"`
	EquityFile     string `json:"equity_file" yaml:"equity_file" toml:"equity_file"`
	OrgFile        string `json:"org_file" yaml:"org_file" toml:"org_file"`
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadFromFile loads configuration from a file. TOML is picked by extension,
// anything else is tried as YAML first and then JSON. Missing fields keep
// their Default values.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	if isTOML(path) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse toml config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", jerr)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes YAML, TOML or JSON depending on the extension.
func (c *Config) SaveToFile(path string) error {
	data, err := c.Encode(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Encode renders the config in the format the path's extension names.
func (c *Config) Encode(path string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case isYAML(path):
		data, err = yaml.Marshal(c)
	case isTOML(path):
		var sb strings.Builder
		err = toml.NewEncoder(&sb).Encode(c)
		data = []byte(sb.String())
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.Balance < 0 {
		return fmt.Errorf("account.balance must not be negative")
	}
	if c.Broker.Name == "" {
		return fmt.Errorf("broker.name is required")
	}
	if c.Broker.Leverage <= 0 {
		return fmt.Errorf("broker.leverage must be positive")
	}
	if c.Broker.MinOrderValue < 0 || c.Broker.MaintenanceMargin < 0 {
		return fmt.Errorf("broker.min_order_value and maintenance_margin must not be negative")
	}
	if c.Broker.FeeRate < 0 || c.Broker.FeeMax < 0 {
		return fmt.Errorf("broker fees must not be negative")
	}

	if c.Replay.Symbol == "" {
		return fmt.Errorf("replay.symbol is required")
	}
	if err := broker.InstrumentKind(c.Replay.Instrument).Validate(); err != nil {
		return fmt.Errorf("replay.instrument: %w", err)
	}
	if _, err := pricing.ParseExtremeOrder(c.Replay.ExtremeOrder); err != nil {
		return fmt.Errorf("replay.extreme_order: %w", err)
	}
	if _, err := c.Replay.Step(); err != nil {
		return err
	}

	if _, err := c.StrategyParams(); err != nil {
		return err
	}

	switch c.Journal.Type {
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	case "csv":
		if c.Journal.ExecutionsFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal executions_file and equity_file required for CSV type")
		}
	case "memory", "none", "":
	default:
		return fmt.Errorf("journal.type must be 'sqlite', 'csv', 'memory' or 'none'")
	}
	return nil
}

// Dataset is the file the replay reads.
func (r ReplayConfig) Dataset() string {
	if r.Ticks != "" {
		return r.Ticks
	}
	return r.Candles
}

// Step parses CandleStep; empty means one minute.
func (r ReplayConfig) Step() (time.Duration, error) {
	if r.CandleStep == "" {
		return time.Minute, nil
	}
	step, err := time.ParseDuration(r.CandleStep)
	if err != nil {
		return 0, fmt.Errorf("replay.candle_step: %w", err)
	}
	if step <= 0 {
		return 0, fmt.Errorf("replay.candle_step must be positive")
	}
	return step, nil
}

func (c *Config) BrokerSettings() sim.Settings {
	return sim.Settings{
		Name:              c.Broker.Name,
		Balance:           decimal.NewFromFloat(c.Account.Balance),
		Leverage:          decimal.NewFromFloat(c.Broker.Leverage),
		MinOrderValue:     decimal.NewFromFloat(c.Broker.MinOrderValue),
		MaintenanceMargin: decimal.NewFromFloat(c.Broker.MaintenanceMargin),
		Brokerage: sim.Brokerage{
			Rate: decimal.NewFromFloat(c.Broker.FeeRate),
			Max:  decimal.NewFromFloat(c.Broker.FeeMax),
		},
	}
}

// StrategyParams builds the strategy knobs and checks them by constructing
// the named strategy once.
func (c *Config) StrategyParams() (strategies.Params, error) {
	s := c.Strategy
	p := strategies.Params{
		Broker:     c.Broker.Name,
		Instrument: broker.InstrumentKind(c.Replay.Instrument),
		Symbol:     c.Replay.Symbol,
		Quantity:   decimal.NewFromFloat(s.Quantity),
		Pullback:   decimal.NewFromFloat(s.Pullback),
		TakeProfit: decimal.NewFromFloat(s.TakeProfit),
		StopLoss:   decimal.NewFromFloat(s.StopLoss),
		Fast:       s.Fast,
		Slow:       s.Slow,
		ATRPeriod:  s.ATRPeriod,
		ATRMult:    decimal.NewFromFloat(s.ATRMult),
		RiskPct:    decimal.NewFromFloat(s.RiskPct),
		Callback:   decimal.NewFromFloat(s.Callback),
	}
	if s.Side != "" {
		side, err := broker.ParseSide(s.Side)
		if err != nil {
			return p, fmt.Errorf("strategy.side: %w", err)
		}
		p.Side = side
	}
	if s.RiskChecks {
		pol := risk.DefaultPolicy()
		if s.RiskPct > 0 {
			pol.MaxRiskPct = decimal.NewFromFloat(s.RiskPct)
		}
		p.Policy = &pol
	}
	if _, err := strategies.ByName(s.Name, p); err != nil {
		return p, fmt.Errorf("strategy: %w", err)
	}
	return p, nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{Balance: 10000},
		Broker: BrokerConfig{
			Name:     "SIM",
			Leverage: 1,
			FeeRate:  0.0003,
			FeeMax:   20,
		},
		Replay: ReplayConfig{
			Candles:      "./candles.csv",
			Symbol:       "ACME",
			Instrument:   string(broker.Equity),
			ExtremeOrder: pricing.Direction.String(),
			CandleStep:   "1m",
		},
		Strategy: StrategyConfig{
			Name:       "bracket",
			Quantity:   10,
			Pullback:   0.01,
			TakeProfit: 0.02,
			StopLoss:   0.02,
			Fast:       12,
			Slow:       26,
			ATRPeriod:  14,
			ATRMult:    2,
			RiskPct:    0.01,
			Callback:   0.05,
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./tradelab.sqlite",
		},
	}
}
