// Package config loads runtime configuration from YAML or JSON files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/hfstrategy/broker"
)

// Config is the complete runtime configuration.
type Config struct {
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Fees     FeesConfig     `json:"fees" yaml:"fees"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Exchange ExchangeConfig `json:"exchange" yaml:"exchange"`
}

// StrategyConfig contains the strategy core parameters.
type StrategyConfig struct {
	Symbol      string `json:"symbol" yaml:"symbol"`
	Mode        string `json:"mode" yaml:"mode"` // "margin" or "exchange"
	Backtesting bool   `json:"backtesting" yaml:"backtesting"`
	LogLevel    string `json:"log_level" yaml:"log_level"`
}

// FeesConfig contains the simulated fee schedule.
type FeesConfig struct {
	Maker float64 `json:"maker" yaml:"maker"`
	Taker float64 `json:"taker" yaml:"taker"`
}

// JournalConfig contains journaling parameters.
type JournalConfig struct {
	Type   string `json:"type" yaml:"type"` // "csv" or "sqlite"
	Dir    string `json:"dir,omitempty" yaml:"dir,omitempty"`
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// ExchangeConfig contains live exchange connection parameters.
type ExchangeConfig struct {
	WSURL     string `json:"ws_url" yaml:"ws_url"`
	APIKey    string `json:"api_key" yaml:"api_key"`
	APISecret string `json:"api_secret" yaml:"api_secret"`
}

// Default returns a configuration for a simulated margin run on tBTCUSD.
func Default() *Config {
	return &Config{
		Strategy: StrategyConfig{
			Symbol:   "tBTCUSD",
			Mode:     "margin",
			LogLevel: "info",
		},
		Fees: FeesConfig{
			Maker: 0.001,
			Taker: 0.002,
		},
		Journal: JournalConfig{
			Type: "csv",
			Dir:  "journal",
		},
		Exchange: ExchangeConfig{
			WSURL: "wss://api.bitfinex.com/ws/2",
		},
	}
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Strategy.Symbol == "" {
		return fmt.Errorf("strategy.symbol is required")
	}
	if _, err := c.Mode(); err != nil {
		return err
	}
	switch c.Journal.Type {
	case "", "csv", "sqlite":
	default:
		return fmt.Errorf("journal.type %q: must be csv or sqlite", c.Journal.Type)
	}
	if c.Fees.Maker < 0 || c.Fees.Taker < 0 {
		return fmt.Errorf("fees must not be negative")
	}
	return nil
}

// Mode parses the configured exchange mode.
func (c *Config) Mode() (broker.ExchangeMode, error) {
	switch strings.ToLower(c.Strategy.Mode) {
	case "", "margin":
		return broker.Margin, nil
	case "exchange":
		return broker.Exchange, nil
	}
	return 0, fmt.Errorf("strategy.mode %q: must be margin or exchange", c.Strategy.Mode)
}
