package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/hfstrategy/broker"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFileYAML(t *testing.T) {
	path := writeConfig(t, `
strategy:
  symbol: tETHUSD
  mode: exchange
  backtesting: true
  log_level: debug
fees:
  maker: 0.0005
  taker: 0.0015
journal:
  type: sqlite
  db_path: /tmp/journal.db
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "tETHUSD", cfg.Strategy.Symbol)
	assert.True(t, cfg.Strategy.Backtesting)
	assert.Equal(t, 0.0005, cfg.Fees.Maker)
	assert.Equal(t, "sqlite", cfg.Journal.Type)

	mode, err := cfg.Mode()
	require.NoError(t, err)
	assert.Equal(t, broker.Exchange, mode)
}

func TestLoadFromFileJSON(t *testing.T) {
	path := writeConfig(t, `{"strategy": {"symbol": "tBTCUSD", "mode": "margin"}}`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "tBTCUSD", cfg.Strategy.Symbol)
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
strategy:
  symbol: tBTCUSD
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	// Unset sections fall back to the defaults
	assert.Equal(t, 0.002, cfg.Fees.Taker)
	assert.Equal(t, "wss://api.bitfinex.com/ws/2", cfg.Exchange.WSURL)
}

func TestValidateRejectsBadMode(t *testing.T) {
	cfg := Default()
	cfg.Strategy.Mode = "paper"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsMissingSymbol(t *testing.T) {
	cfg := Default()
	cfg.Strategy.Symbol = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadJournalType(t *testing.T) {
	cfg := Default()
	cfg.Journal.Type = "postgres"
	assert.Error(t, cfg.Validate())
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}
