package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"ETHUSDT", "BNBUSDT", "BTCUSDT", "SOLUSDT", "XRPUSDT"}, cfg.Trading.Symbols)
	assert.Equal(t, 10, cfg.Trading.Leverage)
	assert.InDelta(t, 1.2, cfg.Trading.ATRTPMult, 1e-9)
	assert.Equal(t, 15*time.Minute, cfg.Trading.Cooldown)
	assert.Equal(t, 2*time.Second, cfg.Trading.Retry.Delay)
	assert.Equal(t, 3, cfg.Trading.DCA.MaxEntries)
	assert.InDelta(t, 0.0001, cfg.Trading.DustThreshold, 1e-12)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
trading:
  symbols: [BTCUSDT]
  leverage: 5
  cooldown: 1m
  dca:
    enabled: false
`), 0o644))

	t.Setenv("SCALP_TRADING_MARGIN_PER_TRADE", "25")
	t.Setenv("BINANCE_API_KEY", "key-from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT"}, cfg.Trading.Symbols)
	assert.Equal(t, 5, cfg.Trading.Leverage)
	assert.Equal(t, time.Minute, cfg.Trading.Cooldown)
	assert.False(t, cfg.Trading.DCA.Enabled)
	assert.InDelta(t, 25, cfg.Trading.MarginPerTrade, 1e-9)
	assert.Equal(t, "key-from-env", cfg.Exchange.APIKey)
}

func TestLoadRejectsBadLeverage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trading:\n  leverage: 0\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
