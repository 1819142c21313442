package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "binance", cfg.DataSource)
	assert.Equal(t, 100000.0, cfg.InitialBalance)
	assert.Equal(t, 0.05, cfg.CommissionPct)
	assert.Equal(t, time.Minute, cfg.LivePollInterval)
	assert.Equal(t, 500, cfg.LiveWindow)
	assert.True(t, cfg.RiskEnabled)
	assert.Equal(t, 20, cfg.RiskMaxDailyTrades)
	assert.Equal(t, 50, cfg.SignalBatchSize)
	assert.Equal(t, 2*time.Minute, cfg.RequestTimeout)
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATA_SOURCE", "CSV")
	t.Setenv("COMMISSION_PCT", "0.1")
	t.Setenv("OPTIMIZER_SEED", "42")
	t.Setenv("LIVE_POLL_INTERVAL", "15s")
	t.Setenv("LOG_JSON", "true")
	t.Setenv("REQUEST_TIMEOUT", "45s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "csv", cfg.DataSource)
	assert.Equal(t, 0.1, cfg.CommissionPct)
	assert.Equal(t, int64(42), cfg.OptimizerSeed)
	assert.Equal(t, 15*time.Second, cfg.LivePollInterval)
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("DATA_SOURCE", "ftp")
	_, err := Load()
	assert.ErrorContains(t, err, "DATA_SOURCE")

	t.Setenv("DATA_SOURCE", "mock")
	t.Setenv("EQUITY_PCT", "150")
	_, err = Load()
	assert.ErrorContains(t, err, "EQUITY_PCT")

	t.Setenv("EQUITY_PCT", "100")
	t.Setenv("RISK_MAX_DAILY_LOSS", "-5")
	_, err = Load()
	assert.ErrorContains(t, err, "RISK_MAX_DAILY_LOSS")
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("INITIAL_BALANCE", "lots")
	t.Setenv("LIVE_WINDOW", "many")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 100000.0, cfg.InitialBalance)
	assert.Equal(t, 500, cfg.LiveWindow)
}
