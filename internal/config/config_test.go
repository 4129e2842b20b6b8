package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yourorg/market-refresh/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "8085", cfg.Server.Port)
	assert.Equal(t, "us", cfg.Market.Name)
	assert.Equal(t, []string{"nasdaq", "nyse", "amex"}, cfg.Market.Exchanges)
	assert.Equal(t, "2000-01-01", cfg.Market.HistoryStartDate)
	assert.Equal(t, 20, cfg.Refresh.Concurrency)
	assert.Equal(t, 3, cfg.Refresh.RetryCount)
	assert.Equal(t, time.Second, cfg.Refresh.RetryInterval)
	assert.Equal(t, "data/prices", cfg.Storage.PricesDir)
	assert.False(t, cfg.Kafka.Enabled)
	assert.False(t, cfg.Scheduler.Enabled)
}

func TestLoadConfig_FileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: "9000"
market:
  name: pl
  exchanges: [gpw]
  historyStartDate: "2010-01-01"
refresh:
  concurrency: 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "pl", cfg.Market.Name)
	assert.Equal(t, []string{"gpw"}, cfg.Market.Exchanges)
	assert.Equal(t, 4, cfg.Refresh.Concurrency)
	// Untouched keys keep their defaults
	assert.Equal(t, 3, cfg.Refresh.RetryCount)
	assert.Equal(t, "data/listings", cfg.Storage.ListingsDir)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("MARKET_NAME", "de")

	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "de", cfg.Market.Name)
}

func TestLoadConfig_RejectsBadHistoryStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("market:\n  historyStartDate: \"20000101\"\n"), 0o644))

	_, err := config.LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_RejectsZeroConcurrency(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("refresh:\n  concurrency: 0\n"), 0o644))

	_, err := config.LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_RejectsEmptyExchanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("market:\n  exchanges: []\n"), 0o644))

	_, err := config.LoadConfig(path)
	assert.Error(t, err)
}
