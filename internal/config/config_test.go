package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PRICEFOLIO_TUNABLES", "")
	t.Setenv("PORT", "")
	t.Setenv("FINNHUB_BASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "https://finnhub.io/api/v1", cfg.FinnhubBaseURL)
	assert.Equal(t, 60*time.Second, cfg.EquityTTL)
	assert.Equal(t, 5*time.Minute, cfg.CryptoTTL)
	assert.Equal(t, 60*time.Minute, cfg.MetalTTL)
	assert.Equal(t, 5*time.Minute, cfg.HistoryTTL)
	assert.Equal(t, 10, cfg.EquityBatchSize)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.ForbiddenCooldown)
	assert.Equal(t, 512, cfg.ResolverCacheSize)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PRICEFOLIO_TUNABLES", "")
	t.Setenv("PORT", "9090")
	t.Setenv("FINNHUB_API_KEY", "test-key")
	t.Setenv("COINGECKO_BASE_URL", "http://localhost:1234")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "test-key", cfg.FinnhubKey)
	assert.Equal(t, "http://localhost:1234", cfg.CoinGeckoBaseURL)
}

func TestLoadTunablesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tunables.yaml")
	body := []byte(`
equity_ttl_seconds: 120
crypto_ttl_seconds: 600
equity_batch_size: 5
equity_batch_delay_ms: 250
max_retries: 1
forbidden_cooldown_seconds: 60
`)
	require.NoError(t, os.WriteFile(path, body, 0o644))
	t.Setenv("PRICEFOLIO_TUNABLES", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.EquityTTL)
	assert.Equal(t, 10*time.Minute, cfg.CryptoTTL)
	assert.Equal(t, 5, cfg.EquityBatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.EquityBatchDelay)
	assert.Equal(t, 1, cfg.MaxRetries)
	assert.Equal(t, time.Minute, cfg.ForbiddenCooldown)
	// untouched keys keep their defaults
	assert.Equal(t, 60*time.Minute, cfg.MetalTTL)
}

func TestLoadTunablesBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tunables.yaml")
	require.NoError(t, os.WriteFile(path, []byte("equity_ttl_seconds: [oops"), 0o644))
	t.Setenv("PRICEFOLIO_TUNABLES", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadTunablesMissingFile(t *testing.T) {
	t.Setenv("PRICEFOLIO_TUNABLES", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	assert.Error(t, err)
}
