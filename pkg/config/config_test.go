package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("analytics:\n  base_url: https://analytics.example.com/\n"))
	require.NoError(t, err)

	assert.Equal(t, "https://analytics.example.com", c.Analytics.BaseURL)
	assert.Equal(t, 3*time.Second, c.Analytics.RemoteTimeout)
	assert.Equal(t, 6*time.Second, c.Analytics.EphemeralTimeout)
	assert.Equal(t, 8*time.Second, c.Analytics.MTFTimeout)
	assert.Equal(t, 300, c.Analytics.CandleWindow)
	assert.True(t, c.Analytics.LocalFallback)
	assert.Equal(t, 5*time.Second, c.Cache.DOMTTL)
	assert.Equal(t, 3*time.Second, c.Cache.AnalysisTTL)
	assert.Equal(t, time.Minute, c.Cache.EnrichmentTTL)
	assert.Equal(t, 500*time.Millisecond, c.Observer.Throttle)
	assert.Equal(t, 300*time.Millisecond, c.Observer.NavigationDebounce)
	assert.Equal(t, 30*time.Second, c.Manager.Freshness)
	assert.Equal(t, 100, c.Journal.BatchSize)
	assert.Equal(t, 5*time.Second, c.Journal.FlushInterval)
	assert.Equal(t, time.Minute, c.Behavior.PollInterval)
	assert.Equal(t, 5*time.Second, c.MarketData.ReconnectDelay)
	assert.Contains(t, c.Observer.Selectors, "symbol")
	assert.Contains(t, c.Observer.Regions, "position")
}

func TestParseOverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
analytics:
  remote_timeout: 1500ms
  local_fallback: true
journal:
  batch_size: 20
observer:
  selectors:
    symbol: [".pair"]
`))
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, c.Analytics.RemoteTimeout)
	assert.Equal(t, 20, c.Journal.BatchSize)
	assert.Equal(t, []string{".pair"}, c.Observer.Selectors["symbol"])
}

func TestValidateRejectsBadValues(t *testing.T) {
	_, err := Parse([]byte("market_data:\n  source: ftp\n"))
	assert.ErrorContains(t, err, "market_data.source")

	_, err = Parse([]byte("analytics:\n  local_fallback: false\n"))
	assert.ErrorContains(t, err, "base_url")

	_, err = Parse([]byte("analytics:\n  candle_window: 10\n"))
	assert.ErrorContains(t, err, "candle_window")

	_, err = Parse([]byte("journal:\n  kafka_mirror: true\n"))
	assert.ErrorContains(t, err, "kafka.brokers")
}

func TestLoadWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: test\n"), 0o600))

	t.Setenv("TRADELENS_ANALYTICS_BASE_URL", "http://localhost:9000")
	t.Setenv("TRADELENS_LOCAL_FALLBACK", "false")
	t.Setenv("TRADELENS_PORT", "9999")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", c.Analytics.BaseURL)
	assert.False(t, c.Analytics.LocalFallback)
	assert.Equal(t, 9999, c.Server.Port)
	assert.Equal(t, "test", c.Environment)
}

func TestShippedConfigLoads(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "binance", c.MarketData.Source)
	assert.Equal(t, "memory", c.State.Backend)
	assert.Equal(t, 8787, c.Server.Port)
	assert.NotEmpty(t, c.Observer.Selectors["symbol"])
}
