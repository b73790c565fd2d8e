package di

import (
	"testing"

	"TradeLens/internal/repository"
	"TradeLens/internal/service/marketdata"
	analytics "TradeLens/internal/services/analytics"
	"TradeLens/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte("log:\n  level: error\n"))
	require.NoError(t, err)
	return cfg
}

func TestInitializeAppWithDefaults(t *testing.T) {
	app, err := InitializeApp(defaultConfig(t))
	require.NoError(t, err)
	assert.NotNil(t, app)
}

func TestOptionalInfrastructureStaysOff(t *testing.T) {
	cfg := defaultConfig(t)

	ch, err := ProvideClickHouseClient(cfg)
	require.NoError(t, err)
	assert.Nil(t, ch)

	producer, err := ProvideKafkaProducer(cfg, ProvideRegistry())
	require.NoError(t, err)
	assert.Nil(t, producer)

	cfg.MarketData.StreamEnabled = false
	assert.Nil(t, ProvideMarketStream(cfg, nil))
}

func TestCandleSourceFollowsConfig(t *testing.T) {
	cfg := defaultConfig(t)
	src, err := ProvideCandleSource(cfg, ProvideRateLimiter(cfg), nil)
	require.NoError(t, err)
	assert.IsType(t, &marketdata.KlinesClient{}, src)

	cfg.MarketData.Source = "clickhouse"
	_, err = ProvideCandleSource(cfg, ProvideRateLimiter(cfg), nil)
	assert.Error(t, err)
}

func TestJournalSinkWithoutMirror(t *testing.T) {
	cfg := defaultConfig(t)
	l, err := ProvideLogger(cfg)
	require.NoError(t, err)
	jc := analytics.NewJournalClient(cfg, l)

	sink := ProvideJournalSink(cfg, jc, nil, l)
	assert.Same(t, jc, sink)
	_, isFanout := sink.(*repository.FanoutSink)
	assert.False(t, isFanout)
}
