package di

import (
	"context"
	"fmt"
	"time"

	"TradeLens/internal/domain/repository"
	"TradeLens/internal/handler/api"
	"TradeLens/internal/observer"
	internalrepo "TradeLens/internal/repository"
	"TradeLens/internal/service/marketdata"
	"TradeLens/internal/service/ratelimit"
	analytics "TradeLens/internal/services/analytics"
	"TradeLens/internal/usecase"
	"TradeLens/pkg/cache"
	pkgch "TradeLens/pkg/clickhouse"
	"TradeLens/pkg/config"
	xhttp "TradeLens/pkg/http"
	pkgkafka "TradeLens/pkg/kafka"
	"TradeLens/pkg/logger"
	"TradeLens/pkg/metrics"
	"TradeLens/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
)

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the Prometheus registry served on /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) *metrics.Recorder {
	return metrics.NewWithRegistry(reg)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when no host
// is configured.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.ClickHouse.Host == "" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(5, 2),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, pkgch.CandleSchema(cfg.ClickHouse.Database, cfg.ClickHouse.Table)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates the journal mirror producer, or nil when the
// mirror is off.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if !cfg.Journal.KafkaMirror {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Journal.BatchSize),
		pkgkafka.WithBatchTimeout(50*time.Millisecond),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.WriteTimeout),
		pkgkafka.WithMaxAttempts(3),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideStateCache creates the key-value store behind persisted state.
func ProvideStateCache(cfg *config.Config) (cache.Service, error) {
	if cfg.State.Backend != "redis" {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(1024)), nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(4, 1, 3*time.Second),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis state cache: %w", err)
	}
	return rc, nil
}

func ProvideStateStore(kv cache.Service, cfg *config.Config) repository.StateStore {
	return internalrepo.NewKVStateStore(kv, cfg.State.MaxBookmarks)
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.MarketData.RPS, cfg.MarketData.Burst)
}

// ProvideCandleStore returns the ClickHouse candle table, nil without a
// ClickHouse client.
func ProvideCandleStore(ch *pkgch.Client, cfg *config.Config, l *logger.Logger) *internalrepo.CHCandleStore {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCHCandleStore(ch, cfg.ClickHouse.Database, cfg.ClickHouse.Table, l)
}

// ProvideCandleSource picks the candle backend named by market_data.source.
func ProvideCandleSource(cfg *config.Config, limiter *ratelimit.Limiter, store *internalrepo.CHCandleStore) (repository.CandleSource, error) {
	switch cfg.MarketData.Source {
	case "clickhouse":
		if store == nil {
			return nil, fmt.Errorf("candle source clickhouse: no clickhouse client")
		}
		return store, nil
	default:
		return marketdata.NewKlinesClient(cfg, limiter), nil
	}
}

// ProvideMarketStream returns the live kline stream, nil when disabled.
func ProvideMarketStream(cfg *config.Config, l *logger.Logger) repository.MarketStream {
	if !cfg.MarketData.StreamEnabled {
		return nil
	}
	return marketdata.NewKlineStream(cfg, l)
}

// ProvideJournalSink sends batches to the journal service and, when the
// mirror is on, copies them to Kafka.
func ProvideJournalSink(cfg *config.Config, jc *analytics.JournalClient, producer *pkgkafka.Producer, l *logger.Logger) repository.JournalSink {
	if producer == nil {
		return jc
	}
	mirror := internalrepo.NewKafkaJournalMirror(producer, cfg.Kafka.Topic)
	return internalrepo.NewFanoutSink(jc, l, mirror)
}

func ProvideOrchestrator(
	cfg *config.Config,
	remote *analytics.ContextClient,
	ephemeral *analytics.EphemeralClient,
	candles repository.CandleSource,
	enricher *analytics.EnrichmentClient,
	m *metrics.Recorder,
	l *logger.Logger,
) *usecase.Orchestrator {
	return usecase.NewOrchestrator(
		usecase.OrchestratorConfig{
			RemoteTimeout:    cfg.Analytics.RemoteTimeout,
			EphemeralTimeout: cfg.Analytics.EphemeralTimeout,
			MTFTimeout:       cfg.Analytics.MTFTimeout,
			CandleWindow:     cfg.Analytics.CandleWindow,
			LocalFallback:    cfg.Analytics.LocalFallback,
			AnalysisTTL:      cfg.Cache.AnalysisTTL,
			EnrichmentTTL:    cfg.Cache.EnrichmentTTL,
		},
		remote, ephemeral, candles, enricher, m, l,
	)
}

func ProvideAnalysisManager(orch *usecase.Orchestrator, cfg *config.Config) *usecase.AnalysisManager {
	return usecase.NewAnalysisManager(orch, cfg.Manager.Freshness)
}

func ProvideCooldownMachine(cfg *config.Config, behavior *analytics.BehaviorClient, state repository.StateStore, l *logger.Logger) *usecase.CooldownMachine {
	return usecase.NewCooldownMachine(behavior, state, cfg.Behavior.Tick, cfg.Behavior.PollInterval, l)
}

// ProvideJournalBuffer creates the journal buffer and routes the logger's
// error digests into it.
func ProvideJournalBuffer(cfg *config.Config, sink repository.JournalSink, state repository.StateStore, m *metrics.Recorder, l *logger.Logger) *usecase.JournalBuffer {
	buf := usecase.NewJournalBuffer(sink, state, cfg.Journal.BatchSize, cfg.Journal.FlushInterval, m, l)
	l.AddCollector(&logger.CollectionConfig{
		TimeInterval:   cfg.Perf.ReportInterval,
		CountThreshold: 50,
		Topic:          cfg.Journal.DigestTopic,
		Publisher:      buf,
	})
	return buf
}

func ProvidePageBridge(l *logger.Logger) *api.PageBridge {
	return api.NewPageBridge(l)
}

// ProvideObserver builds the context observer; the page bridge delivers its
// frames and binds its regions.
func ProvideObserver(cfg *config.Config, bridge *api.PageBridge, m *metrics.Recorder, l *logger.Logger) *observer.Observer {
	return observer.New(
		observer.Config{
			Throttle:           cfg.Observer.Throttle,
			NavigationDebounce: cfg.Observer.NavigationDebounce,
			DOMTTL:             cfg.Cache.DOMTTL,
			Regions:            cfg.Observer.Regions,
			Selectors:          cfg.Observer.Selectors,
		},
		observer.NewPageState(),
		observer.NewChannelNavigation(16),
		bridge,
		m,
		l,
	)
}

// ProvideTickPump records closed candles into ClickHouse when it is
// configured and ClickHouse is not already the candle source.
func ProvideTickPump(cfg *config.Config, bridge *api.PageBridge, orch *usecase.Orchestrator, store *internalrepo.CHCandleStore, m *metrics.Recorder) *usecase.TickPump {
	opts := []usecase.TickPumpOption{usecase.WithMaxRPS(4)}
	if store != nil && cfg.MarketData.Source != "clickhouse" {
		opts = append(opts, usecase.WithRecorder(store))
	}
	return usecase.NewTickPump(bridge, orch, m, opts...)
}

func ProvideCompanion(
	cfg *config.Config,
	obs *observer.Observer,
	orch *usecase.Orchestrator,
	manager *usecase.AnalysisManager,
	cooldown *usecase.CooldownMachine,
	journal *usecase.JournalBuffer,
	state repository.StateStore,
	stream repository.MarketStream,
	pump *usecase.TickPump,
	bridge *api.PageBridge,
	l *logger.Logger,
) *usecase.Companion {
	return usecase.NewCompanion(
		usecase.CompanionConfig{
			PerfInterval: cfg.Perf.ReportInterval,
			LogLevel:     cfg.Log.Level,
		},
		obs, orch, manager, cooldown, journal, state, stream, pump, bridge, l,
	)
}

// ProvideDispatcher creates the message dispatcher and attaches it, with
// the observer, to the page bridge.
func ProvideDispatcher(c *usecase.Companion, obs *observer.Observer, bridge *api.PageBridge, l *logger.Logger) *usecase.Dispatcher {
	d := usecase.NewDispatcher(c, l)
	bridge.Attach(obs, d)
	return d
}

func ProvideCandlesUseCase(source repository.CandleSource) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(source)
}

// ProvideHTTPHandler combines the REST surface and the page socket.
func ProvideHTTPHandler(
	l *logger.Logger,
	c *usecase.Companion,
	d *usecase.Dispatcher,
	candles *usecase.CandlesUseCase,
	stream repository.MarketStream,
	bridge *api.PageBridge,
) xhttp.Handler {
	var status api.StreamStatus
	if stream != nil {
		status = stream
	}
	return api.Routes{
		api.NewCompanionHandler(l, c, d, candles, status),
		bridge,
	}
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	reg *prometheus.Registry,
	handler xhttp.Handler,
	bridge *api.PageBridge,
	c *usecase.Companion,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	kv cache.Service,
) *server.App {
	return server.New(cfg, l, reg, handler, bridge, c, chClient, producer, kv)
}
