package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Host            string        `yaml:"host" default:"127.0.0.1"`
		Port            int           `yaml:"port" default:"8787"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"1s"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Analytics struct {
		BaseURL          string        `yaml:"base_url"`
		RemoteTimeout    time.Duration `yaml:"remote_timeout" default:"3s"`
		EphemeralTimeout time.Duration `yaml:"ephemeral_timeout" default:"6s"`
		MTFTimeout       time.Duration `yaml:"mtf_timeout" default:"8s"`
		BehaviorTimeout  time.Duration `yaml:"behavior_timeout" default:"5s"`
		LocalFallback    bool          `yaml:"local_fallback" default:"true"`
		CandleWindow     int           `yaml:"candle_window" default:"300"`
		Retries          int           `yaml:"retries" default:"1"`
		Breaker          struct {
			MaxFailures uint32        `yaml:"max_failures" default:"3"`
			Interval    time.Duration `yaml:"interval" default:"60s"`
			OpenTimeout time.Duration `yaml:"open_timeout" default:"30s"`
		} `yaml:"breaker"`
	} `yaml:"analytics"`
	MarketData struct {
		Source         string        `yaml:"source" default:"binance"`
		KlinesURL      string        `yaml:"klines_url" default:"https://api.binance.com/api/v3/klines"`
		StreamURL      string        `yaml:"stream_url" default:"wss://stream.binance.com:9443/ws"`
		StreamEnabled  bool          `yaml:"stream_enabled" default:"true"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
		RequestTimeout time.Duration `yaml:"request_timeout" default:"5s"`
		RPS            float64       `yaml:"rps" default:"5"`
		Burst          int           `yaml:"burst" default:"10"`
	} `yaml:"market_data"`
	Cache struct {
		DOMTTL        time.Duration `yaml:"dom_ttl" default:"5s"`
		AnalysisTTL   time.Duration `yaml:"analysis_ttl" default:"3s"`
		EnrichmentTTL time.Duration `yaml:"enrichment_ttl" default:"60s"`
	} `yaml:"cache"`
	Observer struct {
		Throttle           time.Duration       `yaml:"throttle" default:"500ms"`
		NavigationDebounce time.Duration       `yaml:"navigation_debounce" default:"300ms"`
		Regions            map[string]string   `yaml:"regions"`
		Selectors          map[string][]string `yaml:"selectors"`
	} `yaml:"observer"`
	Manager struct {
		Freshness time.Duration `yaml:"freshness" default:"30s"`
	} `yaml:"manager"`
	Journal struct {
		BatchSize     int           `yaml:"batch_size" default:"100"`
		FlushInterval time.Duration `yaml:"flush_interval" default:"5s"`
		KafkaMirror   bool          `yaml:"kafka_mirror" default:"false"`
		DigestTopic   string        `yaml:"digest_topic" default:"log_digest"`
	} `yaml:"journal"`
	Behavior struct {
		PollInterval time.Duration `yaml:"poll_interval" default:"60s"`
		Tick         time.Duration `yaml:"tick" default:"1s"`
	} `yaml:"behavior"`
	Perf struct {
		ReportInterval time.Duration `yaml:"report_interval" default:"60s"`
	} `yaml:"perf"`
	State struct {
		Backend      string `yaml:"backend" default:"memory"`
		MaxBookmarks int    `yaml:"max_bookmarks" default:"50"`
	} `yaml:"state"`
	Redis struct {
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"tradelens"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"tradelens.journal"`
		RequiredAcks int           `yaml:"required_acks" default:"1"`
		Compression  string        `yaml:"compression" default:"snappy"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host        string        `yaml:"host"`
		Port        int           `yaml:"port" default:"9000"`
		Database    string        `yaml:"database" default:"tradelens"`
		Table       string        `yaml:"table" default:"candles"`
		User        string        `yaml:"user" default:"default"`
		Password    string        `yaml:"password"`
		UseHTTP     bool          `yaml:"use_http"`
		DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout time.Duration `yaml:"read_timeout" default:"10s"`
	} `yaml:"clickhouse"`
}

// envOverrides lists the settings that may come from the environment.
// Unset variables leave the YAML value alone.
type envOverrides struct {
	Environment      string   `envconfig:"ENVIRONMENT"`
	Port             int      `envconfig:"PORT"`
	LogLevel         string   `envconfig:"LOG_LEVEL"`
	AnalyticsBaseURL string   `envconfig:"ANALYTICS_BASE_URL"`
	LocalFallback    *bool    `envconfig:"LOCAL_FALLBACK"`
	MarketSource     string   `envconfig:"MARKET_SOURCE"`
	StateBackend     string   `envconfig:"STATE_BACKEND"`
	RedisHost        string   `envconfig:"REDIS_HOST"`
	RedisPassword    string   `envconfig:"REDIS_PASSWORD"`
	KafkaBrokers     []string `envconfig:"KAFKA_BROKERS"`
	KafkaMirror      *bool    `envconfig:"KAFKA_MIRROR"`
	ClickHouseHost   string   `envconfig:"CLICKHOUSE_HOST"`
	ClickHousePass   string   `envconfig:"CLICKHOUSE_PASSWORD"`
}

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TRADELENS"

// Parse applies defaults, decodes YAML and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDerived()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// LoadWithEnv loads config from YAML and overrides with environment
// variables, reading a .env file first when one exists.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overlays TRADELENS_* variables.
func (c *Config) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}
	if env.Environment != "" {
		c.Environment = env.Environment
	}
	if env.Port != 0 {
		c.Server.Port = env.Port
	}
	if env.LogLevel != "" {
		c.Log.Level = env.LogLevel
	}
	if env.AnalyticsBaseURL != "" {
		c.Analytics.BaseURL = env.AnalyticsBaseURL
	}
	if env.LocalFallback != nil {
		c.Analytics.LocalFallback = *env.LocalFallback
	}
	if env.MarketSource != "" {
		c.MarketData.Source = env.MarketSource
	}
	if env.StateBackend != "" {
		c.State.Backend = env.StateBackend
	}
	if env.RedisHost != "" {
		c.Redis.Host = env.RedisHost
	}
	if env.RedisPassword != "" {
		c.Redis.Password = env.RedisPassword
	}
	if len(env.KafkaBrokers) > 0 {
		c.Kafka.Brokers = env.KafkaBrokers
	}
	if env.KafkaMirror != nil {
		c.Journal.KafkaMirror = *env.KafkaMirror
	}
	if env.ClickHouseHost != "" {
		c.ClickHouse.Host = env.ClickHouseHost
	}
	if env.ClickHousePass != "" {
		c.ClickHouse.Password = env.ClickHousePass
	}
	c.applyDerived()
	return nil
}

func (c *Config) applyDerived() {
	c.Analytics.BaseURL = strings.TrimRight(c.Analytics.BaseURL, "/")
	if c.Observer.Regions == nil {
		c.Observer.Regions = DefaultRegions()
	}
	if c.Observer.Selectors == nil {
		c.Observer.Selectors = DefaultSelectors()
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error
	if c.Environment == "" {
		errs = append(errs, errors.New("environment is required"))
	}
	if c.Analytics.BaseURL == "" && !c.Analytics.LocalFallback {
		errs = append(errs, errors.New("analytics.base_url is required when local_fallback is disabled"))
	}
	if c.Analytics.CandleWindow < 50 {
		errs = append(errs, fmt.Errorf("analytics.candle_window must be at least 50, got %d", c.Analytics.CandleWindow))
	}
	if c.Analytics.RemoteTimeout <= 0 || c.Analytics.EphemeralTimeout <= 0 || c.Analytics.MTFTimeout <= 0 {
		errs = append(errs, errors.New("analytics timeouts must be positive"))
	}
	switch c.MarketData.Source {
	case "binance":
		if c.MarketData.KlinesURL == "" {
			errs = append(errs, errors.New("market_data.klines_url is required"))
		}
	case "clickhouse":
		if c.ClickHouse.Host == "" {
			errs = append(errs, errors.New("clickhouse.host is required when market_data.source is clickhouse"))
		}
	default:
		errs = append(errs, fmt.Errorf("market_data.source must be 'binance' or 'clickhouse', got '%s'", c.MarketData.Source))
	}
	switch c.State.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("state.backend must be 'memory' or 'redis', got '%s'", c.State.Backend))
	}
	if c.Journal.BatchSize <= 0 {
		errs = append(errs, errors.New("journal.batch_size must be positive"))
	}
	if c.Journal.KafkaMirror && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers cannot be empty when journal.kafka_mirror is on"))
	}
	return errors.Join(errs...)
}
