package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"MarketPulse/pkg/logger"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
	} `yaml:"server"`
	Logger  logger.Config `yaml:"logger"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Engine struct {
		MaxAge         time.Duration `yaml:"max_age" default:"60m"`
		CoalesceMisses bool          `yaml:"coalesce_misses" default:"true"`
		ComputeTimeout time.Duration `yaml:"compute_timeout" default:"20s"`
		BatchLimit     int           `yaml:"batch_limit" default:"10"`
	} `yaml:"engine"`
	Scoring struct {
		// CalibrationFile overrides the built-in calibration table when set.
		CalibrationFile string `yaml:"calibration_file"`
	} `yaml:"scoring"`
	Store struct {
		Backend string `yaml:"backend" default:"sqlite"`
		Path    string `yaml:"path" default:"marketpulse.db"`
	} `yaml:"store"`
	Log struct {
		Backend string `yaml:"backend" default:"sqlite"`
	} `yaml:"log"`
	ClickHouse struct {
		Host        string        `yaml:"host" default:"localhost"`
		Port        int           `yaml:"port" default:"9000"`
		Database    string        `yaml:"database" default:"marketpulse"`
		User        string        `yaml:"user" default:"default"`
		Password    string        `yaml:"password"`
		UseHTTP     bool          `yaml:"use_http"`
		AsyncInsert bool          `yaml:"async_insert" default:"true"`
		DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout time.Duration `yaml:"read_timeout" default:"30s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"marketpulse"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		SignalsTopic string   `yaml:"signals_topic" default:"marketpulse.signals"`
		ErrorsTopic  string   `yaml:"errors_topic" default:"marketpulse.errors"`
		Compression  string   `yaml:"compression" default:"snappy"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			BatchTimeout time.Duration `yaml:"batch_timeout" default:"200ms"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Pipeline struct {
			BufferSize    int           `yaml:"buffer_size" default:"1024"`
			FlushInterval time.Duration `yaml:"flush_interval" default:"500ms"`
			MaxBatch      int           `yaml:"max_batch" default:"100"`
		} `yaml:"pipeline"`
		ErrorLogs struct {
			Enabled        bool          `yaml:"enabled"`
			FlushInterval  time.Duration `yaml:"flush_interval" default:"30s"`
			CountThreshold int           `yaml:"count_threshold" default:"100"`
		} `yaml:"error_logs"`
	} `yaml:"kafka"`
	Providers struct {
		BaseURL    string        `yaml:"base_url"`
		APIKey     string        `yaml:"api_key"`
		Timeout    time.Duration `yaml:"timeout" default:"10s"`
		MaxRetries int           `yaml:"max_retries" default:"2"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"250ms"`
		// VolatilityTTL caches the market-wide index reading across tickers.
		VolatilityTTL time.Duration `yaml:"volatility_ttl" default:"60s"`
		// RatePerSecond and Burst throttle each provider independently.
		RatePerSecond float64 `yaml:"rate_per_second" default:"5"`
		Burst         int     `yaml:"burst" default:"10"`
		Paths         struct {
			Valuation  string `yaml:"valuation" default:"/valuation/{ticker}"`
			Risk       string `yaml:"risk" default:"/options/{ticker}/risk"`
			Sentiment  string `yaml:"sentiment" default:"/sentiment/{ticker}"`
			Volatility string `yaml:"volatility" default:"/volatility/vix"`
		} `yaml:"paths"`
	} `yaml:"providers"`
	RateLimit struct {
		Enabled   bool   `yaml:"enabled" default:"true"`
		// Backend holds the quota counters and the shared volatility reading.
		Backend   string `yaml:"backend" default:"memory"`
		PerMinute int64  `yaml:"per_minute" default:"30"`
		PerHour   int64  `yaml:"per_hour" default:"200"`
	} `yaml:"ratelimit"`
	Websocket struct {
		Enabled      bool          `yaml:"enabled" default:"true"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
		SendBuffer   int           `yaml:"send_buffer" default:"32"`
	} `yaml:"websocket"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from the environment lookup.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("MARKETPULSE_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := getenv("STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := getenv("LOG_BACKEND"); v != "" {
		c.Log.Backend = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("PROVIDER_BASE_URL"); v != "" {
		c.Providers.BaseURL = v
	}
	if v := getenv("PROVIDER_API_KEY"); v != "" {
		c.Providers.APIKey = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Store.Backend {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite backend")
		}
	case "memory":
	default:
		return fmt.Errorf("store.backend must be 'sqlite' or 'memory', got '%s'", c.Store.Backend)
	}
	switch c.Log.Backend {
	case "sqlite":
		if c.Store.Backend != "sqlite" {
			return fmt.Errorf("log.backend 'sqlite' requires store.backend 'sqlite'")
		}
	case "clickhouse", "memory":
	default:
		return fmt.Errorf("log.backend must be 'sqlite', 'clickhouse' or 'memory', got '%s'", c.Log.Backend)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Kafka.ErrorLogs.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("kafka.error_logs requires kafka.enabled")
	}
	if c.Providers.BaseURL == "" {
		return fmt.Errorf("providers.base_url is required")
	}
	if c.Engine.MaxAge <= 0 {
		return fmt.Errorf("engine.max_age must be positive")
	}
	if c.Engine.BatchLimit <= 0 {
		return fmt.Errorf("engine.batch_limit must be positive")
	}
	switch c.RateLimit.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("ratelimit.backend must be 'memory' or 'redis', got '%s'", c.RateLimit.Backend)
	}
	if c.RateLimit.Enabled && (c.RateLimit.PerMinute <= 0 || c.RateLimit.PerHour <= 0) {
		return fmt.Errorf("ratelimit limits must be positive")
	}
	return nil
}
