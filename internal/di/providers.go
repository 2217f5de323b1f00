package di

import (
	"context"
	"fmt"
	"time"

	"MarketPulse/internal/domain/repository"
	"MarketPulse/internal/handler/api"
	"MarketPulse/internal/handler/ws"
	mid "MarketPulse/internal/middleware"
	internalrepo "MarketPulse/internal/repository"
	providermetrics "MarketPulse/internal/service/metrics"
	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/internal/services/providers"
	"MarketPulse/internal/services/scoring"
	"MarketPulse/internal/usecase"
	"MarketPulse/pkg/cache"
	pkgch "MarketPulse/pkg/clickhouse"
	"MarketPulse/pkg/config"
	xhttp "MarketPulse/pkg/http"
	pkgkafka "MarketPulse/pkg/kafka"
	applogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/metrics"
	"MarketPulse/pkg/server"
	pkgsqlite "MarketPulse/pkg/sqlite"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the Prometheus registry served on the metrics path.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	providermetrics.Register(reg)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config, reg *prometheus.Registry) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New(reg)
}

// ProvideSQLiteClient opens the SQLite database when any store uses it.
func ProvideSQLiteClient(cfg *config.Config) (*pkgsqlite.Client, error) {
	if cfg.Store.Backend != "sqlite" {
		return nil, nil
	}
	client, err := pkgsqlite.NewClient(
		pkgsqlite.WithPath(cfg.Store.Path),
		pkgsqlite.WithWAL(true),
		pkgsqlite.WithBusyTimeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.SQLiteSchema); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return client, nil
}

// ProvideClickHouseClient creates a ClickHouse client when it backs the computation log.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Log.Backend != "clickhouse" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		// Connect to the server default database; the log schema creates and qualifies its own.
		pkgch.WithDatabase("default"),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(10, 5, 0),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.ClickHouseLogSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideResultCache selects the result cache backend.
func ProvideResultCache(cfg *config.Config, sq *pkgsqlite.Client) repository.ResultCache {
	if sq != nil {
		return internalrepo.NewSQLiteStore(sq.DB())
	}
	return internalrepo.NewMemoryStore()
}

// ProvideComputationLog selects the computation log backend.
func ProvideComputationLog(cfg *config.Config, sq *pkgsqlite.Client, ch *pkgch.Client, l *applogger.Logger) repository.ComputationLog {
	switch {
	case cfg.Log.Backend == "clickhouse" && ch != nil:
		store := internalrepo.NewCHComputationLog(ch, cfg.ClickHouse.Database)
		store.SetLogger(l)
		return store
	case cfg.Log.Backend == "sqlite" && sq != nil:
		return internalrepo.NewSQLiteStore(sq.DB())
	default:
		return internalrepo.NewMemoryStore()
	}
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithMetricsRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideCacheService backs rate-limit counters and the shared volatility reading.
func ProvideCacheService(cfg *config.Config) (cache.Service, error) {
	if cfg.RateLimit.Backend == "redis" {
		rc, err := cache.NewRedisCache(
			cache.WithRedisAddr(cfg.Redis.Addr),
			cache.WithRedisPassword(cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
			cache.WithRedisPrefix(cfg.Redis.Prefix),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return rc, nil
	}
	return cache.NewMemoryCache(
		cache.WithMemoryMaxSize(10000),
		cache.WithMemoryCleanup(time.Minute),
	), nil
}

// ProvideProviderLimiter throttles outbound provider calls.
func ProvideProviderLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Providers.RatePerSecond, cfg.Providers.Burst)
}

// ProvideWindowLimiter enforces the per-client API quota.
func ProvideWindowLimiter(cfg *config.Config, store cache.Service) *ratelimit.WindowLimiter {
	return ratelimit.NewWindowLimiter(store, ratelimit.PerMinuteHour(cfg.RateLimit.PerMinute, cfg.RateLimit.PerHour)...)
}

// ProvideSignalProviders builds the four upstream adapters over one HTTP base.
func ProvideSignalProviders(cfg *config.Config, base *providers.HTTPBase, store cache.Service) usecase.Providers {
	return usecase.Providers{
		Valuation:  providers.NewHTTPValuationProvider(cfg, base),
		Risk:       providers.NewHTTPRiskProvider(cfg, base),
		Sentiment:  providers.NewHTTPSentimentProvider(cfg, base),
		Volatility: providers.NewHTTPVolatilityProvider(cfg, base, store),
	}
}

// ProvideScoringPipeline loads the calibration table, falling back to the built-in constants.
func ProvideScoringPipeline(cfg *config.Config) (*scoring.Pipeline, error) {
	cal := scoring.DefaultCalibration()
	if path := cfg.Scoring.CalibrationFile; path != "" {
		var err error
		if cal, err = scoring.LoadCalibration(path); err != nil {
			return nil, err
		}
	}
	p, err := scoring.NewPipeline(cal)
	if err != nil {
		return nil, fmt.Errorf("scoring pipeline: %w", err)
	}
	return p, nil
}

// ProvideHub creates the websocket hub, or nil when websockets are disabled.
func ProvideHub(cfg *config.Config, l *applogger.Logger) *ws.Hub {
	if !cfg.Websocket.Enabled {
		return nil
	}
	return ws.NewHub(cfg.Websocket.WriteTimeout, cfg.Websocket.SendBuffer, l)
}

// ProvideEventPipeline fans live results out to Kafka and websocket subscribers.
func ProvideEventPipeline(
	cfg *config.Config,
	m repository.Metrics,
	l *applogger.Logger,
	producer *pkgkafka.Producer,
	hub *ws.Hub,
) *mid.EventPipeline {
	opts := []mid.PipelineOption{
		mid.WithBufferSize(cfg.Kafka.Pipeline.BufferSize),
		mid.WithBatch(cfg.Kafka.Pipeline.MaxBatch, cfg.Kafka.Pipeline.FlushInterval),
	}
	if producer != nil {
		opts = append(opts, mid.WithSink("kafka", internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.SignalsTopic)))
	}
	if hub != nil {
		opts = append(opts, mid.WithSink("websocket", hub))
	}
	return mid.NewEventPipeline(m, l, opts...)
}

// ProvideSignalEngine creates the signal engine use case.
func ProvideSignalEngine(
	cfg *config.Config,
	p *scoring.Pipeline,
	ps usecase.Providers,
	rc repository.ResultCache,
	cl repository.ComputationLog,
	m repository.Metrics,
	l *applogger.Logger,
	pipeline *mid.EventPipeline,
) *usecase.SignalEngine {
	return usecase.NewSignalEngine(p, ps, rc, cl, m, l,
		usecase.WithEngineConfig(usecase.EngineConfig{
			MaxAge:         cfg.Engine.MaxAge,
			CoalesceMisses: cfg.Engine.CoalesceMisses,
			ComputeTimeout: cfg.Engine.ComputeTimeout,
			BatchLimit:     cfg.Engine.BatchLimit,
		}),
		usecase.WithPublisher(pipeline),
	)
}

var _ api.SignalService = (*usecase.SignalEngine)(nil)

// ProvideSignalsHandler exposes the engine over HTTP.
func ProvideSignalsHandler(l *applogger.Logger, engine *usecase.SignalEngine) *api.SignalsEchoHandler {
	return api.NewSignalsEchoHandler(l, engine)
}

// ProvideHTTPServer assembles the echo server with metrics, rate limiting and routes.
func ProvideHTTPServer(
	cfg *config.Config,
	l *applogger.Logger,
	reg *prometheus.Registry,
	signals *api.SignalsEchoHandler,
	hub *ws.Hub,
	wl *ratelimit.WindowLimiter,
) *xhttp.Server {
	routes := xhttp.Handlers{signals}
	if hub != nil {
		routes = append(routes, hub)
	}

	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(true, cfg.Server.AllowedOrigins...),
		xhttp.WithLogger(l),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(reg, cfg.Metrics.Path))
	} else {
		opts = append(opts, xhttp.WithMetrics(nil, ""))
	}
	if cfg.RateLimit.Enabled {
		opts = append(opts, xhttp.WithMiddleware(mid.RateLimit(wl, l, "/health", cfg.Metrics.Path)))
	}
	return xhttp.NewServer(routes, opts...)
}

// ProvideApp creates the application server and hands it every resource to close.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	pipeline *mid.EventPipeline,
	hub *ws.Hub,
	producer *pkgkafka.Producer,
	store cache.Service,
	rc repository.ResultCache,
	cl repository.ComputationLog,
	sq *pkgsqlite.Client,
	ch *pkgch.Client,
) *server.App {
	// Close order is the reverse of this list: hub first, logger collector and producer last.
	var res []server.Resource
	if producer != nil {
		res = append(res, server.Resource{Name: "kafka producer", Close: producer.Close})
		if cfg.Kafka.ErrorLogs.Enabled {
			l.AddCollector(&applogger.CollectionConfig{
				TimeInterval:   cfg.Kafka.ErrorLogs.FlushInterval,
				CountThreshold: cfg.Kafka.ErrorLogs.CountThreshold,
				Topic:          cfg.Kafka.ErrorsTopic,
				Publisher:      producer,
			})
			res = append(res, server.Resource{Name: "log collector", Close: func() error {
				l.RemoveCollector()
				return nil
			}})
		}
	}
	if sq != nil {
		res = append(res, server.Resource{Name: "sqlite", Close: sq.Close})
	}
	if ch != nil {
		res = append(res, server.Resource{Name: "clickhouse", Close: ch.Close})
	}
	res = append(res,
		server.Resource{Name: "cache service", Close: store.Close},
		server.Resource{Name: "result cache", Close: rc.Close},
		server.Resource{Name: "computation log", Close: cl.Close},
	)
	if hub != nil {
		res = append(res, server.Resource{Name: "websocket hub", Close: hub.Close})
	}
	return server.New(cfg, l, srv, pipeline, res...)
}
