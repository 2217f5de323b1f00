//go:build wireinject
// +build wireinject

package di

import (
	"MarketPulse/internal/services/providers"
	"MarketPulse/pkg/config"
	"MarketPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Infrastructure clients
		ProvideSQLiteClient,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideCacheService,

		// Repositories
		ProvideResultCache,
		ProvideComputationLog,

		// Upstream providers
		ProvideProviderLimiter,
		providers.NewHTTPBase,
		ProvideSignalProviders,

		// Use cases and fan-out
		ProvideScoringPipeline,
		ProvideHub,
		ProvideEventPipeline,
		ProvideSignalEngine,

		// HTTP
		ProvideWindowLimiter,
		ProvideSignalsHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
