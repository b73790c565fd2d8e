//go:build wireinject
// +build wireinject

package di

import (
	analytics "TradeLens/internal/services/analytics"
	"TradeLens/pkg/config"
	"TradeLens/pkg/server"

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
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideStateCache,
		ProvideRateLimiter,

		// Repositories
		ProvideStateStore,
		ProvideCandleStore,
		ProvideCandleSource,
		ProvideMarketStream,
		ProvideJournalSink,

		// Analytics service clients
		analytics.NewContextClient,
		analytics.NewEphemeralClient,
		analytics.NewBehaviorClient,
		analytics.NewJournalClient,
		analytics.NewEnrichmentClient,

		// Use cases
		ProvideOrchestrator,
		ProvideAnalysisManager,
		ProvideCooldownMachine,
		ProvideJournalBuffer,
		ProvidePageBridge,
		ProvideObserver,
		ProvideTickPump,
		ProvideCompanion,
		ProvideDispatcher,
		ProvideCandlesUseCase,

		// Application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
