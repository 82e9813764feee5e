//go:build wireinject
// +build wireinject

package di

import (
	"MarketDeck/pkg/config"
	"MarketDeck/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Session and outbound HTTP
		ProvideSessionManager,
		ProvideHTTPClient,
		ProvideTradingAPI,

		// Core engine
		ProvideStore,
		ProvideChartEngine,

		// Infrastructure sinks
		ProvideCache,
		ProvideClickHouseClient,
		ProvideArchive,
		ProvideNotifier,

		// Use cases
		ProvideDashboard,
		ProvideScheduler,

		// Surfaces
		ProvideHub,
		ProvideAPIHandler,

		// Application
		ProvideApp,
	)
	return &server.App{}, nil
}
