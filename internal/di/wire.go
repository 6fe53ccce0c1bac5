//go:build wireinject
// +build wireinject

package di

import (
	"StockForecaster/pkg/config"
	"StockForecaster/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideSeriesCache,
		ProvidePriceArchive,

		// Repositories
		ProvidePredictionPublisher,
		ProvideArtifactStore,

		// Use cases
		ProvidePriceFetcher,
		ProvideRuntime,
		ProvidePredictor,

		// HTTP
		ProvidePredictHandler,
		ProvideLimiter,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
