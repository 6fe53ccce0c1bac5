package repository

import (
	"context"
	"time"

	"StockForecaster/internal/domain/models"
)

// PriceProvider downloads daily closes for a symbol over [start, end].
// Implementations return ErrRateLimited when the upstream throttles and
// ErrMissingCredential when they cannot authenticate at all.
type PriceProvider interface {
	Name() string
	DailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]models.PricePoint, error)
}

// PriceArchive stores fetched series and predictions for later analysis.
type PriceArchive interface {
	Init(ctx context.Context) error
	SaveSeries(ctx context.Context, series models.PriceSeries) error
	SavePrediction(ctx context.Context, ev models.PredictionEvent) error
	Health(ctx context.Context) error
	Close() error
}

// PredictionPublisher emits prediction events to downstream consumers.
type PredictionPublisher interface {
	PublishPrediction(ctx context.Context, ev models.PredictionEvent) error
	Close() error
}

type Metrics interface {
	RecordProviderRequest(provider, result string)
	RecordRateLimitRetry(provider string)
	RecordFallback(reason string)
	RecordPrediction(symbol string, outcome models.OutcomeStatus)
	RecordPredictedPrice(symbol string, price float64)
	RecordTraining(symbol string, report models.TrainingReport)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
