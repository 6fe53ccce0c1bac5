package service

import (
	"context"
	"time"

	"StockForecaster/internal/domain/models"
)

// SequenceModel maps a window of normalized closes to the next normalized close.
// Implementations must be safe for concurrent Predict calls.
type SequenceModel interface {
	Predict(window []float64) (float64, error)
	WindowSize() int
}

// Normalizer is a fitted, invertible single-column transform.
type Normalizer interface {
	Transform(values []float64) ([]float64, error)
	InverseTransform(values []float64) ([]float64, error)
}

// SeriesFetcher returns the daily closes of a symbol over [start, end].
type SeriesFetcher interface {
	Fetch(ctx context.Context, symbol string, start, end time.Time) (models.PriceSeries, error)
}
