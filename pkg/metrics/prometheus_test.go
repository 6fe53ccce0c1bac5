package metrics

import (
	"testing"
	"time"

	"StockForecaster/internal/domain/models"
	drepo "StockForecaster/internal/domain/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

var (
	_ drepo.Metrics = (*Recorder)(nil)
	_ drepo.Metrics = Nop{}
)

func TestRecorder(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.RecordProviderRequest("yahoo", "rate_limited")
	r.RecordProviderRequest("yahoo", "rate_limited")
	r.RecordRateLimitRetry("yahoo")
	r.RecordFallback("primary_empty")
	r.RecordPrediction("AAPL", models.OutcomeOK)
	r.RecordPredictedPrice("AAPL", 187.25)
	r.RecordTraining("AAPL", models.TrainingReport{
		BestLoss: 0.002,
		Train:    models.ErrorMetrics{RMSE: 1.5},
		Test:     models.ErrorMetrics{RMSE: 3.5},
		Duration: time.Second,
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(r.providerRequests.WithLabelValues("yahoo", "rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rateLimitRetries.WithLabelValues("yahoo")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fallbacks.WithLabelValues("primary_empty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.predictions.WithLabelValues("AAPL", "ok")))
	assert.Equal(t, 187.25, testutil.ToFloat64(r.predictedPrice.WithLabelValues("AAPL")))
	assert.Equal(t, 3.5, testutil.ToFloat64(r.trainingRMSE.WithLabelValues("AAPL", "test")))
}
