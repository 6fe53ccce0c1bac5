package metrics

import (
	"StockForecaster/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	providerRequests *prometheus.CounterVec
	rateLimitRetries *prometheus.CounterVec
	fallbacks        *prometheus.CounterVec
	predictions      *prometheus.CounterVec
	predictedPrice   *prometheus.GaugeVec
	trainingLoss     *prometheus.GaugeVec
	trainingRMSE     *prometheus.GaugeVec
	errorsTotal      *prometheus.CounterVec
	latency          *prometheus.HistogramVec
}

// New creates a Prometheus metrics recorder on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the recorder's collectors on reg. Tests pass a
// fresh prometheus.NewRegistry() to avoid duplicate registration.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		providerRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecaster_provider_requests_total",
				Help: "Price provider calls by result (ok, empty, rate_limited, error)",
			},
			[]string{"provider", "result"},
		),
		rateLimitRetries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecaster_provider_rate_limit_retries_total",
				Help: "Backoff sleeps taken after a provider rate-limit response",
			},
			[]string{"provider"},
		),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecaster_provider_fallbacks_total",
				Help: "Fallbacks from the primary to the secondary provider",
			},
			[]string{"reason"},
		),
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecaster_predictions_total",
				Help: "Prediction requests by outcome",
			},
			[]string{"symbol", "outcome"},
		),
		predictedPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "forecaster_last_predicted_price",
				Help: "Last predicted next close for a symbol",
			},
			[]string{"symbol"},
		),
		trainingLoss: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "forecaster_training_best_loss",
				Help: "Best normalized validation loss of the last training run",
			},
			[]string{"symbol"},
		),
		trainingRMSE: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "forecaster_training_rmse",
				Help: "RMSE in price units of the last training run",
			},
			[]string{"symbol", "split"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecaster_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forecaster_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 180, 600},
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordProviderRequest(provider, result string) {
	r.providerRequests.WithLabelValues(provider, result).Inc()
}

func (r *Recorder) RecordRateLimitRetry(provider string) {
	r.rateLimitRetries.WithLabelValues(provider).Inc()
}

func (r *Recorder) RecordFallback(reason string) {
	r.fallbacks.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordPrediction(symbol string, outcome models.OutcomeStatus) {
	r.predictions.WithLabelValues(symbol, string(outcome)).Inc()
}

func (r *Recorder) RecordPredictedPrice(symbol string, price float64) {
	r.predictedPrice.WithLabelValues(symbol).Set(price)
}

func (r *Recorder) RecordTraining(symbol string, report models.TrainingReport) {
	r.trainingLoss.WithLabelValues(symbol).Set(report.BestLoss)
	r.trainingRMSE.WithLabelValues(symbol, "train").Set(report.Train.RMSE)
	r.trainingRMSE.WithLabelValues(symbol, "test").Set(report.Test.RMSE)
	r.latency.WithLabelValues("train").Observe(report.Duration.Seconds())
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards all observations.
type Nop struct{}

func (Nop) RecordProviderRequest(string, string)          {}
func (Nop) RecordRateLimitRetry(string)                   {}
func (Nop) RecordFallback(string)                         {}
func (Nop) RecordPrediction(string, models.OutcomeStatus) {}
func (Nop) RecordPredictedPrice(string, float64)          {}
func (Nop) RecordTraining(string, models.TrainingReport)  {}
func (Nop) RecordError(string)                            {}
func (Nop) RecordLatency(string, float64)                 {}
