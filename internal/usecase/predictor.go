package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"StockForecaster/internal/domain/models"
	domrepo "StockForecaster/internal/domain/repository"
	"StockForecaster/internal/domain/service"
	"StockForecaster/internal/services/dataset"
	applogger "StockForecaster/pkg/logger"
	"StockForecaster/pkg/metrics"
	xutil "StockForecaster/pkg/util"
)

type PredictorOption func(*Predictor)

// WithLookback sets the period used when no start date is given.
func WithLookback(p domrepo.Period) PredictorOption {
	return func(pr *Predictor) { pr.lookback = p }
}

// WithPredictionSinks archives and publishes successful predictions.
// Either may be nil.
func WithPredictionSinks(a domrepo.PriceArchive, pub domrepo.PredictionPublisher) PredictorOption {
	return func(pr *Predictor) {
		pr.archive = a
		pr.publisher = pub
	}
}

func WithPredictorLogger(l *applogger.Logger) PredictorOption {
	return func(pr *Predictor) { pr.l = l }
}

func WithPredictorMetrics(m domrepo.Metrics) PredictorOption {
	return func(pr *Predictor) { pr.metrics = m }
}

func WithPredictorClock(now func() time.Time) PredictorOption {
	return func(pr *Predictor) { pr.now = now }
}

// Predictor forecasts the next close of a symbol from its most recent window.
type Predictor struct {
	rt        *Runtime
	fetcher   service.SeriesFetcher
	lookback  domrepo.Period
	archive   domrepo.PriceArchive
	publisher domrepo.PredictionPublisher

	l       *applogger.Logger
	metrics domrepo.Metrics
	now     func() time.Time
}

func NewPredictor(rt *Runtime, fetcher service.SeriesFetcher, opts ...PredictorOption) *Predictor {
	p := &Predictor{
		rt:       rt,
		fetcher:  fetcher,
		lookback: domrepo.DefaultPeriod(),
		l:        applogger.Nop(),
		metrics:  metrics.Nop{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Predict returns the predicted next close. A zero end means today and a
// zero start means end minus the lookback period. Missing or short data is
// an OutcomeNoData outcome, not an error.
func (p *Predictor) Predict(ctx context.Context, symbol string, start, end time.Time) (models.PredictionOutcome, error) {
	model, scaler, err := p.rt.Components()
	if err != nil {
		p.metrics.RecordError("not_ready")
		return models.PredictionOutcome{}, err
	}

	began := time.Now()
	defer func() { p.metrics.RecordLatency("predict", time.Since(began).Seconds()) }()

	symbol = xutil.NormalizeSymbol(symbol)
	if end.IsZero() {
		end = xutil.TruncateDay(p.now())
	}
	if start.IsZero() {
		if start, err = p.lookback.Start(end); err != nil {
			return models.PredictionOutcome{}, err
		}
	}

	series, err := p.fetcher.Fetch(ctx, symbol, start, end)
	if err != nil {
		p.metrics.RecordError("fetch")
		return models.PredictionOutcome{}, fmt.Errorf("fetch %s: %w", symbol, err)
	}

	n := model.WindowSize()
	out := models.PredictionOutcome{Symbol: symbol, Window: n, Points: series.Len()}
	if series.Empty() {
		return p.noData(out, "no price data in the requested range"), nil
	}
	if series.Len() < n {
		return p.noData(out, fmt.Sprintf("need %d closes, got %d", n, series.Len())), nil
	}

	closes := series.Closes()
	scaled, err := scaler.Transform(closes)
	if err != nil {
		return models.PredictionOutcome{}, fmt.Errorf("normalize: %w", err)
	}
	window, err := dataset.LastWindow(scaled, n)
	if err != nil {
		if errors.Is(err, dataset.ErrInsufficientData) {
			return p.noData(out, err.Error()), nil
		}
		return models.PredictionOutcome{}, err
	}
	y, err := model.Predict(window)
	if err != nil {
		return models.PredictionOutcome{}, fmt.Errorf("model predict: %w", err)
	}
	inv, err := scaler.InverseTransform([]float64{y})
	if err != nil {
		return models.PredictionOutcome{}, fmt.Errorf("inverse transform: %w", err)
	}
	price := inv[0]
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return models.PredictionOutcome{}, fmt.Errorf("model produced non-finite price %v", price)
	}

	out.Status = models.OutcomeOK
	out.Price = price
	out.AsOf = series.LastDate()
	p.metrics.RecordPrediction(symbol, out.Status)
	p.metrics.RecordPredictedPrice(symbol, price)
	p.l.Info("prediction ok",
		applogger.String("symbol", symbol),
		applogger.String("source", series.Source),
		applogger.Float64("price", price),
		applogger.Date("as_of", out.AsOf),
		applogger.Duration("duration_ms", time.Since(began)),
	)

	p.emit(ctx, models.PredictionEvent{
		ID:             uuid.NewString(),
		Symbol:         symbol,
		PredictedPrice: price,
		LastClose:      closes[len(closes)-1],
		AsOf:           out.AsOf,
		Window:         n,
		Source:         series.Source,
		CreatedAt:      p.now().UTC(),
	})
	return out, nil
}

func (p *Predictor) noData(out models.PredictionOutcome, reason string) models.PredictionOutcome {
	out.Status = models.OutcomeNoData
	out.Reason = reason
	p.metrics.RecordPrediction(out.Symbol, out.Status)
	p.l.Warn("prediction has no data",
		applogger.String("symbol", out.Symbol),
		applogger.Int("points", out.Points),
		applogger.String("reason", reason),
	)
	return out
}

// emit writes the event to the side channels; failures never fail the request.
func (p *Predictor) emit(ctx context.Context, ev models.PredictionEvent) {
	if p.archive != nil {
		if err := p.archive.SavePrediction(ctx, ev); err != nil {
			p.metrics.RecordError("archive")
			p.l.Warn("archive prediction failed", applogger.String("id", ev.ID), applogger.Error(err))
		}
	}
	if p.publisher != nil {
		if err := p.publisher.PublishPrediction(ctx, ev); err != nil {
			p.metrics.RecordError("publish")
			p.l.Warn("publish prediction failed", applogger.String("id", ev.ID), applogger.Error(err))
		}
	}
}
