package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"StockForecaster/internal/domain/models"
	domrepo "StockForecaster/internal/domain/repository"
	"StockForecaster/internal/service/cache"
	applogger "StockForecaster/pkg/logger"
	"StockForecaster/pkg/metrics"
	xutil "StockForecaster/pkg/util"
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type FetcherOption func(*PriceFetcher)

// WithSleeper replaces the backoff sleep between rate-limited attempts.
func WithSleeper(s Sleeper) FetcherOption {
	return func(f *PriceFetcher) { f.sleep = s }
}

// WithSeriesCache caches non-empty results for ttl.
func WithSeriesCache(c cache.BytesCache, ttl time.Duration) FetcherOption {
	return func(f *PriceFetcher) {
		f.cache = c
		f.cacheTTL = ttl
	}
}

// WithPriceArchive stores every fetched series. Archive failures are logged only.
func WithPriceArchive(a domrepo.PriceArchive) FetcherOption {
	return func(f *PriceFetcher) { f.archive = a }
}

func WithFetcherLogger(l *applogger.Logger) FetcherOption {
	return func(f *PriceFetcher) { f.l = l }
}

func WithFetcherMetrics(m domrepo.Metrics) FetcherOption {
	return func(f *PriceFetcher) { f.metrics = m }
}

// WithClock sets the clock used to resolve lookback periods.
func WithClock(now func() time.Time) FetcherOption {
	return func(f *PriceFetcher) { f.now = now }
}

// PriceFetcher downloads daily closes from a primary provider, retrying on
// rate limits, and falls back to a secondary provider when the primary
// yields nothing.
type PriceFetcher struct {
	primary    domrepo.PriceProvider
	secondary  domrepo.PriceProvider
	maxRetries int
	delay      time.Duration
	sleep      Sleeper

	cache    cache.BytesCache
	cacheTTL time.Duration
	archive  domrepo.PriceArchive

	l       *applogger.Logger
	metrics domrepo.Metrics
	now     func() time.Time
}

func NewPriceFetcher(primary, secondary domrepo.PriceProvider, maxRetries int, delay time.Duration, opts ...FetcherOption) *PriceFetcher {
	if maxRetries < 1 {
		maxRetries = 1
	}
	f := &PriceFetcher{
		primary:    primary,
		secondary:  secondary,
		maxRetries: maxRetries,
		delay:      delay,
		sleep:      sleepCtx,
		l:          applogger.Nop(),
		metrics:    metrics.Nop{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchPeriod fetches the lookback period ending today.
func (f *PriceFetcher) FetchPeriod(ctx context.Context, symbol string, period domrepo.Period) (models.PriceSeries, error) {
	end := xutil.TruncateDay(f.now())
	start, err := period.Start(end)
	if err != nil {
		return models.PriceSeries{}, err
	}
	return f.Fetch(ctx, symbol, start, end)
}

// Fetch returns the daily closes of symbol over [start, end], ascending and
// without duplicate dates. An empty series with a nil error means neither
// provider had data, or start is not before end.
func (f *PriceFetcher) Fetch(ctx context.Context, symbol string, start, end time.Time) (models.PriceSeries, error) {
	symbol = xutil.NormalizeSymbol(symbol)
	start, end = xutil.TruncateDay(start), xutil.TruncateDay(end)
	series := models.PriceSeries{Symbol: symbol}

	if !start.Before(end) {
		f.l.Warn("start date is not before end date, returning empty series",
			applogger.String("symbol", symbol),
			applogger.Date("start", start),
			applogger.Date("end", end),
		)
		return series, nil
	}

	key := cache.SeriesKey(symbol, start, end)
	if cached, ok := f.fromCache(key); ok {
		return cached, nil
	}

	began := time.Now()
	defer func() { f.metrics.RecordLatency("fetch", time.Since(began).Seconds()) }()

	points, reason, err := f.fetchPrimary(ctx, symbol, start, end)
	if err != nil {
		return series, err
	}
	series.Source = f.primary.Name()

	if len(points) == 0 {
		f.metrics.RecordFallback(reason)
		f.l.Info("falling back to secondary provider",
			applogger.String("symbol", symbol),
			applogger.String("provider", f.secondary.Name()),
			applogger.String("reason", reason),
		)
		points, err = f.secondary.DailyCloses(ctx, symbol, start, end)
		if err != nil {
			f.metrics.RecordProviderRequest(f.secondary.Name(), resultOf(err))
			if errors.Is(err, domrepo.ErrMissingCredential) || ctx.Err() != nil {
				return series, fmt.Errorf("%s: %w", f.secondary.Name(), err)
			}
			return series, fmt.Errorf("%w: %s: %w", domrepo.ErrProviderUnavailable, f.secondary.Name(), err)
		}
		f.metrics.RecordProviderRequest(f.secondary.Name(), resultOf(nil, points...))
		series.Source = f.secondary.Name()
	}

	series.Points = models.NormalizePoints(points, start, end)
	if series.Empty() {
		f.l.Warn("no data from any provider",
			applogger.String("symbol", symbol),
			applogger.Date("start", start),
			applogger.Date("end", end),
		)
		return series, nil
	}

	f.l.Info("price series fetched",
		applogger.String("symbol", symbol),
		applogger.String("source", series.Source),
		applogger.Int("points", series.Len()),
		applogger.Duration("duration_ms", time.Since(began)),
	)
	f.toCache(key, series)
	if f.archive != nil {
		if err := f.archive.SaveSeries(ctx, series); err != nil {
			f.metrics.RecordError("archive")
			f.l.Warn("archive series failed", applogger.String("symbol", symbol), applogger.Error(err))
		}
	}
	return series, nil
}

// fetchPrimary returns the primary points, or no points and the reason the
// primary was abandoned. Only a done context is returned as an error.
func (f *PriceFetcher) fetchPrimary(ctx context.Context, symbol string, start, end time.Time) ([]models.PricePoint, string, error) {
	name := f.primary.Name()
	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		points, err := f.primary.DailyCloses(ctx, symbol, start, end)
		f.metrics.RecordProviderRequest(name, resultOf(err, points...))

		switch {
		case err == nil && len(points) > 0:
			return points, "", nil
		case err == nil:
			f.l.Warn("primary provider returned no data",
				applogger.String("provider", name),
				applogger.String("symbol", symbol),
			)
			return nil, "empty", nil
		case ctx.Err() != nil:
			return nil, "", ctx.Err()
		case errors.Is(err, domrepo.ErrRateLimited):
			if attempt == f.maxRetries {
				f.l.Warn("primary provider still rate limited, giving up",
					applogger.String("provider", name),
					applogger.String("symbol", symbol),
					applogger.Int("attempts", attempt),
				)
				return nil, "rate_limited", nil
			}
			f.metrics.RecordRateLimitRetry(name)
			f.l.Warn("primary provider rate limited, retrying",
				applogger.String("provider", name),
				applogger.String("symbol", symbol),
				applogger.Int("attempt", attempt),
				applogger.Int("max_retries", f.maxRetries),
				applogger.Duration("delay_ms", f.delay),
			)
			if err := f.sleep(ctx, f.delay); err != nil {
				return nil, "", err
			}
		default:
			f.l.Warn("primary provider failed",
				applogger.String("provider", name),
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
			return nil, "error", nil
		}
	}
	return nil, "rate_limited", nil
}

func (f *PriceFetcher) fromCache(key string) (models.PriceSeries, bool) {
	if f.cache == nil {
		return models.PriceSeries{}, false
	}
	b, ok, err := f.cache.GetBytes(key)
	if err != nil {
		f.l.Warn("series cache read failed", applogger.String("key", key), applogger.Error(err))
		return models.PriceSeries{}, false
	}
	if !ok {
		return models.PriceSeries{}, false
	}
	var s models.PriceSeries
	if err := json.Unmarshal(b, &s); err != nil || s.Empty() {
		return models.PriceSeries{}, false
	}
	f.l.Debug("series cache hit", applogger.String("key", key))
	return s, true
}

func (f *PriceFetcher) toCache(key string, s models.PriceSeries) {
	if f.cache == nil || f.cacheTTL <= 0 {
		return
	}
	b, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := f.cache.SetBytes(key, b, f.cacheTTL); err != nil {
		f.l.Warn("series cache write failed", applogger.String("key", key), applogger.Error(err))
	}
}

func resultOf(err error, points ...models.PricePoint) string {
	switch {
	case errors.Is(err, domrepo.ErrRateLimited):
		return "rate_limited"
	case err != nil:
		return "error"
	case len(points) == 0:
		return "empty"
	default:
		return "ok"
	}
}
