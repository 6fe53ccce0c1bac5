package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockForecaster/internal/domain/models"
	domrepo "StockForecaster/internal/domain/repository"
	"StockForecaster/internal/service/cache"
)

type providerResult struct {
	points []models.PricePoint
	err    error
}

type fakeProvider struct {
	name    string
	mu      sync.Mutex
	results []providerResult
	calls   int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) DailyCloses(_ context.Context, _ string, _, _ time.Time) ([]models.PricePoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.results) == 0 {
		return nil, nil
	}
	r := p.results[0]
	if len(p.results) > 1 {
		p.results = p.results[1:]
	}
	return r.points, r.err
}

func (p *fakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func points(start time.Time, closes ...float64) []models.PricePoint {
	out := make([]models.PricePoint, len(closes))
	for i, c := range closes {
		out[i] = models.PricePoint{Date: start.AddDate(0, 0, i), Close: c}
	}
	return out
}

type sleepCounter struct {
	mu    sync.Mutex
	count int
	total time.Duration
}

func (s *sleepCounter) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	s.total += d
	return nil
}

func newTestFetcher(primary, secondary *fakeProvider, sc *sleepCounter, opts ...FetcherOption) *PriceFetcher {
	opts = append([]FetcherOption{WithSleeper(sc.sleep)}, opts...)
	return NewPriceFetcher(primary, secondary, 3, time.Minute, opts...)
}

func TestFetchStartNotBeforeEnd(t *testing.T) {
	primary := &fakeProvider{name: "yahoo"}
	secondary := &fakeProvider{name: "alpha_vantage"}
	f := newTestFetcher(primary, secondary, &sleepCounter{})

	for _, tc := range []struct{ start, end time.Time }{
		{day(2024, 1, 10), day(2024, 1, 10)},
		{day(2024, 1, 11), day(2024, 1, 10)},
	} {
		s, err := f.Fetch(context.Background(), "AAPL", tc.start, tc.end)
		require.NoError(t, err)
		assert.True(t, s.Empty())
	}
	assert.Zero(t, primary.Calls())
	assert.Zero(t, secondary.Calls())
}

func TestFetchRateLimitedTwiceThenSuccess(t *testing.T) {
	primary := &fakeProvider{name: "yahoo", results: []providerResult{
		{err: domrepo.ErrRateLimited},
		{err: domrepo.ErrRateLimited},
		{points: points(day(2024, 1, 2), 10, 11, 12)},
	}}
	secondary := &fakeProvider{name: "alpha_vantage"}
	sc := &sleepCounter{}
	f := newTestFetcher(primary, secondary, sc)

	s, err := f.Fetch(context.Background(), "aapl", day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, "AAPL", s.Symbol)
	assert.Equal(t, "yahoo", s.Source)
	assert.Equal(t, 2, sc.count)
	assert.Equal(t, 2*time.Minute, sc.total)
	assert.Equal(t, 3, primary.Calls())
	assert.Zero(t, secondary.Calls())
}

func TestFetchRateLimitedExhaustedFallsBack(t *testing.T) {
	primary := &fakeProvider{name: "yahoo", results: []providerResult{{err: domrepo.ErrRateLimited}}}
	secondary := &fakeProvider{name: "alpha_vantage", results: []providerResult{{points: points(day(2024, 1, 2), 5, 6)}}}
	sc := &sleepCounter{}
	f := newTestFetcher(primary, secondary, sc)

	s, err := f.Fetch(context.Background(), "AAPL", day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, "alpha_vantage", s.Source)
	assert.Equal(t, 3, primary.Calls())
	assert.Equal(t, 2, sc.count, "no sleep after the last attempt")
	assert.Equal(t, 1, secondary.Calls())
}

func TestFetchPrimaryErrorAbandonsImmediately(t *testing.T) {
	primary := &fakeProvider{name: "yahoo", results: []providerResult{{err: errors.New("boom")}}}
	secondary := &fakeProvider{name: "alpha_vantage", results: []providerResult{{points: points(day(2024, 1, 2), 5)}}}
	sc := &sleepCounter{}
	f := newTestFetcher(primary, secondary, sc)

	s, err := f.Fetch(context.Background(), "AAPL", day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, primary.Calls())
	assert.Zero(t, sc.count)
}

func TestFetchSecondaryFilteredAndSorted(t *testing.T) {
	primary := &fakeProvider{name: "yahoo"}
	secondary := &fakeProvider{name: "alpha_vantage", results: []providerResult{{points: []models.PricePoint{
		{Date: day(2024, 1, 12), Close: 3},
		{Date: day(2023, 12, 29), Close: 0},
		{Date: day(2024, 1, 10), Close: 1},
		{Date: day(2024, 1, 11), Close: 2},
		{Date: day(2024, 2, 1), Close: 9},
		{Date: day(2024, 1, 11), Close: 2},
	}}}}
	f := newTestFetcher(primary, secondary, &sleepCounter{})

	s, err := f.Fetch(context.Background(), "AAPL", day(2024, 1, 10), day(2024, 1, 12))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, s.Closes())
	assert.Equal(t, day(2024, 1, 12), s.LastDate(), "end is inclusive")
}

func TestFetchBothEmpty(t *testing.T) {
	f := newTestFetcher(&fakeProvider{name: "yahoo"}, &fakeProvider{name: "alpha_vantage"}, &sleepCounter{})
	s, err := f.Fetch(context.Background(), "AAPL", day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	assert.True(t, s.Empty())
}

func TestFetchMissingCredential(t *testing.T) {
	secondary := &fakeProvider{name: "alpha_vantage", results: []providerResult{{err: domrepo.ErrMissingCredential}}}
	f := newTestFetcher(&fakeProvider{name: "yahoo"}, secondary, &sleepCounter{})

	_, err := f.Fetch(context.Background(), "AAPL", day(2024, 1, 1), day(2024, 1, 31))
	assert.ErrorIs(t, err, domrepo.ErrMissingCredential)
	assert.NotErrorIs(t, err, domrepo.ErrProviderUnavailable)
}

func TestFetchSecondaryFailure(t *testing.T) {
	secondary := &fakeProvider{name: "alpha_vantage", results: []providerResult{{err: domrepo.ErrRateLimited}}}
	f := newTestFetcher(&fakeProvider{name: "yahoo"}, secondary, &sleepCounter{})

	_, err := f.Fetch(context.Background(), "AAPL", day(2024, 1, 1), day(2024, 1, 31))
	assert.ErrorIs(t, err, domrepo.ErrProviderUnavailable)
	assert.ErrorIs(t, err, domrepo.ErrRateLimited)
}

func TestFetchSleepHonoursContext(t *testing.T) {
	primary := &fakeProvider{name: "yahoo", results: []providerResult{{err: domrepo.ErrRateLimited}}}
	secondary := &fakeProvider{name: "alpha_vantage"}
	f := NewPriceFetcher(primary, secondary, 3, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.Fetch(ctx, "AAPL", day(2024, 1, 1), day(2024, 1, 31))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, secondary.Calls())
}

func TestFetchUsesSeriesCache(t *testing.T) {
	primary := &fakeProvider{name: "yahoo", results: []providerResult{{points: points(day(2024, 1, 2), 10, 11)}}}
	c := cache.NewTTLCache()
	f := newTestFetcher(primary, &fakeProvider{name: "alpha_vantage"}, &sleepCounter{}, WithSeriesCache(c, time.Minute))

	first, err := f.Fetch(context.Background(), "AAPL", day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	second, err := f.Fetch(context.Background(), "AAPL", day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)

	assert.Equal(t, 1, primary.Calls())
	assert.Equal(t, first.Closes(), second.Closes())
	assert.Equal(t, 1, c.Len())
}

func TestFetchPeriod(t *testing.T) {
	var gotStart, gotEnd time.Time
	primary := &recordingProvider{fn: func(start, end time.Time) {
		gotStart, gotEnd = start, end
	}}
	f := NewPriceFetcher(primary, &fakeProvider{name: "alpha_vantage"}, 1, 0,
		WithClock(func() time.Time { return time.Date(2024, 6, 30, 15, 4, 0, 0, time.UTC) }))

	_, err := f.FetchPeriod(context.Background(), "AAPL", "60d")
	require.NoError(t, err)
	assert.Equal(t, day(2024, 6, 30), gotEnd)
	assert.Equal(t, day(2024, 5, 1), gotStart)

	_, err = f.FetchPeriod(context.Background(), "AAPL", "bogus")
	assert.Error(t, err)
}

type recordingProvider struct {
	fn func(start, end time.Time)
}

func (p *recordingProvider) Name() string { return "yahoo" }

func (p *recordingProvider) DailyCloses(_ context.Context, _ string, start, end time.Time) ([]models.PricePoint, error) {
	p.fn(start, end)
	return nil, nil
}
