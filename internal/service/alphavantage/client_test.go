package alphavantage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	drepo "StockForecaster/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dailyBody = `{
  "Meta Data": {"1. Information": "Daily Prices", "2. Symbol": "IBM"},
  "Time Series (Daily)": {
    "2024-01-08": {"1. open": "1", "4. close": "161.1400"},
    "2024-01-05": {"1. open": "1", "4. close": "159.1600"},
    "2024-01-04": {"1. open": "1", "4. close": "158.1900"},
    "2024-01-03": {"1. open": "1", "4. close": "157.9000"},
    "2024-01-02": {"1. open": "1", "4. close": "158.5300"}
  }
}`

func date(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestDailyClosesFiltersAndSorts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/query", r.URL.Path)
		assert.Equal(t, "TIME_SERIES_DAILY", q.Get("function"))
		assert.Equal(t, "full", q.Get("outputsize"))
		assert.Equal(t, "IBM", q.Get("symbol"))
		assert.Equal(t, "secret", q.Get("apikey"))
		_, _ = w.Write([]byte(dailyBody))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", time.Second)
	points, err := c.DailyCloses(context.Background(), "IBM", date("2024-01-03"), date("2024-01-05"))
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, date("2024-01-03"), points[0].Date)
	assert.Equal(t, date("2024-01-05"), points[2].Date)
	assert.InDelta(t, 157.90, points[0].Close, 1e-9)
	assert.InDelta(t, 159.16, points[2].Close, 1e-9)
}

func TestDailyClosesMissingKey(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	_, err := New(srv.URL, "", time.Second).DailyCloses(context.Background(), "IBM", date("2024-01-01"), date("2024-02-01"))
	require.Error(t, err)
	assert.ErrorIs(t, err, drepo.ErrMissingCredential)
	assert.False(t, called)
}

func TestDailyClosesThrottleNote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "k", time.Second).DailyCloses(context.Background(), "IBM", date("2024-01-01"), date("2024-02-01"))
	assert.ErrorIs(t, err, drepo.ErrRateLimited)
}

func TestDailyClosesUnknownSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Error Message": "Invalid API call."}`))
	}))
	defer srv.Close()

	points, err := New(srv.URL, "k", time.Second).DailyCloses(context.Background(), "ZZZZ", date("2024-01-01"), date("2024-02-01"))
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestDailyClosesBadPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Time Series (Daily)": {"2024-01-02": {"4. close": "n/a"}}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "k", time.Second).DailyCloses(context.Background(), "IBM", date("2024-01-01"), date("2024-02-01"))
	require.Error(t, err)
}
