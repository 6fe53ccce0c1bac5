package alphavantage

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"StockForecaster/internal/domain/models"
	drepo "StockForecaster/internal/domain/repository"
	xhttp "StockForecaster/pkg/http"
	xutil "StockForecaster/pkg/util"

	"github.com/shopspring/decimal"
)

const (
	DefaultBaseURL = "https://www.alphavantage.co"

	fieldClose = "4. close"
)

// Client implements a PriceProvider backed by Alpha Vantage TIME_SERIES_DAILY.
type Client struct {
	baseURL string
	apiKey  string
	http    *xhttp.Client
}

// New creates an Alpha Vantage PriceProvider. An empty apiKey is accepted
// here and reported as ErrMissingCredential on first use.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

var _ drepo.PriceProvider = (*Client)(nil)

func (c *Client) Name() string { return "alpha_vantage" }

type dailyResponse struct {
	MetaData     map[string]string            `json:"Meta Data"`
	TimeSeries   map[string]map[string]string `json:"Time Series (Daily)"`
	ErrorMessage string                       `json:"Error Message"`
	Note         string                       `json:"Note"`
	Information  string                       `json:"Information"`
}

// DailyCloses downloads the full daily history and returns the closes that
// fall in [start, end], ascending.
func (c *Client) DailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]models.PricePoint, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("alpha vantage: ALPHA_KEY not configured: %w", drepo.ErrMissingCredential)
	}

	var resp dailyResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/query",
		QueryParams: map[string][]string{
			"function":   {"TIME_SERIES_DAILY"},
			"symbol":     {symbol},
			"outputsize": {"full"},
			"datatype":   {"json"},
			"apikey":     {c.apiKey},
		},
	}, &resp)
	if err != nil {
		if xhttp.StatusCode(err) == http.StatusTooManyRequests {
			return nil, fmt.Errorf("alpha vantage %s: %w", symbol, drepo.ErrRateLimited)
		}
		return nil, fmt.Errorf("alpha vantage %s: %w", symbol, err)
	}

	// throttling and quota messages arrive as 200 with a Note/Information field
	if resp.TimeSeries == nil {
		if msg := firstNonEmpty(resp.Note, resp.Information); msg != "" {
			return nil, fmt.Errorf("alpha vantage %s: %s: %w", symbol, msg, drepo.ErrRateLimited)
		}
		// an "Error Message" is how unknown symbols are reported
		return nil, nil
	}

	return parseSeries(resp.TimeSeries, start, end)
}

func parseSeries(series map[string]map[string]string, start, end time.Time) ([]models.PricePoint, error) {
	start = xutil.TruncateDay(start)
	end = xutil.TruncateDay(end)

	points := make([]models.PricePoint, 0, len(series))
	for day, fields := range series {
		d, err := xutil.ParseDate(day)
		if err != nil {
			return nil, fmt.Errorf("alpha vantage: bad date %q: %w", day, err)
		}
		raw, ok := fields[fieldClose]
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("alpha vantage: bad close %q on %s: %w", raw, day, err)
		}
		points = append(points, models.PricePoint{Date: d, Close: price.InexactFloat64()})
	}
	return models.NormalizePoints(points, start, end), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
