package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"StockForecaster/internal/domain/models"
	drepo "StockForecaster/internal/domain/repository"
	xhttp "StockForecaster/pkg/http"
	xutil "StockForecaster/pkg/util"
)

const (
	DefaultBaseURL   = "https://query1.finance.yahoo.com"
	DefaultUserAgent = "Mozilla/5.0 (compatible; StockForecaster/1.0)"

	chartPath = "/v8/finance/chart/"
)

// Client implements a PriceProvider backed by the Yahoo Finance chart API.
type Client struct {
	baseURL string
	http    *xhttp.Client
}

// New creates a Yahoo Finance PriceProvider.
func New(baseURL, userAgent string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: xhttp.NewClient(
			xhttp.WithTimeout(timeout),
			xhttp.WithHeader("User-Agent", userAgent),
			xhttp.WithHeader("Accept", "application/json"),
		),
	}
}

var _ drepo.PriceProvider = (*Client)(nil)

func (c *Client) Name() string { return "yahoo" }

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GMTOffset int64  `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// DailyCloses downloads daily closes for [start, end] (both days inclusive).
// An unknown symbol yields an empty result, HTTP 429 yields ErrRateLimited.
func (c *Client) DailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]models.PricePoint, error) {
	start = xutil.TruncateDay(start)
	endExclusive := xutil.TruncateDay(end).AddDate(0, 0, 1)

	var resp chartResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + chartPath + url.PathEscape(symbol),
		QueryParams: map[string][]string{
			"interval": {"1d"},
			"period1":  {strconv.FormatInt(start.Unix(), 10)},
			"period2":  {strconv.FormatInt(endExclusive.Unix(), 10)},
			"events":   {"history"},
		},
	}, &resp)
	if err != nil {
		switch xhttp.StatusCode(err) {
		case http.StatusTooManyRequests:
			return nil, fmt.Errorf("yahoo %s: %w", symbol, drepo.ErrRateLimited)
		case http.StatusNotFound:
			// chart API answers 404 with a JSON error for delisted or unknown tickers
			return nil, nil
		}
		return nil, fmt.Errorf("yahoo %s: %w", symbol, err)
	}

	if e := resp.Chart.Error; e != nil {
		if strings.EqualFold(e.Code, "Not Found") {
			return nil, nil
		}
		return nil, fmt.Errorf("yahoo %s: api error %s: %s", symbol, e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, nil
	}

	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, nil
	}
	closes := result.Indicators.Quote[0].Close

	points := make([]models.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			// null bars show up for halted sessions
			continue
		}
		// timestamps are the session open; shift to exchange time before taking the date
		date := xutil.TruncateDay(time.Unix(ts+result.Meta.GMTOffset, 0))
		points = append(points, models.PricePoint{Date: date, Close: *closes[i]})
	}
	return points, nil
}
