package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Symbol string `query:"symbol" validate:"required,ticker"`
	Start  string `query:"start_date" validate:"omitempty,date"`
	Limit  int    `query:"limit" default:"5" validate:"gte=1,lte=10"`
}

func newContext(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestDataResponseWritesRealStatus(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/")
	require.NoError(t, DataResponse(c, http.StatusBadRequest, "nope"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, http.StatusBadRequest, decode(t, rec).Status)
}

func TestAppErrorResponseHidesInternalCause(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/")
	err := InternalError("db exploded").WithError(errors.New("secret dsn"))
	require.NoError(t, AppErrorResponse(c, err))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")
	assert.NotContains(t, rec.Body.String(), "db exploded")
}

func TestAppErrorResponseKeepsClientErrors(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/")
	require.NoError(t, AppErrorResponse(c, NoDataError("no price data for ZZZZ")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_NO_DATA")
	assert.Contains(t, rec.Body.String(), "ZZZZ")
}

func TestAppErrorResponseUnknownError(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/")
	require.NoError(t, AppErrorResponse(c, errors.New("boom")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestReadAndValidateRequest(t *testing.T) {
	c, _ := newContext(http.MethodGet, "/?symbol=AAPL&start_date=2024-01-02")
	var req sampleRequest
	assert.Nil(t, ReadAndValidateRequest(c, &req))
	assert.Equal(t, "AAPL", req.Symbol)
	assert.Equal(t, 5, req.Limit)

	c, _ = newContext(http.MethodGet, "/?start_date=02/01/2024")
	req = sampleRequest{}
	errs := ReadAndValidateRequest(c, &req)
	require.Len(t, errs, 2)
	assert.Equal(t, "ERR_REQUIRED", errs[0].Code)
	assert.Equal(t, "symbol", errs[0].Field)
	assert.Equal(t, "ERR_DATE", errs[1].Code)
	assert.Equal(t, "start_date", errs[1].Field)
}

func TestValidateTicker(t *testing.T) {
	ok := sampleRequest{Symbol: "BRK-B", Limit: 1}
	assert.Nil(t, Validate(&ok))

	bad := sampleRequest{Symbol: "AAPL; DROP", Limit: 1}
	errs := Validate(&bad)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_TICKER", errs[0].Code)
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "forecaster-test", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	c := NewClient(WithHeader("User-Agent", "forecaster-test"))
	var out map[string]any
	err := c.SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL}, &out)
	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, StatusCode(err))
	assert.Equal(t, 0, StatusCode(errors.New("other")))
}

func TestClientDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	err := NewClient().SendAndParse(context.Background(), &RequestOptions{
		Method:      MethodGet,
		URL:         srv.URL,
		QueryParams: map[string][]string{"symbol": {"AAPL"}},
	}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
}

type panicHandler struct{}

func (panicHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/panic", func(c echo.Context) error { panic("kaboom") })
	e.GET("/ok", func(c echo.Context) error { return SuccessResponse(c, "fine") })
}

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

func TestServerRecoversPanicAndSetsRequestID(t *testing.T) {
	s := NewServer(panicHandler{}, WithMetricsPath(""))

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "kaboom")
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerRateLimit(t *testing.T) {
	s := NewServer(panicHandler{}, WithMetricsPath(""), WithRateLimiter(denyAll{}))

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}
