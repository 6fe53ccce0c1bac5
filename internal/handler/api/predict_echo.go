package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	models "StockForecaster/internal/domain/models"
	domrepo "StockForecaster/internal/domain/repository"
	"StockForecaster/internal/usecase"
	xhttp "StockForecaster/pkg/http"
	xlogger "StockForecaster/pkg/logger"
	xutil "StockForecaster/pkg/util"
)

const pricePlaces = 4

// PredictEchoHandler serves the forecasting endpoints.
type PredictEchoHandler struct {
	logger    *xlogger.Logger
	predictor *usecase.Predictor
	rt        *usecase.Runtime
}

func NewPredictEchoHandler(logger *xlogger.Logger, predictor *usecase.Predictor, rt *usecase.Runtime) *PredictEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &PredictEchoHandler{logger: logger, predictor: predictor, rt: rt}
}

func (h *PredictEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Root)
	e.GET("/predict", h.Predict)
	e.GET("/healthz", h.Healthz)
	e.GET("/readyz", h.Readyz)
}

func (h *PredictEchoHandler) Root(c echo.Context) error {
	return xhttp.SuccessResponse(c, "Stock forecaster API. Use GET /predict?symbol=AAPL")
}

// Predict returns the next-close forecast for a symbol.
func (h *PredictEchoHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	start, end, appErr := parseRange(req.StartDate, req.EndDate)
	if appErr != nil {
		return xhttp.AppErrorResponse(c, appErr)
	}

	out, err := h.predictor.Predict(c.Request().Context(), req.Symbol, start, end)
	if err != nil {
		h.logger.Error("predict usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, predictError(err))
	}
	if !out.OK() {
		return xhttp.AppErrorResponse(c, xhttp.NoDataError(out.Reason).
			WithParam("symbol", out.Symbol).
			WithParam("points", out.Points).
			WithParam("window", out.Window))
	}

	price, _ := decimal.NewFromFloat(out.Price).Round(pricePlaces).Float64()
	return c.JSON(http.StatusOK, models.PredictResponse{
		Symbol:         out.Symbol,
		PredictedPrice: price,
		AsOf:           xutil.FormatDate(out.AsOf),
		Window:         out.Window,
	})
}

func (h *PredictEchoHandler) Healthz(c echo.Context) error {
	return xhttp.SuccessResponse(c, "ok")
}

// Readyz reports the runtime state; anything but ready is a 503.
func (h *PredictEchoHandler) Readyz(c echo.Context) error {
	st := h.rt.State()
	res := models.ReadinessResponse{State: st.String()}
	if err := h.rt.Err(); err != nil {
		res.Error = err.Error()
	}
	if st != usecase.StateReady {
		return xhttp.ServiceUnavailableResponse(c, res)
	}
	return xhttp.SuccessResponse(c, res)
}

// parseRange parses the optional dates. Zero values are resolved by the predictor.
func parseRange(startDate, endDate string) (time.Time, time.Time, *xhttp.AppError) {
	start, err := xhttp.ParseDateDefault(startDate, time.Time{})
	if err != nil {
		return start, time.Time{}, xhttp.BadRequestErrorf("start_date %q is not a valid date", startDate)
	}
	end, err := xhttp.ParseDateDefault(endDate, time.Time{})
	if err != nil {
		return start, end, xhttp.BadRequestErrorf("end_date %q is not a valid date", endDate)
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		return start, end, xhttp.BadRequestError("start_date must be before end_date").
			WithParam("start_date", startDate).
			WithParam("end_date", endDate)
	}
	return start, end, nil
}

func predictError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, usecase.ErrNotReady):
		return xhttp.ServiceUnavailableError("model is not loaded").WithError(err)
	case errors.Is(err, domrepo.ErrProviderUnavailable):
		return xhttp.ServiceUnavailableError("price data provider unavailable").WithError(err)
	default:
		return xhttp.InternalError("prediction failed").WithError(err)
	}
}
