package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

const genericInternalMessage = "Something went wrong"

// DataResponse writes an API envelope with statusCode both as the HTTP
// status and in the body.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

// SuccessResponse writes success response.
func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

// BadRequestResponse writes bad request error.
func BadRequestResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusBadRequest, data)
}

// ServiceUnavailableResponse writes 503 with data.
func ServiceUnavailableResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusServiceUnavailable, data)
}

// InternalServerErrorResponse writes internal server error.
func InternalServerErrorResponse(c echo.Context) error {
	return DataResponse(c, http.StatusInternalServerError, genericInternalMessage)
}

// AppErrorResponse writes application error response. 5xx errors never
// expose their message or cause.
func AppErrorResponse(c echo.Context, err error) error {
	appErr := AsAppError(err)
	if appErr == nil || (appErr.Status >= http.StatusInternalServerError && appErr.Status != http.StatusServiceUnavailable) {
		return InternalServerErrorResponse(c)
	}
	return DataResponse(c, appErr.Status, []*AppError{appErr})
}

// ErrorHandler renders errors escaping handlers (routing misses, binder
// failures, panics converted by Recover) in the same envelope.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		if he.Code >= http.StatusInternalServerError {
			_ = InternalServerErrorResponse(c)
			return
		}
		_ = DataResponse(c, he.Code, []*AppError{NewAppError("ERR_HTTP", "", msg, he.Code)})
		return
	}
	_ = AppErrorResponse(c, err)
}
