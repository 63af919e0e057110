package apperror

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// HTTPErrorHandler returns an Echo error handler that renders every error as
// {"error": {"code", "message", "details"}}.
func HTTPErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var appErr *Error
		if he, ok := err.(*echo.HTTPError); ok {
			appErr = fromEcho(he)
		} else {
			appErr = From(err)
		}

		if appErr.HTTPStatus >= 500 {
			log.Error("request error",
				slog.Int("status", appErr.HTTPStatus),
				slog.String("error", err.Error()),
				slog.String("path", c.Path()),
			)
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(appErr.HTTPStatus)
			return
		}
		_ = c.JSON(appErr.HTTPStatus, appErr.Body())
	}
}

func fromEcho(he *echo.HTTPError) *Error {
	msg, ok := he.Message.(string)
	if !ok {
		msg = http.StatusText(he.Code)
	}
	code := "internal_error"
	switch he.Code {
	case http.StatusUnauthorized:
		code = "unauthorized"
	case http.StatusForbidden:
		code = "forbidden"
	case http.StatusNotFound:
		code = "not_found"
	case http.StatusMethodNotAllowed:
		code = "method_not_allowed"
	case http.StatusBadRequest:
		code = "bad_request"
	case http.StatusConflict:
		code = "conflict"
	case http.StatusUnprocessableEntity:
		code = "validation_error"
	case http.StatusRequestEntityTooLarge:
		code = "payload_too_large"
	}
	return &Error{HTTPStatus: he.Code, Code: code, Message: msg, Internal: he.Internal}
}
