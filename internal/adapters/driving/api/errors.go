package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/logger"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidIdentifier):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, domain.ErrSearchShardFailure), errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorHandler renders errors as JSON. Form errors carry per-field messages.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	var fe domain.FieldErrors
	code := http.StatusInternalServerError
	body := map[string]any{"error": err.Error()}

	switch {
	case errors.As(err, &he):
		code = he.Code
		body["error"] = he.Message
	case errors.As(err, &fe):
		code = http.StatusBadRequest
		body["errors"] = fe
	default:
		code = statusFor(err)
	}

	req := c.Request()
	if code >= 500 {
		logger.Error("api: %d %s %s: %v", code, req.Method, req.URL.Path, err)
	} else {
		logger.Debug("api: %d %s %s: %v", code, req.Method, req.URL.Path, err)
	}
	if req.Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, body)
}
