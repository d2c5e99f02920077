package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/buytime/backend/internal/api/handler"
	"github.com/buytime/backend/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps domain error classes to their HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"success": false, "error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, errorResponse{Success: false, Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (404 from router, 429 from the rate limiter, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	// Domain error classes → deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, publicMessage(err, "invalid request")
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, publicMessage(err, "unauthorized")
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, publicMessage(err, "not found")
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, publicMessage(err, "conflict")
	}

	// Unexpected error, integrity violations included: log the real cause,
	// return a generic message.
	externalID, _ := c.Get(handler.ContextKeyExternalID).(string)
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Str("external_id", externalID).
		Bool("integrity_violation", errors.Is(err, domain.ErrIntegrityViolation)).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}

func publicMessage(err error, fallback string) string {
	if msg := domain.PublicMessage(err); msg != "" {
		return msg
	}
	return fallback
}
