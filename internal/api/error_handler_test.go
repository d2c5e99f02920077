package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buytime/backend/internal/core/domain"
)

func TestHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
		wantLog  bool
	}{
		{"validation", fmt.Errorf("update: %w", domain.ErrInvalidFocusDuration), http.StatusBadRequest, "focusDurationMinutes must be an integer between 1 and 240", false},
		{"signature", domain.ErrInvalidSignature, http.StatusUnauthorized, "invalid webhook signature", false},
		{"not found", fmt.Errorf("get: %w", domain.ErrUserNotFound), http.StatusNotFound, "user not found", false},
		{"conflict", domain.ErrUserExists, http.StatusConflict, "user already exists", false},
		{"integrity", fmt.Errorf("%w: user u1 has no balance", domain.ErrIntegrityViolation), http.StatusInternalServerError, "internal server error", true},
		{"unexpected", errors.New("pq: connection refused"), http.StatusInternalServerError, "internal server error", true},
		{"echo error", echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded"), http.StatusTooManyRequests, "rate limit exceeded", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/balance", nil), rec)

			NewHTTPErrorHandler(zerolog.New(&logs))(tt.err, c)

			assert.Equal(t, tt.wantCode, rec.Code)
			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantMsg, body.Error)
			assert.Equal(t, tt.wantLog, logs.Len() > 0)
			assert.NotContains(t, rec.Body.String(), "pq:")
		})
	}
}
