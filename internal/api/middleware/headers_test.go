package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

var errMissing = errors.New("missing svix headers")

func TestRequireHeaders_Allows(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", nil)
	req.Header.Set("svix-id", "msg_1")
	req.Header.Set("svix-timestamp", "1700000000")
	req.Header.Set("svix-signature", "v1,abc")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	mw := RequireHeaders(errMissing, "svix-id", "svix-timestamp", "svix-signature")
	handler := mw(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next handler not called")
	}
}

func TestRequireHeaders_Rejects(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", nil)
	req.Header.Set("svix-id", "msg_1")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	mw := RequireHeaders(errMissing, "svix-id", "svix-timestamp", "svix-signature")
	handler := mw(func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})

	if err := handler(c); !errors.Is(err, errMissing) {
		t.Fatalf("expected missing headers error, got %v", err)
	}
}
