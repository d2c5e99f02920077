package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/buytime/backend/internal/core/domain"
	"github.com/buytime/backend/internal/core/ports"
)

const testExternalID = "user_2abc"

// newTestContext builds a request context as the Auth middleware would leave
// it. An empty externalID simulates an unauthenticated mount.
func newTestContext(method, target, body, externalID string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if externalID != "" {
		c.Set(ContextKeyExternalID, externalID)
	}
	return c, rec
}

type stubLedgerService struct {
	getBalanceFn    func(ctx context.Context, externalID string) (*domain.BalanceSnapshot, error)
	setAvailableFn  func(ctx context.Context, externalID string, minutes int) (*domain.Balance, error)
	recordSessionFn func(ctx context.Context, in ports.RecordSessionInput) (*ports.SessionResult, error)
}

func (s *stubLedgerService) GetBalance(ctx context.Context, externalID string) (*domain.BalanceSnapshot, error) {
	return s.getBalanceFn(ctx, externalID)
}

func (s *stubLedgerService) SetAvailable(ctx context.Context, externalID string, minutes int) (*domain.Balance, error) {
	return s.setAvailableFn(ctx, externalID, minutes)
}

func (s *stubLedgerService) RecordSession(ctx context.Context, in ports.RecordSessionInput) (*ports.SessionResult, error) {
	return s.recordSessionFn(ctx, in)
}

func (s *stubLedgerService) Credit(context.Context, string, int) (*domain.Balance, error) {
	panic("not used by handlers")
}

type stubPreferencesService struct {
	getFn    func(ctx context.Context, externalID string) (*domain.Preferences, error)
	updateFn func(ctx context.Context, externalID string, patch domain.PreferencesPatch) (*domain.Preferences, error)
}

func (s *stubPreferencesService) Get(ctx context.Context, externalID string) (*domain.Preferences, error) {
	return s.getFn(ctx, externalID)
}

func (s *stubPreferencesService) Update(ctx context.Context, externalID string, patch domain.PreferencesPatch) (*domain.Preferences, error) {
	return s.updateFn(ctx, externalID, patch)
}

type stubProfileService struct {
	getFn    func(ctx context.Context, externalID string) (*domain.Profile, error)
	updateFn func(ctx context.Context, externalID string, displayName *string) (*domain.User, error)
	deleteFn func(ctx context.Context, externalID string) error
}

func (s *stubProfileService) Get(ctx context.Context, externalID string) (*domain.Profile, error) {
	return s.getFn(ctx, externalID)
}

func (s *stubProfileService) UpdateDisplayName(ctx context.Context, externalID string, displayName *string) (*domain.User, error) {
	return s.updateFn(ctx, externalID, displayName)
}

func (s *stubProfileService) Delete(ctx context.Context, externalID string) error {
	return s.deleteFn(ctx, externalID)
}

type stubWebhookService struct {
	processFn func(ctx context.Context, d domain.WebhookDelivery) (*domain.WebhookOutcome, error)
}

func (s *stubWebhookService) Process(ctx context.Context, d domain.WebhookDelivery) (*domain.WebhookOutcome, error) {
	return s.processFn(ctx, d)
}

