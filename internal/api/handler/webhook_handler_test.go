package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buytime/backend/internal/core/domain"
)

func TestWebhookHandler_Clerk_PassesRawDelivery(t *testing.T) {
	body := `{"type":"user.created","data":{"id":"user_1"}}`
	stub := &stubWebhookService{
		processFn: func(_ context.Context, d domain.WebhookDelivery) (*domain.WebhookOutcome, error) {
			assert.Equal(t, "msg_1", d.ID)
			assert.Equal(t, "1700000000", d.Timestamp)
			assert.Equal(t, "v1,abc", d.Signature)
			assert.Equal(t, body, string(d.Body))
			return &domain.WebhookOutcome{DeliveryID: d.ID, Transition: domain.TransitionCreate}, nil
		},
	}
	c, rec := newTestContext(http.MethodPost, "/webhooks/clerk", body, "")
	c.Request().Header.Set(HeaderSvixID, "msg_1")
	c.Request().Header.Set(HeaderSvixTimestamp, "1700000000")
	c.Request().Header.Set(HeaderSvixSignature, "v1,abc")

	require.NoError(t, NewWebhookHandler(stub).Clerk(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":{"received":true}}`, rec.Body.String())
}

func TestWebhookHandler_Clerk_PropagatesFailure(t *testing.T) {
	stub := &stubWebhookService{
		processFn: func(context.Context, domain.WebhookDelivery) (*domain.WebhookOutcome, error) {
			return nil, domain.ErrInvalidSignature
		},
	}
	c, rec := newTestContext(http.MethodPost, "/webhooks/clerk", `{}`, "")

	err := NewWebhookHandler(stub).Clerk(c)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Empty(t, rec.Body.String(), "nothing is written before the error handler runs")
}

type failingBody struct{ err error }

func (b failingBody) Read([]byte) (int, error) { return 0, b.err }

func TestWebhookHandler_Clerk_BodyReadErrors(t *testing.T) {
	stub := &stubWebhookService{
		processFn: func(context.Context, domain.WebhookDelivery) (*domain.WebhookOutcome, error) {
			t.Fatal("service must not be called when the body cannot be read")
			return nil, nil
		},
	}

	c, _ := newTestContext(http.MethodPost, "/webhooks/clerk", "", "")
	c.Request().Body = io.NopCloser(failingBody{err: echo.ErrStatusRequestEntityTooLarge})
	err := NewWebhookHandler(stub).Clerk(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusRequestEntityTooLarge, he.Code)

	c, _ = newTestContext(http.MethodPost, "/webhooks/clerk", "", "")
	c.Request().Body = io.NopCloser(failingBody{err: errors.New("connection reset")})
	err = NewWebhookHandler(stub).Clerk(c)
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}
