package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/buytime/backend/internal/core/domain"
	"github.com/buytime/backend/internal/core/ports"
)

// Svix delivery headers.
const (
	HeaderSvixID        = "svix-id"
	HeaderSvixTimestamp = "svix-timestamp"
	HeaderSvixSignature = "svix-signature"
)

// WebhookHandler receives identity provider deliveries.
type WebhookHandler struct {
	service ports.WebhookService
}

func NewWebhookHandler(service ports.WebhookService) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// Clerk handles POST /webhooks/clerk. The raw body is passed through
// untouched because the signature covers its exact bytes.
//
// @Summary      Receive an identity webhook
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        svix-id         header    string  true  "Delivery id"
// @Param        svix-timestamp  header    string  true  "Unix timestamp"
// @Param        svix-signature  header    string  true  "Space separated v1 signatures"
// @Success      200  {object}  successResponse{data=receivedResponse}
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      413  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /webhooks/clerk [post]
func (h *WebhookHandler) Clerk(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		// The body limit middleware fails the read once the limit is crossed.
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return domain.ErrInvalidPayload
	}

	hdr := c.Request().Header
	delivery := domain.WebhookDelivery{
		ID:        hdr.Get(HeaderSvixID),
		Timestamp: hdr.Get(HeaderSvixTimestamp),
		Signature: hdr.Get(HeaderSvixSignature),
		Body:      body,
	}

	if _, err := h.service.Process(c.Request().Context(), delivery); err != nil {
		return err
	}
	return respond(c, http.StatusOK, receivedResponse{Received: true})
}
