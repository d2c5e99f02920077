package ports

import (
	"context"

	"github.com/buytime/backend/internal/core/domain"
)

// WebhookVerifier authenticates a delivery and decodes its event.
type WebhookVerifier interface {
	// Verify returns domain.ErrInvalidSignature when the signature does not
	// match, and a validation error when the verified body is malformed.
	Verify(d domain.WebhookDelivery) (*domain.IdentityEvent, error)
}

// DeliveryDedup remembers processed delivery ids.
type DeliveryDedup interface {
	IsProcessed(ctx context.Context, deliveryID string) (bool, error)
	MarkProcessed(ctx context.Context, deliveryID string) error
}

// WebhookAuditRepository persists the delivery audit trail.
type WebhookAuditRepository interface {
	InsertDelivery(ctx context.Context, rec domain.WebhookAuditRecord) error
}

// AuditSink accepts audit records without blocking the caller.
type AuditSink interface {
	Enqueue(rec domain.WebhookAuditRecord)
}

// WebhookService applies identity provider deliveries.
type WebhookService interface {
	Process(ctx context.Context, d domain.WebhookDelivery) (*domain.WebhookOutcome, error)
}
