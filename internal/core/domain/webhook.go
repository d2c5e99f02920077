package domain

import "time"

// WebhookDelivery is one raw delivery attempt from the identity provider.
type WebhookDelivery struct {
	ID        string
	Timestamp string
	Signature string
	Body      []byte
}

// HasHeaders reports whether all signature headers were supplied.
func (d WebhookDelivery) HasHeaders() bool {
	return d.ID != "" && d.Timestamp != "" && d.Signature != ""
}

// WebhookOutcome describes what processing a delivery did.
type WebhookOutcome struct {
	DeliveryID string
	EventType  IdentityEventType
	ExternalID string
	Transition Transition
	// Duplicate is true when the delivery id was already processed.
	Duplicate bool
}

// WebhookAuditRecord is appended to the audit trail for every processed delivery.
type WebhookAuditRecord struct {
	DeliveryID  string
	EventType   IdentityEventType
	ExternalID  string
	Transition  Transition
	Duplicate   bool
	Error       string
	ReceivedAt  time.Time
	ProcessedAt time.Time
}
