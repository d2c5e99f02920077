package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/buytime/backend/internal/core/domain"
	"github.com/buytime/backend/internal/core/ports"
)

const deliveriesCollection = "webhook_deliveries"

// AuditRepository implements ports.WebhookAuditRepository using MongoDB.
type AuditRepository struct {
	db *mongo.Database
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *mongo.Database) ports.WebhookAuditRepository {
	return &AuditRepository{db: db}
}

// EnsureIndexes creates the lookup indexes of the audit collection.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(deliveriesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "delivery_id", Value: 1}}},
		{Keys: bson.D{{Key: "external_id", Value: 1}, {Key: "received_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create audit indexes: %w", err)
	}
	return nil
}

// InsertDelivery appends one processed delivery to the audit trail.
func (r *AuditRepository) InsertDelivery(ctx context.Context, rec domain.WebhookAuditRecord) error {
	doc := bson.M{
		"delivery_id":  rec.DeliveryID,
		"event_type":   string(rec.EventType),
		"external_id":  rec.ExternalID,
		"transition":   string(rec.Transition),
		"duplicate":    rec.Duplicate,
		"received_at":  rec.ReceivedAt.UTC(),
		"processed_at": rec.ProcessedAt.UTC(),
	}
	if rec.Error != "" {
		doc["error"] = rec.Error
	}

	_, err := r.db.Collection(deliveriesCollection).InsertOne(ctx, doc)
	return err
}
