package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDedupTTL outlives the provider's retry schedule, so a redelivery is
// always recognised.
const DefaultDedupTTL = 72 * time.Hour

// DeliveryDedup remembers processed webhook deliveries in Redis.
// Key format: webhook:delivery:<delivery_id>
type DeliveryDedup struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDeliveryDedup creates a DeliveryDedup wrapping the given Redis client.
func NewDeliveryDedup(client *redis.Client, ttl time.Duration) *DeliveryDedup {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &DeliveryDedup{client: client, ttl: ttl}
}

// IsProcessed reports whether the delivery has already been applied.
func (d *DeliveryDedup) IsProcessed(ctx context.Context, deliveryID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(deliveryID)).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed records that the delivery has been applied (expires after ttl).
func (d *DeliveryDedup) MarkProcessed(ctx context.Context, deliveryID string) error {
	if err := d.client.Set(ctx, d.key(deliveryID), "1", d.ttl).Err(); err != nil {
		return fmt.Errorf("dedup mark: %w", err)
	}
	return nil
}

func (d *DeliveryDedup) key(deliveryID string) string {
	return "webhook:delivery:" + deliveryID
}
