// Package metrics defines and registers all custom Prometheus metrics for the
// BuyTime API. It is the single source of truth for metric names, labels, and
// help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation and exposed on /metrics alongside the HTTP request metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "buytime"

// ── Webhook metrics ───────────────────────────────────────────────────────────

// WebhooksProcessedTotal counts deliveries that converged successfully.
// Labels:
//   - type: provider event type (e.g. "user.created")
//   - transition: the state machine transition applied (e.g. "create_from_update")
var WebhooksProcessedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhooks_processed_total",
		Help:      "Total number of identity webhooks successfully processed.",
	},
	[]string{"type", "transition"},
)

// WebhookErrorsTotal counts deliveries that were rejected or failed.
// Label:
//   - reason: "missing_headers", "invalid_signature", "invalid_payload" or "apply_failed"
var WebhookErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_errors_total",
		Help:      "Total number of identity webhooks that failed processing.",
	},
	[]string{"reason"},
)

// WebhookDedupTotal counts delivery deduplication decisions.
// Label:
//   - result: "hit" (replayed delivery, skipped) or "miss"
var WebhookDedupTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_dedup_total",
		Help:      "Total number of webhook deduplication checks, labelled by result (hit/miss).",
	},
	[]string{"result"},
)

// WebhookProcessingDuration measures verification through convergence.
// Label:
//   - transition: the applied transition, or "error" on failure
var WebhookProcessingDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "webhook_processing_duration_seconds",
		Help:      "Duration of webhook processing from receipt to durable state.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"transition"},
)

// AuditQueueDepth tracks the number of audit records waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of webhook audit records pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// AuditWritesTotal counts audit trail writes.
// Label:
//   - result: "ok", "error" or "dropped"
var AuditWritesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_writes_total",
		Help:      "Total number of webhook audit records handled, by result.",
	},
	[]string{"result"},
)

// ── Ledger metrics ────────────────────────────────────────────────────────────

// SessionsRecordedTotal counts recorded focus session outcomes.
// Labels:
//   - mode: "fun", "easy", "medium" or "hard"
//   - status: "completed" or "failed"
var SessionsRecordedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_recorded_total",
		Help:      "Total number of focus session outcomes recorded, by mode and status.",
	},
	[]string{"mode", "status"},
)

// RewardMinutesCreditedTotal sums reward minutes added to balances.
var RewardMinutesCreditedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reward_minutes_credited_total",
		Help:      "Total number of reward minutes credited to user balances.",
	},
)

// WebhookTimer measures one webhook delivery.
type WebhookTimer struct {
	start time.Time
}

// StartWebhookTimer starts timing a delivery.
func StartWebhookTimer() WebhookTimer {
	return WebhookTimer{start: time.Now()}
}

// ObserveDuration records the elapsed time under the given transition label.
func (t WebhookTimer) ObserveDuration(transition string) {
	WebhookProcessingDuration.WithLabelValues(transition).Observe(time.Since(t.start).Seconds())
}
