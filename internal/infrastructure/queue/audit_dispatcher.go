package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/buytime/backend/internal/api/metrics"
	"github.com/buytime/backend/internal/core/domain"
	"github.com/buytime/backend/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	writeTimeout   = 5 * time.Second
)

// AuditDispatcher writes webhook audit records off the request path. Records
// are routed to a fixed set of workers by hashing the external id, so the
// trail of one identity is written in the order its deliveries finished.
type AuditDispatcher struct {
	workers []chan domain.WebhookAuditRecord
	repo    ports.WebhookAuditRepository
	log     zerolog.Logger
	wg      sync.WaitGroup
	once    sync.Once
}

// NewAuditDispatcher creates an AuditDispatcher with numWorkers sharded
// workers. If numWorkers <= 0, defaultWorkers is used.
func NewAuditDispatcher(numWorkers int, repo ports.WebhookAuditRepository, log zerolog.Logger) *AuditDispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &AuditDispatcher{
		workers: make([]chan domain.WebhookAuditRecord, numWorkers),
		repo:    repo,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.WebhookAuditRecord, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers exit once Close has been
// called and their channel is drained.
func (d *AuditDispatcher) Start() {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(i, ch)
	}
}

// Enqueue hands rec to the worker responsible for its identity. It never
// blocks: when the worker is saturated the record is dropped, since the audit
// trail must not hold up webhook acknowledgement.
func (d *AuditDispatcher) Enqueue(rec domain.WebhookAuditRecord) {
	idx := d.shardIndex(rec.ExternalID)
	select {
	case d.workers[idx] <- rec:
		metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		metrics.AuditWritesTotal.WithLabelValues("dropped").Inc()
		d.log.Warn().
			Str("delivery_id", rec.DeliveryID).
			Int("worker_id", idx).
			Msg("audit queue full, record dropped")
	}
}

// Close stops accepting records and waits until pending ones are written or
// ctx expires. Enqueue must not be called after Close.
func (d *AuditDispatcher) Close(ctx context.Context) error {
	d.once.Do(func() {
		for _, ch := range d.workers {
			close(ch)
		}
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shardIndex maps an external id deterministically to a worker index.
func (d *AuditDispatcher) shardIndex(externalID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(externalID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *AuditDispatcher) runWorker(id int, ch <-chan domain.WebhookAuditRecord) {
	defer d.wg.Done()
	label := strconv.Itoa(id)

	for rec := range ch {
		metrics.AuditQueueDepth.WithLabelValues(label).Set(float64(len(ch)))

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := d.repo.InsertDelivery(ctx, rec)
		cancel()

		if err != nil {
			metrics.AuditWritesTotal.WithLabelValues("error").Inc()
			d.log.Error().Err(err).
				Str("delivery_id", rec.DeliveryID).
				Int("worker_id", id).
				Msg("audit write failed")
			continue
		}
		metrics.AuditWritesTotal.WithLabelValues("ok").Inc()
	}
}
