package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/buytime/backend/internal/api/metrics"
	"github.com/buytime/backend/internal/core/domain"
	"github.com/buytime/backend/internal/core/ports"
)

// maxApplyAttempts bounds how often a delivery is re-planned when a
// concurrent delivery changes the identity's state under it.
const maxApplyAttempts = 3

var errNotConverged = errors.New("identity state did not converge")

type webhookService struct {
	users    ports.UserRepository
	verifier ports.WebhookVerifier
	dedup    ports.DeliveryDedup
	audit    ports.AuditSink
	log      zerolog.Logger
}

// NewWebhookService returns a WebhookService. dedup and audit are optional.
func NewWebhookService(
	users ports.UserRepository,
	verifier ports.WebhookVerifier,
	dedup ports.DeliveryDedup,
	audit ports.AuditSink,
	log zerolog.Logger,
) ports.WebhookService {
	if dedup == nil {
		dedup = noopDedup{}
	}
	if audit == nil {
		audit = noopAudit{}
	}
	return &webhookService{
		users:    users,
		verifier: verifier,
		dedup:    dedup,
		audit:    audit,
		log:      log,
	}
}

// Process authenticates a delivery and converges the local identity to the
// state its event describes. It reports success only once that state is
// durable, so a failed delivery can be retried by the provider.
func (s *webhookService) Process(ctx context.Context, d domain.WebhookDelivery) (*domain.WebhookOutcome, error) {
	received := time.Now().UTC()
	timer := metrics.StartWebhookTimer()

	// 1. Authenticate before anything else is looked at.
	if !d.HasHeaders() {
		metrics.WebhookErrorsTotal.WithLabelValues("missing_headers").Inc()
		return nil, domain.ErrMissingWebhookHeaders
	}
	event, err := s.verifier.Verify(d)
	if err != nil {
		reason := "invalid_payload"
		if errors.Is(err, domain.ErrInvalidSignature) {
			reason = "invalid_signature"
		}
		metrics.WebhookErrorsTotal.WithLabelValues(reason).Inc()
		s.log.Warn().Err(err).Str("delivery_id", d.ID).Msg("webhook rejected")
		return nil, fmt.Errorf("process webhook: %w", err)
	}

	outcome := &domain.WebhookOutcome{
		DeliveryID: d.ID,
		EventType:  event.Type,
		ExternalID: event.Data.ID,
	}

	// 2. Replayed delivery ids are skipped. A failing dedup store only costs
	// a redundant, idempotent apply.
	seen, err := s.dedup.IsProcessed(ctx, d.ID)
	switch {
	case err != nil:
		s.log.Warn().Err(err).Str("delivery_id", d.ID).Msg("dedup check failed, processing anyway")
	case seen:
		metrics.WebhookDedupTotal.WithLabelValues("hit").Inc()
		outcome.Duplicate = true
		outcome.Transition = domain.TransitionNoOp
		s.log.Debug().Str("delivery_id", d.ID).Str("type", string(event.Type)).Msg("duplicate delivery skipped")
		s.record(outcome, received, nil)
		timer.ObserveDuration(string(outcome.Transition))
		return outcome, nil
	default:
		metrics.WebhookDedupTotal.WithLabelValues("miss").Inc()
	}

	// 3. Classify and apply.
	if !event.Type.Handled() {
		outcome.Transition = domain.TransitionIgnore
		s.log.Info().Str("type", string(event.Type)).Msg("unhandled webhook event type")
	} else {
		if event.Data.ID == "" {
			metrics.WebhookErrorsTotal.WithLabelValues("invalid_payload").Inc()
			return nil, fmt.Errorf("process webhook %s: missing user id: %w", event.Type, domain.ErrInvalidPayload)
		}
		tr, err := s.apply(ctx, event)
		if err != nil {
			metrics.WebhookErrorsTotal.WithLabelValues("apply_failed").Inc()
			s.record(outcome, received, err)
			timer.ObserveDuration("error")
			return nil, fmt.Errorf("process webhook %s: %w", event.Type, err)
		}
		outcome.Transition = tr
	}

	// 4. Remember the delivery only after the state is durable.
	if err := s.dedup.MarkProcessed(ctx, d.ID); err != nil {
		s.log.Warn().Err(err).Str("delivery_id", d.ID).Msg("failed to set dedup key")
	}

	s.record(outcome, received, nil)
	metrics.WebhooksProcessedTotal.WithLabelValues(string(event.Type), string(outcome.Transition)).Inc()
	timer.ObserveDuration(string(outcome.Transition))

	s.log.Info().
		Str("delivery_id", d.ID).
		Str("type", string(event.Type)).
		Str("external_id", event.Data.ID).
		Str("transition", string(outcome.Transition)).
		Msg("webhook processed")

	return outcome, nil
}

// apply reads the identity's current state, plans the transition and runs
// it. When a concurrent delivery invalidates the plan, it re-reads and
// re-plans instead of assuming the earlier state.
func (s *webhookService) apply(ctx context.Context, event *domain.IdentityEvent) (domain.Transition, error) {
	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		state, err := s.state(ctx, event.Data.ID)
		if err != nil {
			return "", err
		}

		tr := domain.PlanTransition(event.Type, state)
		done, err := s.execute(ctx, tr, event.Data)
		if err != nil {
			return "", err
		}
		if done {
			return tr, nil
		}
		s.log.Debug().
			Str("external_id", event.Data.ID).
			Str("transition", string(tr)).
			Int("attempt", attempt+1).
			Msg("identity changed concurrently, re-planning")
	}
	return "", fmt.Errorf("apply %s to %s: %w", event.Type, event.Data.ID, errNotConverged)
}

func (s *webhookService) state(ctx context.Context, externalID string) (domain.IdentityState, error) {
	_, err := s.users.FindByExternalID(ctx, externalID)
	switch {
	case err == nil:
		return domain.StatePresent, nil
	case errors.Is(err, domain.ErrUserNotFound):
		return domain.StateAbsent, nil
	default:
		return "", fmt.Errorf("lookup identity: %w", err)
	}
}

// execute runs one planned transition. It returns false when the plan was
// made stale by a concurrent writer.
func (s *webhookService) execute(ctx context.Context, tr domain.Transition, p domain.IdentityPayload) (bool, error) {
	switch tr {
	case domain.TransitionCreate, domain.TransitionCreateFromUpdate:
		u, err := s.users.Create(ctx, p.NewUser())
		if errors.Is(err, domain.ErrUserExists) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("create user: %w", err)
		}
		s.log.Info().Str("user_id", u.ID).Str("external_id", p.ID).Str("transition", string(tr)).Msg("user created")
		return true, nil

	case domain.TransitionUpdate:
		u, err := s.users.Update(ctx, p.ID, p.Patch())
		if errors.Is(err, domain.ErrUserNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("update user: %w", err)
		}
		s.log.Info().Str("user_id", u.ID).Str("external_id", p.ID).Msg("user updated")
		return true, nil

	case domain.TransitionDelete:
		existed, err := s.users.Delete(ctx, p.ID)
		if err != nil {
			return false, fmt.Errorf("delete user: %w", err)
		}
		if existed {
			s.log.Info().Str("external_id", p.ID).Msg("user deleted")
		}
		return true, nil

	case domain.TransitionNoOp:
		s.log.Info().Str("external_id", p.ID).Msg("identity already converged")
		return true, nil
	}
	return false, fmt.Errorf("unexpected transition %q", tr)
}

func (s *webhookService) record(o *domain.WebhookOutcome, received time.Time, err error) {
	rec := domain.WebhookAuditRecord{
		DeliveryID:  o.DeliveryID,
		EventType:   o.EventType,
		ExternalID:  o.ExternalID,
		Transition:  o.Transition,
		Duplicate:   o.Duplicate,
		ReceivedAt:  received,
		ProcessedAt: time.Now().UTC(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	s.audit.Enqueue(rec)
}

type noopDedup struct{}

func (noopDedup) IsProcessed(context.Context, string) (bool, error) { return false, nil }

func (noopDedup) MarkProcessed(context.Context, string) error { return nil }

type noopAudit struct{}

func (noopAudit) Enqueue(domain.WebhookAuditRecord) {}
