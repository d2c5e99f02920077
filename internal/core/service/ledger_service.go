package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/buytime/backend/internal/api/metrics"
	"github.com/buytime/backend/internal/core/domain"
	"github.com/buytime/backend/internal/core/ports"
)

// clockSkew is how far a client's endedAt may run ahead of the server clock.
const clockSkew = time.Minute

// LedgerService computes rewards and applies them to the balance ledger.
type LedgerService struct {
	repo    ports.BalanceRepository
	rewards domain.RewardTable
	now     func() time.Time
	log     zerolog.Logger
}

// NewLedgerService returns a LedgerService. A nil rewards table falls back
// to domain.DefaultRewardTable.
func NewLedgerService(repo ports.BalanceRepository, rewards domain.RewardTable, log zerolog.Logger) *LedgerService {
	if rewards == nil {
		rewards = domain.DefaultRewardTable
	}
	return &LedgerService{
		repo:    repo,
		rewards: rewards,
		now:     func() time.Time { return time.Now().UTC() },
		log:     log,
	}
}

// GetBalance returns the balance with today's totals.
func (s *LedgerService) GetBalance(ctx context.Context, externalID string) (*domain.BalanceSnapshot, error) {
	snap, err := s.repo.Snapshot(ctx, externalID, s.today())
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return snap, nil
}

// SetAvailable overwrites the available minutes. It does not compose with a
// concurrent Credit: whichever write lands last wins.
func (s *LedgerService) SetAvailable(ctx context.Context, externalID string, minutes int) (*domain.Balance, error) {
	if minutes < 0 || minutes > domain.MaxMinutes {
		return nil, domain.ErrInvalidMinutes
	}
	bal, err := s.repo.SetAvailable(ctx, externalID, minutes)
	if err != nil {
		return nil, fmt.Errorf("set available minutes: %w", err)
	}
	s.log.Info().Str("external_id", externalID).Int("available_minutes", minutes).Msg("balance overwritten")
	return bal, nil
}

// Credit adds minutes to a user's balance.
func (s *LedgerService) Credit(ctx context.Context, userID string, minutes int) (*domain.Balance, error) {
	if minutes < 0 {
		return nil, domain.ErrInvalidMinutes
	}
	bal, err := s.repo.Credit(ctx, userID, minutes)
	if err != nil {
		return nil, fmt.Errorf("credit balance: %w", err)
	}
	metrics.RewardMinutesCreditedTotal.Add(float64(minutes))
	return bal, nil
}

// RecordSession validates a session outcome, prices it with the reward table
// and stores it. Failed sessions are recorded with a zero reward.
func (s *LedgerService) RecordSession(ctx context.Context, in ports.RecordSessionInput) (*ports.SessionResult, error) {
	mode, err := domain.ParseFocusMode(in.Mode)
	if err != nil {
		return nil, err
	}
	status, err := domain.ParseSessionStatus(in.Status)
	if err != nil {
		return nil, err
	}
	if in.DurationMinutes < 0 || in.DurationMinutes > domain.MaxSessionDurationMinutes {
		return nil, domain.ErrInvalidDuration
	}
	if p := in.PlannedDurationMinutes; p != nil && (*p < 1 || *p > domain.MaxSessionDurationMinutes) {
		return nil, domain.NewValidationError("plannedDurationMinutes must be an integer between 1 and 1440")
	}

	multiplier, err := s.rewards.Multiplier(mode)
	if err != nil {
		return nil, err
	}
	reward := 0
	if status == domain.SessionCompleted {
		if reward, err = s.rewards.Compute(in.DurationMinutes, mode); err != nil {
			return nil, err
		}
	}

	now := s.now()
	endedAt := in.EndedAt
	if endedAt.IsZero() {
		endedAt = now
	}
	startedAt := in.StartedAt
	if startedAt.IsZero() {
		startedAt = endedAt.Add(-time.Duration(in.DurationMinutes) * time.Minute)
	}
	if startedAt.After(endedAt) || endedAt.After(now.Add(clockSkew)) {
		return nil, domain.ErrInvalidSessionTimes
	}

	rec := domain.SessionRecord{
		ID: uuid.NewString(),
		Outcome: domain.SessionOutcome{
			DurationMinutes:        in.DurationMinutes,
			PlannedDurationMinutes: in.PlannedDurationMinutes,
			Mode:                   mode,
			Status:                 status,
			StartedAt:              startedAt.UTC(),
			EndedAt:                endedAt.UTC(),
		},
		MultiplierUsed: multiplier,
		RewardMinutes:  reward,
		// The streak and today's totals both key off the day the session
		// was reported, not the client's timestamps.
		Day: truncateDay(now),
	}

	bal, err := s.repo.RecordSession(ctx, in.ExternalID, rec)
	if err != nil {
		return nil, fmt.Errorf("record session: %w", err)
	}

	metrics.SessionsRecordedTotal.WithLabelValues(string(mode), string(status)).Inc()
	if reward > 0 {
		metrics.RewardMinutesCreditedTotal.Add(float64(reward))
	}

	s.log.Info().
		Str("external_id", in.ExternalID).
		Str("mode", string(mode)).
		Str("status", string(status)).
		Int("duration_minutes", in.DurationMinutes).
		Int("reward_minutes", reward).
		Msg("session recorded")

	return &ports.SessionResult{
		RewardMinutes:  reward,
		MultiplierUsed: multiplier,
		Balance:        *bal,
	}, nil
}

func (s *LedgerService) today() time.Time {
	return truncateDay(s.now())
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
