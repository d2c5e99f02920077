package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/buytime/backend/internal/core/domain"
)

// BalanceRepository implements ports.BalanceRepository.
type BalanceRepository struct {
	s *Store
}

func (r *BalanceRepository) Credit(_ context.Context, userID string, minutes int) (*domain.Balance, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	externalID, ok := s.byID[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	b, err := s.balanceLocked(s.users[externalID])
	if err != nil {
		return nil, err
	}
	b.AvailableMinutes += minutes
	b.UpdatedAt = s.now()
	out := *b
	return &out, nil
}

func (r *BalanceRepository) SetAvailable(_ context.Context, externalID string, minutes int) (*domain.Balance, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.userLocked(externalID)
	if err != nil {
		return nil, err
	}
	b, err := s.balanceLocked(u)
	if err != nil {
		return nil, err
	}
	b.AvailableMinutes = minutes
	b.UpdatedAt = s.now()
	out := *b
	return &out, nil
}

func (r *BalanceRepository) Snapshot(_ context.Context, externalID string, day time.Time) (*domain.BalanceSnapshot, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, err := s.userLocked(externalID)
	if err != nil {
		return nil, err
	}
	b, err := s.balanceLocked(u)
	if err != nil {
		return nil, err
	}

	snap := &domain.BalanceSnapshot{Balance: *b}
	for _, rec := range s.sessions {
		if s.owners[rec.ID] != u.ID || !sameDay(rec.Day, day) {
			continue
		}
		switch rec.Outcome.Status {
		case domain.SessionCompleted:
			snap.Today.SessionsCompleted++
			snap.Today.EarnedMinutes += rec.RewardMinutes
		case domain.SessionFailed:
			snap.Today.SessionsFailed++
		}
	}
	for _, sp := range s.spending {
		if sp.UserID == u.ID && sameDay(sp.StartedAt, day) {
			snap.Today.SpentMinutes += sp.Minutes
		}
	}
	return snap, nil
}

func (r *BalanceRepository) RecordSession(_ context.Context, externalID string, rec domain.SessionRecord) (*domain.Balance, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.userLocked(externalID)
	if err != nil {
		return nil, err
	}
	b, err := s.balanceLocked(u)
	if err != nil {
		return nil, err
	}
	st, ok := s.stats[u.ID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s has no stats", domain.ErrIntegrityViolation, externalID)
	}

	now := s.now()
	if rec.Outcome.Status == domain.SessionCompleted {
		b.AvailableMinutes += rec.RewardMinutes
		b.CurrentStreakDays = domain.AdvanceStreak(b.CurrentStreakDays, b.LastSessionDate, rec.Day)
		day := rec.Day
		b.LastSessionDate = &day
		b.UpdatedAt = now
	}
	st.ApplySession(rec, b.CurrentStreakDays, now)

	s.sessions = append(s.sessions, rec)
	s.owners[rec.ID] = u.ID

	out := *b
	return &out, nil
}

// AddTimeSpending records app usage for a user. App usage is written by the
// usage tracker in production; the store accepts it so local runs can show
// spent minutes.
func (r *BalanceRepository) AddTimeSpending(_ context.Context, externalID string, minutes int, startedAt time.Time) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.userLocked(externalID)
	if err != nil {
		return err
	}
	s.spending = append(s.spending, spendingRow{UserID: u.ID, Minutes: minutes, StartedAt: startedAt})
	if st, ok := s.stats[u.ID]; ok {
		st.TotalSpentMinutes += minutes
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// PreferencesRepository implements ports.PreferencesRepository.
type PreferencesRepository struct {
	s *Store
}

func (r *PreferencesRepository) Get(_ context.Context, externalID string) (*domain.Preferences, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, err := s.userLocked(externalID)
	if err != nil {
		return nil, err
	}
	p, ok := s.prefs[u.ID]
	if !ok {
		return nil, domain.ErrPreferencesNotFound
	}
	out := *p
	return &out, nil
}

func (r *PreferencesRepository) Update(_ context.Context, externalID string, patch domain.PreferencesPatch) (*domain.Preferences, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.userLocked(externalID)
	if err != nil {
		return nil, err
	}
	p, ok := s.prefs[u.ID]
	if !ok {
		return nil, domain.ErrPreferencesNotFound
	}
	if patch.FocusDurationMinutes.Set {
		p.FocusDurationMinutes = patch.FocusDurationMinutes.Value
	}
	if patch.FocusMode.Set {
		p.FocusMode = patch.FocusMode.Value
	}
	if !patch.Empty() {
		p.UpdatedAt = s.now()
	}
	out := *p
	return &out, nil
}
