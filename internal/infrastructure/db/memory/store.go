// Package memory provides in-process implementations of the repository ports.
//
// A single mutex guards the whole store, so every operation is atomic with
// respect to every other, which mirrors the statement and transaction
// guarantees the Postgres adapter relies on. Intended for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/buytime/backend/internal/core/domain"
)

// Store holds every record group in memory.
type Store struct {
	mu       sync.RWMutex
	users    map[string]*domain.User // by external id
	byID     map[string]string       // user id -> external id
	balances map[string]*domain.Balance
	stats    map[string]*domain.Stats
	prefs    map[string]*domain.Preferences
	sessions []domain.SessionRecord
	owners   map[string]string // session id -> user id
	spending []spendingRow
	now      func() time.Time
}

type spendingRow struct {
	UserID    string
	Minutes   int
	StartedAt time.Time
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		users:    make(map[string]*domain.User),
		byID:     make(map[string]string),
		balances: make(map[string]*domain.Balance),
		stats:    make(map[string]*domain.Stats),
		prefs:    make(map[string]*domain.Preferences),
		owners:   make(map[string]string),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Users returns the identity repository view of the store.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Balances returns the ledger repository view of the store.
func (s *Store) Balances() *BalanceRepository { return &BalanceRepository{s: s} }

// Preferences returns the preferences repository view of the store.
func (s *Store) Preferences() *PreferencesRepository { return &PreferencesRepository{s: s} }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// userLocked resolves an external id. Caller holds s.mu.
func (s *Store) userLocked(externalID string) (*domain.User, error) {
	u, ok := s.users[externalID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

// balanceLocked returns the balance owned by u, or an integrity error if the
// user exists without one. Caller holds s.mu.
func (s *Store) balanceLocked(u *domain.User) (*domain.Balance, error) {
	b, ok := s.balances[u.ID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s has no balance", domain.ErrIntegrityViolation, u.ExternalID)
	}
	return b, nil
}

// UserRepository implements ports.UserRepository.
type UserRepository struct {
	s *Store
}

func (r *UserRepository) Create(_ context.Context, nu domain.NewUser) (*domain.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[nu.ExternalID]; exists {
		return nil, domain.ErrUserExists
	}

	now := s.now()
	u := &domain.User{
		ID:                 uuid.NewString(),
		ExternalID:         nu.ExternalID,
		Email:              nu.Email,
		DisplayName:        nu.DisplayName,
		SubscriptionTier:   domain.TierFree,
		SubscriptionStatus: domain.SubscriptionNone,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	stats := domain.NewStats(u.ID, now)

	s.users[u.ExternalID] = u
	s.byID[u.ID] = u.ExternalID
	s.balances[u.ID] = &domain.Balance{UserID: u.ID, UpdatedAt: now}
	s.stats[u.ID] = &stats
	s.prefs[u.ID] = &domain.Preferences{
		UserID:               u.ID,
		FocusDurationMinutes: domain.DefaultFocusDurationMinutes,
		FocusMode:            domain.DefaultFocusMode,
		UpdatedAt:            now,
	}

	out := *u
	return &out, nil
}

func (r *UserRepository) FindByExternalID(_ context.Context, externalID string) (*domain.User, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, err := s.userLocked(externalID)
	if err != nil {
		return nil, err
	}
	out := *u
	return &out, nil
}

func (r *UserRepository) Update(_ context.Context, externalID string, patch domain.UserPatch) (*domain.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.userLocked(externalID)
	if err != nil {
		return nil, err
	}
	if !patch.Empty() {
		if patch.Email.Set {
			u.Email = patch.Email.Value
		}
		if patch.DisplayName.Set {
			u.DisplayName = patch.DisplayName.Value
		}
		u.UpdatedAt = s.now()
	}
	out := *u
	return &out, nil
}

func (r *UserRepository) Delete(_ context.Context, externalID string) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[externalID]
	if !ok {
		return false, nil
	}
	delete(s.users, externalID)
	delete(s.byID, u.ID)
	delete(s.balances, u.ID)
	delete(s.stats, u.ID)
	delete(s.prefs, u.ID)

	kept := s.sessions[:0]
	for _, rec := range s.sessions {
		if s.owners[rec.ID] == u.ID {
			delete(s.owners, rec.ID)
			continue
		}
		kept = append(kept, rec)
	}
	s.sessions = kept

	spent := s.spending[:0]
	for _, sp := range s.spending {
		if sp.UserID != u.ID {
			spent = append(spent, sp)
		}
	}
	s.spending = spent
	return true, nil
}

func (r *UserRepository) Profile(_ context.Context, externalID string) (*domain.Profile, error) {
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
	st, ok := s.stats[u.ID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s has no stats", domain.ErrIntegrityViolation, externalID)
	}
	return &domain.Profile{User: *u, Balance: *b, Stats: copyStats(*st)}, nil
}

func copyStats(st domain.Stats) domain.Stats {
	byMode := make(map[domain.FocusMode]int, len(st.SessionsByMode))
	for m, n := range st.SessionsByMode {
		byMode[m] = n
	}
	st.SessionsByMode = byMode
	return st
}
