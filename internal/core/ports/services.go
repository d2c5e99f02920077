package ports

import (
	"context"
	"time"

	"github.com/buytime/backend/internal/core/domain"
)

// RecordSessionInput is the DTO passed from the transport layer when a
// focus session finishes.
type RecordSessionInput struct {
	ExternalID             string
	DurationMinutes        int
	PlannedDurationMinutes *int
	Mode                   string
	Status                 string
	StartedAt              time.Time
	EndedAt                time.Time
}

// SessionResult is returned after a session outcome is applied.
type SessionResult struct {
	RewardMinutes  int
	MultiplierUsed int
	Balance        domain.Balance
}

// LedgerService exposes the balance ledger to the transport layer.
type LedgerService interface {
	GetBalance(ctx context.Context, externalID string) (*domain.BalanceSnapshot, error)
	SetAvailable(ctx context.Context, externalID string, minutes int) (*domain.Balance, error)
	RecordSession(ctx context.Context, in RecordSessionInput) (*SessionResult, error)
	Credit(ctx context.Context, userID string, minutes int) (*domain.Balance, error)
}

// PreferencesService exposes focus preferences.
type PreferencesService interface {
	Get(ctx context.Context, externalID string) (*domain.Preferences, error)
	Update(ctx context.Context, externalID string, patch domain.PreferencesPatch) (*domain.Preferences, error)
}

// ProfileService exposes the authenticated user's own record.
type ProfileService interface {
	Get(ctx context.Context, externalID string) (*domain.Profile, error)
	UpdateDisplayName(ctx context.Context, externalID string, displayName *string) (*domain.User, error)
	Delete(ctx context.Context, externalID string) error
}
