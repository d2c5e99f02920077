package ports

import (
	"context"

	"github.com/buytime/backend/internal/core/domain"
)

// UserRepository owns the user record group: user, balance, stats and
// preferences are created together and removed together.
type UserRepository interface {
	// Create provisions the whole group in one transaction.
	// Returns domain.ErrUserExists when the external id is taken.
	Create(ctx context.Context, u domain.NewUser) (*domain.User, error)
	// FindByExternalID returns domain.ErrUserNotFound when absent.
	FindByExternalID(ctx context.Context, externalID string) (*domain.User, error)
	// Update applies only the fields set in patch.
	// Returns domain.ErrUserNotFound when absent.
	Update(ctx context.Context, externalID string, patch domain.UserPatch) (*domain.User, error)
	// Delete removes the whole group and reports whether it existed.
	Delete(ctx context.Context, externalID string) (bool, error)
	// Profile reads the user with its balance and stats.
	Profile(ctx context.Context, externalID string) (*domain.Profile, error)
}
