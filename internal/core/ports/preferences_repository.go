package ports

import (
	"context"

	"github.com/buytime/backend/internal/core/domain"
)

// PreferencesRepository reads and patches focus preferences.
type PreferencesRepository interface {
	Get(ctx context.Context, externalID string) (*domain.Preferences, error)
	Update(ctx context.Context, externalID string, patch domain.PreferencesPatch) (*domain.Preferences, error)
}
