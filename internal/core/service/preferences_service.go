package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/buytime/backend/internal/core/domain"
	"github.com/buytime/backend/internal/core/ports"
)

type PreferencesService struct {
	repo ports.PreferencesRepository
	log  zerolog.Logger
}

func NewPreferencesService(repo ports.PreferencesRepository, log zerolog.Logger) *PreferencesService {
	return &PreferencesService{repo: repo, log: log}
}

func (s *PreferencesService) Get(ctx context.Context, externalID string) (*domain.Preferences, error) {
	prefs, err := s.repo.Get(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	return prefs, nil
}

// Update validates the patch before touching storage.
func (s *PreferencesService) Update(ctx context.Context, externalID string, patch domain.PreferencesPatch) (*domain.Preferences, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	prefs, err := s.repo.Update(ctx, externalID, patch)
	if err != nil {
		return nil, fmt.Errorf("update preferences: %w", err)
	}
	s.log.Info().
		Str("external_id", externalID).
		Int("focus_duration_minutes", prefs.FocusDurationMinutes).
		Str("focus_mode", string(prefs.FocusMode)).
		Msg("preferences updated")
	return prefs, nil
}
