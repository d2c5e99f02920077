package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/buytime/backend/internal/core/domain"
	"github.com/buytime/backend/internal/core/ports"
)

// ProfileService serves the authenticated user's own identity record.
type ProfileService struct {
	users ports.UserRepository
	log   zerolog.Logger
}

func NewProfileService(users ports.UserRepository, log zerolog.Logger) *ProfileService {
	return &ProfileService{users: users, log: log}
}

func (s *ProfileService) Get(ctx context.Context, externalID string) (*domain.Profile, error) {
	p, err := s.users.Profile(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// UpdateDisplayName sets the display name. A nil name leaves the record as is.
func (s *ProfileService) UpdateDisplayName(ctx context.Context, externalID string, displayName *string) (*domain.User, error) {
	var patch domain.UserPatch
	if displayName != nil {
		patch.DisplayName = domain.Some(displayName)
	}
	u, err := s.users.Update(ctx, externalID, patch)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}

// Delete removes the user group. Deleting an absent user is ErrUserNotFound,
// unlike the webhook path where it is a no-op.
func (s *ProfileService) Delete(ctx context.Context, externalID string) error {
	existed, err := s.users.Delete(ctx, externalID)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if !existed {
		return domain.ErrUserNotFound
	}
	s.log.Info().Str("external_id", externalID).Msg("user deleted")
	return nil
}
