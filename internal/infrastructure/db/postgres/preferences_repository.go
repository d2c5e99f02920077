package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/buytime/backend/internal/core/domain"
)

// PreferencesRepository implements ports.PreferencesRepository.
type PreferencesRepository struct {
	s *Store
}

func scanPreferences(row rowScanner) (*domain.Preferences, error) {
	var (
		p    domain.Preferences
		mode string
	)
	if err := row.Scan(&p.UserID, &p.FocusDurationMinutes, &mode, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.FocusMode = domain.FocusMode(mode)
	return &p, nil
}

func (r *PreferencesRepository) Get(ctx context.Context, externalID string) (*domain.Preferences, error) {
	ctx, cancel := r.s.withTimeout(ctx)
	defer cancel()

	row := r.s.db.QueryRowContext(ctx,
		`SELECT p.user_id, p.focus_duration_minutes, p.focus_mode, p.updated_at
		 FROM user_preferences p
		 JOIN users u ON u.id = p.user_id
		 WHERE u.clerk_user_id = $1`, externalID)
	p, err := scanPreferences(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.missing(ctx, externalID)
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	return p, nil
}

func (r *PreferencesRepository) Update(ctx context.Context, externalID string, patch domain.PreferencesPatch) (*domain.Preferences, error) {
	if patch.Empty() {
		return r.Get(ctx, externalID)
	}

	ctx, cancel := r.s.withTimeout(ctx)
	defer cancel()

	set := newAssignments(externalID)
	set.setIf(patch.FocusDurationMinutes.Set, "focus_duration_minutes", patch.FocusDurationMinutes.Value)
	set.setIf(patch.FocusMode.Set, "focus_mode", string(patch.FocusMode.Value))

	row := r.s.db.QueryRowContext(ctx,
		`UPDATE user_preferences p SET `+set.clause()+`
		 FROM users u
		 WHERE u.id = p.user_id AND u.clerk_user_id = $1
		 RETURNING p.user_id, p.focus_duration_minutes, p.focus_mode, p.updated_at`,
		set.args...)
	p, err := scanPreferences(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.missing(ctx, externalID)
	}
	if err != nil {
		return nil, fmt.Errorf("update preferences: %w", err)
	}
	return p, nil
}

// missing distinguishes an unknown user from a user without preferences.
func (r *PreferencesRepository) missing(ctx context.Context, externalID string) error {
	err := missingUser(ctx, r.s.db, externalID, "preferences")
	if errors.Is(err, domain.ErrIntegrityViolation) {
		return domain.ErrPreferencesNotFound
	}
	return err
}
