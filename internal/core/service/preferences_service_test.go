package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buytime/backend/internal/core/domain"
	"github.com/buytime/backend/internal/infrastructure/db/memory"
)

func TestPreferencesService(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	_, err := store.Users().Create(ctx, domain.NewUser{ExternalID: "user_prefs"})
	require.NoError(t, err)
	svc := NewPreferencesService(store.Preferences(), zerolog.Nop())

	prefs, err := svc.Get(ctx, "user_prefs")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultFocusDurationMinutes, prefs.FocusDurationMinutes)
	assert.Equal(t, domain.DefaultFocusMode, prefs.FocusMode)

	prefs, err = svc.Update(ctx, "user_prefs", domain.PreferencesPatch{FocusMode: domain.Some(domain.ModeHard)})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeHard, prefs.FocusMode)
	assert.Equal(t, domain.DefaultFocusDurationMinutes, prefs.FocusDurationMinutes, "absent fields are untouched")

	prefs, err = svc.Update(ctx, "user_prefs", domain.PreferencesPatch{FocusDurationMinutes: domain.Some(240)})
	require.NoError(t, err)
	assert.Equal(t, 240, prefs.FocusDurationMinutes)
	assert.Equal(t, domain.ModeHard, prefs.FocusMode)

	_, err = svc.Update(ctx, "user_prefs", domain.PreferencesPatch{})
	assert.ErrorIs(t, err, domain.ErrEmptyPatch)

	_, err = svc.Update(ctx, "user_prefs", domain.PreferencesPatch{FocusDurationMinutes: domain.Some(0)})
	assert.ErrorIs(t, err, domain.ErrInvalidFocusDuration)

	_, err = svc.Get(ctx, "user_unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
