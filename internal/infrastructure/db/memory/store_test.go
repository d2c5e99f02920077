package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buytime/backend/internal/core/domain"
)

func TestUserRepository_CreateProvisionsGroup(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	u, err := s.Users().Create(ctx, domain.NewUser{ExternalID: "user_1"})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, domain.TierFree, u.SubscriptionTier)

	p, err := s.Users().Profile(ctx, "user_1")
	require.NoError(t, err)
	assert.Zero(t, p.Balance.AvailableMinutes)
	assert.Len(t, p.Stats.SessionsByMode, len(domain.FocusModes))

	prefs, err := s.Preferences().Get(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 30, prefs.FocusDurationMinutes)

	_, err = s.Users().Create(ctx, domain.NewUser{ExternalID: "user_1"})
	assert.ErrorIs(t, err, domain.ErrUserExists)
}

func TestUserRepository_ConcurrentCreate(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Users().Create(ctx, domain.NewUser{ExternalID: "user_race"}); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
}

func TestUserRepository_UpdateAndDelete(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	email := "a@example.com"
	u, err := s.Users().Create(ctx, domain.NewUser{ExternalID: "user_1", Email: &email})
	require.NoError(t, err)

	// Empty patch is a read.
	same, err := s.Users().Update(ctx, "user_1", domain.UserPatch{})
	require.NoError(t, err)
	assert.Equal(t, u.UpdatedAt, same.UpdatedAt)

	name := "Ada"
	got, err := s.Users().Update(ctx, "user_1", domain.UserPatch{
		DisplayName: domain.Some(&name),
		Email:       domain.Some[*string](nil),
	})
	require.NoError(t, err)
	assert.Equal(t, &name, got.DisplayName)
	assert.Nil(t, got.Email, "a set nil clears the field")

	_, err = s.Users().Update(ctx, "user_2", domain.UserPatch{DisplayName: domain.Some(&name)})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	existed, err := s.Users().Delete(ctx, "user_1")
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = s.Users().Delete(ctx, "user_1")
	require.NoError(t, err)
	assert.False(t, existed)

	_, err = s.Balances().Credit(ctx, u.ID, 5)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestBalanceRepository_Snapshot(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_, err := s.Users().Create(ctx, domain.NewUser{ExternalID: "user_1"})
	require.NoError(t, err)

	today := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	record := func(day time.Time, status domain.SessionStatus, reward int) {
		_, err := s.Balances().RecordSession(ctx, "user_1", domain.SessionRecord{
			ID: day.String() + string(status),
			Outcome: domain.SessionOutcome{
				DurationMinutes: reward, Mode: domain.ModeEasy, Status: status,
				StartedAt: day.Add(9 * time.Hour),
			},
			MultiplierUsed: 100,
			RewardMinutes:  reward,
			Day:            day,
		})
		require.NoError(t, err)
	}
	record(yesterday, domain.SessionCompleted, 10)
	record(today, domain.SessionCompleted, 20)
	record(today, domain.SessionFailed, 0)
	require.NoError(t, s.Balances().AddTimeSpending(ctx, "user_1", 7, today.Add(12*time.Hour)))
	require.NoError(t, s.Balances().AddTimeSpending(ctx, "user_1", 3, yesterday))

	snap, err := s.Balances().Snapshot(ctx, "user_1", today)
	require.NoError(t, err)
	assert.Equal(t, 30, snap.AvailableMinutes)
	assert.Equal(t, 2, snap.CurrentStreakDays)
	assert.Equal(t, domain.TodayTotals{
		EarnedMinutes:     20,
		SpentMinutes:      7,
		SessionsCompleted: 1,
		SessionsFailed:    1,
	}, snap.Today)
}

func TestBalanceRepository_SnapshotUsesSessionDay(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_, err := s.Users().Create(ctx, domain.NewUser{ExternalID: "user_1"})
	require.NoError(t, err)

	today := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	// Started before midnight, reported after it.
	_, err = s.Balances().RecordSession(ctx, "user_1", domain.SessionRecord{
		ID: "late-night",
		Outcome: domain.SessionOutcome{
			DurationMinutes: 40, Mode: domain.ModeEasy, Status: domain.SessionCompleted,
			StartedAt: today.Add(-20 * time.Minute),
			EndedAt:   today.Add(20 * time.Minute),
		},
		MultiplierUsed: 100,
		RewardMinutes:  40,
		Day:            today,
	})
	require.NoError(t, err)

	snap, err := s.Balances().Snapshot(ctx, "user_1", today)
	require.NoError(t, err)
	require.NotNil(t, snap.LastSessionDate)
	assert.Equal(t, today, *snap.LastSessionDate)
	assert.Equal(t, domain.TodayTotals{EarnedMinutes: 40, SessionsCompleted: 1}, snap.Today)

	snap, err = s.Balances().Snapshot(ctx, "user_1", today.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Zero(t, snap.Today)
}

func TestUserRepository_DeleteRemovesSpending(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now().UTC()
	for _, id := range []string{"user_1", "user_2"} {
		_, err := s.Users().Create(ctx, domain.NewUser{ExternalID: id})
		require.NoError(t, err)
		require.NoError(t, s.Balances().AddTimeSpending(ctx, id, 5, now))
	}

	_, err := s.Users().Delete(ctx, "user_1")
	require.NoError(t, err)
	require.Len(t, s.spending, 1)

	_, err = s.Users().Create(ctx, domain.NewUser{ExternalID: "user_1"})
	require.NoError(t, err)
	snap, err := s.Balances().Snapshot(ctx, "user_1", now)
	require.NoError(t, err)
	assert.Zero(t, snap.Today.SpentMinutes)

	snap, err = s.Balances().Snapshot(ctx, "user_2", now)
	require.NoError(t, err)
	assert.Equal(t, 5, snap.Today.SpentMinutes)
}

func TestPreferencesRepository_Update(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_, err := s.Users().Create(ctx, domain.NewUser{ExternalID: "user_1"})
	require.NoError(t, err)

	got, err := s.Preferences().Update(ctx, "user_1", domain.PreferencesPatch{FocusMode: domain.Some(domain.ModeFun)})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeFun, got.FocusMode)
	assert.Equal(t, domain.DefaultFocusDurationMinutes, got.FocusDurationMinutes)

	_, err = s.Preferences().Update(ctx, "user_2", domain.PreferencesPatch{FocusMode: domain.Some(domain.ModeFun)})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
