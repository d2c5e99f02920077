package domain

import "time"

const (
	TierFree    = "free"
	TierPremium = "premium"

	SubscriptionNone = "none"
)

const (
	DefaultFocusDurationMinutes = 30
	DefaultFocusMode            = ModeEasy

	MinFocusDurationMinutes = 1
	MaxFocusDurationMinutes = 240
)

// User is the local identity record mirrored from the identity provider.
// ExternalID is the provider's user id and is unique across users.
type User struct {
	ID                    string
	ExternalID            string
	Email                 *string
	DisplayName           *string
	SubscriptionTier      string
	SubscriptionStatus    string
	SubscriptionExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// NewUser carries the fields needed to provision a user group.
type NewUser struct {
	ExternalID  string
	Email       *string
	DisplayName *string
}

// Balance holds a user's spendable minutes and streak.
type Balance struct {
	UserID            string
	AvailableMinutes  int
	CurrentStreakDays int
	LastSessionDate   *time.Time
	UpdatedAt         time.Time
}

// TodayTotals aggregates the current day's activity.
type TodayTotals struct {
	EarnedMinutes     int
	SpentMinutes      int
	SessionsCompleted int
	SessionsFailed    int
}

// BalanceSnapshot is a balance and today's totals read at one point in time.
type BalanceSnapshot struct {
	Balance
	Today TodayTotals
}

// Stats are lifetime counters for a user.
type Stats struct {
	UserID                 string
	TotalSessionsCompleted int
	TotalSessionsFailed    int
	TotalFocusMinutes      int
	TotalEarnedMinutes     int
	TotalSpentMinutes      int
	LongestStreakDays      int
	LongestSessionMinutes  int
	SessionsByMode         map[FocusMode]int
	FirstSessionAt         *time.Time
	UpdatedAt              time.Time
}

// Preferences are the user's default focus settings.
type Preferences struct {
	UserID               string
	FocusDurationMinutes int
	FocusMode            FocusMode
	UpdatedAt            time.Time
}

// Profile is a user together with the records owned alongside it.
type Profile struct {
	User    User
	Balance Balance
	Stats   Stats
}

// Field is an optional patch value. A zero Field leaves the target unchanged;
// a set Field overwrites it, including with a nil pointer.
type Field[T any] struct {
	Value T
	Set   bool
}

// Some returns a set Field holding v.
func Some[T any](v T) Field[T] {
	return Field[T]{Value: v, Set: true}
}

// UserPatch is a partial update of mutable identity fields.
type UserPatch struct {
	Email       Field[*string]
	DisplayName Field[*string]
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return !p.Email.Set && !p.DisplayName.Set
}

// PreferencesPatch is a partial update of focus preferences.
type PreferencesPatch struct {
	FocusDurationMinutes Field[int]
	FocusMode            Field[FocusMode]
}

// Empty reports whether the patch changes nothing.
func (p PreferencesPatch) Empty() bool {
	return !p.FocusDurationMinutes.Set && !p.FocusMode.Set
}

// Validate checks every present field against its allowed range.
func (p PreferencesPatch) Validate() error {
	if p.Empty() {
		return ErrEmptyPatch
	}
	if p.FocusDurationMinutes.Set {
		d := p.FocusDurationMinutes.Value
		if d < MinFocusDurationMinutes || d > MaxFocusDurationMinutes {
			return ErrInvalidFocusDuration
		}
	}
	if p.FocusMode.Set && !p.FocusMode.Value.Valid() {
		return ErrInvalidMode
	}
	return nil
}

// NewStats returns zeroed stats with a counter for every mode.
func NewStats(userID string, now time.Time) Stats {
	byMode := make(map[FocusMode]int, len(FocusModes))
	for _, m := range FocusModes {
		byMode[m] = 0
	}
	return Stats{UserID: userID, SessionsByMode: byMode, UpdatedAt: now}
}

// ApplySession folds one recorded session into the counters. streak is the
// balance streak after the session was applied.
func (s *Stats) ApplySession(rec SessionRecord, streak int, now time.Time) {
	o := rec.Outcome
	if o.Status == SessionFailed {
		s.TotalSessionsFailed++
		s.UpdatedAt = now
		return
	}
	s.TotalSessionsCompleted++
	s.TotalFocusMinutes += o.DurationMinutes
	s.TotalEarnedMinutes += rec.RewardMinutes
	if streak > s.LongestStreakDays {
		s.LongestStreakDays = streak
	}
	if o.DurationMinutes > s.LongestSessionMinutes {
		s.LongestSessionMinutes = o.DurationMinutes
	}
	if s.SessionsByMode == nil {
		s.SessionsByMode = make(map[FocusMode]int, len(FocusModes))
	}
	s.SessionsByMode[o.Mode]++
	if s.FirstSessionAt == nil {
		started := o.StartedAt
		s.FirstSessionAt = &started
	}
	s.UpdatedAt = now
}
