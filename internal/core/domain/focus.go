package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// FocusMode is a difficulty level selected by the user. The set is closed.
type FocusMode string

const (
	ModeFun    FocusMode = "fun"
	ModeEasy   FocusMode = "easy"
	ModeMedium FocusMode = "medium"
	ModeHard   FocusMode = "hard"
)

// FocusModes lists every valid mode in display order.
var FocusModes = []FocusMode{ModeFun, ModeEasy, ModeMedium, ModeHard}

// DefaultRewardTable holds the reward multiplier of each mode, in percent.
var DefaultRewardTable = RewardTable{
	ModeFun:    150,
	ModeEasy:   100,
	ModeMedium: 50,
	ModeHard:   25,
}

// MaxSessionDurationMinutes bounds a single recorded session to one day.
const MaxSessionDurationMinutes = 24 * 60

// MaxMinutes is the largest minute count the ledger can store.
const MaxMinutes = math.MaxInt32

var (
	hundred    = decimal.NewFromInt(100)
	maxMinutes = decimal.NewFromInt(MaxMinutes)
)

// Valid reports whether m belongs to the closed mode set. Matching is case-sensitive.
func (m FocusMode) Valid() bool {
	switch m {
	case ModeFun, ModeEasy, ModeMedium, ModeHard:
		return true
	}
	return false
}

// ParseFocusMode validates s against the closed mode set.
func ParseFocusMode(s string) (FocusMode, error) {
	m := FocusMode(s)
	if !m.Valid() {
		return "", fmt.Errorf("parse focus mode %q: %w", s, ErrInvalidMode)
	}
	return m, nil
}

// RewardTable maps each focus mode to its percentage multiplier.
type RewardTable map[FocusMode]int

// NewRewardTable returns DefaultRewardTable with the given overrides applied.
// Overrides may only re-price existing modes; they never extend the set.
func NewRewardTable(overrides map[string]int) (RewardTable, error) {
	t := make(RewardTable, len(DefaultRewardTable))
	for m, pct := range DefaultRewardTable {
		t[m] = pct
	}
	for name, pct := range overrides {
		m, err := ParseFocusMode(name)
		if err != nil {
			return nil, err
		}
		if pct < 0 {
			return nil, fmt.Errorf("multiplier for %s is negative: %w", name, ErrValidation)
		}
		t[m] = pct
	}
	return t, nil
}

// Multiplier returns the percentage multiplier for m.
func (t RewardTable) Multiplier(m FocusMode) (int, error) {
	pct, ok := t[m]
	if !ok || !m.Valid() {
		return 0, fmt.Errorf("multiplier for %q: %w", m, ErrInvalidMode)
	}
	return pct, nil
}

// Compute converts a focus duration into reward minutes:
// round(duration * multiplier / 100), rounding halves up. A reward that
// would not fit the ledger is rejected as an invalid duration.
func (t RewardTable) Compute(durationMinutes int, m FocusMode) (int, error) {
	pct, err := t.Multiplier(m)
	if err != nil {
		return 0, err
	}
	if durationMinutes < 0 {
		return 0, ErrInvalidDuration
	}
	reward := decimal.NewFromInt(int64(durationMinutes)).
		Mul(decimal.NewFromInt(int64(pct))).
		Div(hundred).
		Round(0)
	if reward.GreaterThan(maxMinutes) {
		return 0, fmt.Errorf("reward for %d minutes of %s: %w", durationMinutes, m, ErrInvalidDuration)
	}
	return int(reward.IntPart()), nil
}

// ComputeReward applies DefaultRewardTable.
func ComputeReward(durationMinutes int, m FocusMode) (int, error) {
	return DefaultRewardTable.Compute(durationMinutes, m)
}

// SessionStatus is the outcome of a focus attempt.
type SessionStatus string

const (
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// ParseSessionStatus validates s as a terminal session outcome.
func ParseSessionStatus(s string) (SessionStatus, error) {
	switch st := SessionStatus(s); st {
	case SessionCompleted, SessionFailed:
		return st, nil
	}
	return "", ErrInvalidOutcome
}

// SessionOutcome describes a finished focus attempt reported by the client.
type SessionOutcome struct {
	DurationMinutes        int
	PlannedDurationMinutes *int
	Mode                   FocusMode
	Status                 SessionStatus
	StartedAt              time.Time
	EndedAt                time.Time
}

// SessionRecord is what the ledger persists for one outcome: the outcome
// plus the multiplier and reward that were in force when it was recorded.
type SessionRecord struct {
	ID             string
	Outcome        SessionOutcome
	MultiplierUsed int
	RewardMinutes  int
	Day            time.Time
}

// AdvanceStreak returns the streak after a completed session on day, given
// the current streak and the date of the previous qualifying session.
// Another session on the same day keeps the streak, a session on the next
// day extends it and any gap restarts it at 1.
func AdvanceStreak(current int, last *time.Time, day time.Time) int {
	if last == nil {
		return 1
	}
	prev := dateOf(*last)
	switch today := dateOf(day); {
	case prev.Equal(today):
		if current < 1 {
			return 1
		}
		return current
	case prev.AddDate(0, 0, 1).Equal(today):
		return current + 1
	}
	return 1
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
