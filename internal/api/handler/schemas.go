package handler

import (
	"encoding/json"
	"time"

	"github.com/buytime/backend/internal/core/domain"
)

// --- Requests ---

type setBalanceRequest struct {
	AvailableMinutes *int `json:"availableMinutes" validate:"required,min=0,max=2147483647"`
}

type recordSessionRequest struct {
	DurationMinutes        *int       `json:"durationMinutes"        validate:"required,min=0,max=1440"`
	PlannedDurationMinutes *int       `json:"plannedDurationMinutes" validate:"omitempty,min=1,max=1440"`
	Mode                   string     `json:"mode"                   validate:"required,focusmode"`
	Status                 string     `json:"status"                 validate:"required,oneof=completed failed"`
	StartedAt              *time.Time `json:"startedAt"`
	EndedAt                *time.Time `json:"endedAt"`
}

type updatePreferencesRequest struct {
	FocusDurationMinutes *int    `json:"focusDurationMinutes" validate:"omitempty,min=1,max=240"`
	FocusMode            *string `json:"focusMode"            validate:"omitempty,focusmode"`
}

// updateProfileRequest keeps displayName raw so an explicit null can be told
// apart from an absent field.
type updateProfileRequest struct {
	DisplayName json.RawMessage `json:"displayName" swaggertype:"string"`
}

// --- Responses ---

type todayResponse struct {
	EarnedMinutes     int `json:"earnedMinutes"`
	SpentMinutes      int `json:"spentMinutes"`
	SessionsCompleted int `json:"sessionsCompleted"`
	SessionsFailed    int `json:"sessionsFailed"`
}

type balanceResponse struct {
	AvailableMinutes  int            `json:"availableMinutes"`
	CurrentStreakDays int            `json:"currentStreakDays"`
	LastSessionDate   *string        `json:"lastSessionDate"`
	UpdatedAt         time.Time      `json:"updatedAt"`
	Today             *todayResponse `json:"today,omitempty"`
}

type sessionResponse struct {
	RewardMinutes  int             `json:"rewardMinutes"`
	MultiplierUsed int             `json:"multiplierUsed"`
	Balance        balanceResponse `json:"balance"`
}

type preferencesResponse struct {
	FocusDurationMinutes int       `json:"focusDurationMinutes"`
	FocusMode            string    `json:"focusMode"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

type balanceSummaryResponse struct {
	AvailableMinutes  int `json:"availableMinutes"`
	CurrentStreakDays int `json:"currentStreakDays"`
}

type profileResponse struct {
	ID                    string                 `json:"id"`
	Email                 *string                `json:"email"`
	DisplayName           *string                `json:"displayName"`
	SubscriptionTier      string                 `json:"subscriptionTier"`
	SubscriptionStatus    string                 `json:"subscriptionStatus"`
	SubscriptionExpiresAt *time.Time             `json:"subscriptionExpiresAt"`
	CreatedAt             time.Time              `json:"createdAt"`
	Balance               balanceSummaryResponse `json:"balance"`
}

type userResponse struct {
	ID          string    `json:"id"`
	Email       *string   `json:"email"`
	DisplayName *string   `json:"displayName"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type deletedResponse struct {
	Deleted bool `json:"deleted"`
}

type receivedResponse struct {
	Received bool `json:"received"`
}

// --- Mappers ---

func toBalanceResponse(b domain.Balance) balanceResponse {
	out := balanceResponse{
		AvailableMinutes:  b.AvailableMinutes,
		CurrentStreakDays: b.CurrentStreakDays,
		UpdatedAt:         b.UpdatedAt,
	}
	if b.LastSessionDate != nil {
		d := b.LastSessionDate.Format(time.DateOnly)
		out.LastSessionDate = &d
	}
	return out
}

func toSnapshotResponse(s *domain.BalanceSnapshot) balanceResponse {
	out := toBalanceResponse(s.Balance)
	out.Today = &todayResponse{
		EarnedMinutes:     s.Today.EarnedMinutes,
		SpentMinutes:      s.Today.SpentMinutes,
		SessionsCompleted: s.Today.SessionsCompleted,
		SessionsFailed:    s.Today.SessionsFailed,
	}
	return out
}

func toPreferencesResponse(p *domain.Preferences) preferencesResponse {
	return preferencesResponse{
		FocusDurationMinutes: p.FocusDurationMinutes,
		FocusMode:            string(p.FocusMode),
		UpdatedAt:            p.UpdatedAt,
	}
}

func toProfileResponse(p *domain.Profile) profileResponse {
	return profileResponse{
		ID:                    p.User.ID,
		Email:                 p.User.Email,
		DisplayName:           p.User.DisplayName,
		SubscriptionTier:      p.User.SubscriptionTier,
		SubscriptionStatus:    p.User.SubscriptionStatus,
		SubscriptionExpiresAt: p.User.SubscriptionExpiresAt,
		CreatedAt:             p.User.CreatedAt,
		Balance: balanceSummaryResponse{
			AvailableMinutes:  p.Balance.AvailableMinutes,
			CurrentStreakDays: p.Balance.CurrentStreakDays,
		},
	}
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		UpdatedAt:   u.UpdatedAt,
	}
}
