package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/buytime/backend/internal/core/domain"
)

const userColumns = `id, clerk_user_id, email, display_name, subscription_tier,
	subscription_status, subscription_expires_at, created_at, updated_at`

// UserRepository implements ports.UserRepository.
type UserRepository struct {
	s *Store
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u         domain.User
		email     sql.NullString
		name      sql.NullString
		expiresAt sql.NullTime
	)
	err := row.Scan(&u.ID, &u.ExternalID, &email, &name, &u.SubscriptionTier,
		&u.SubscriptionStatus, &expiresAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Email = stringPtr(email)
	u.DisplayName = stringPtr(name)
	u.SubscriptionExpiresAt = timePtr(expiresAt)
	return &u, nil
}

// Create inserts the user together with its balance, stats and preferences
// rows. Either all four rows exist afterwards or none do.
func (r *UserRepository) Create(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
	ctx, cancel := r.s.withTimeout(ctx)
	defer cancel()

	var user *domain.User
	err := r.s.withTx(ctx, func(tx dbtx) error {
		row := tx.QueryRowContext(ctx,
			`INSERT INTO users (clerk_user_id, email, display_name)
			 VALUES ($1, $2, $3)
			 RETURNING `+userColumns,
			nu.ExternalID, nu.Email, nu.DisplayName)
		u, err := scanUser(row)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_balance (user_id) VALUES ($1)`, u.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_stats (user_id) VALUES ($1)`, u.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_preferences (user_id, focus_duration_minutes, focus_mode)
			 VALUES ($1, $2, $3)`,
			u.ID, domain.DefaultFocusDurationMinutes, string(domain.DefaultFocusMode)); err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) FindByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	ctx, cancel := r.s.withTimeout(ctx)
	defer cancel()

	row := r.s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE clerk_user_id = $1`, externalID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

// Update writes only the fields set in patch. An empty patch reads the
// current record.
func (r *UserRepository) Update(ctx context.Context, externalID string, patch domain.UserPatch) (*domain.User, error) {
	if patch.Empty() {
		return r.FindByExternalID(ctx, externalID)
	}

	ctx, cancel := r.s.withTimeout(ctx)
	defer cancel()

	set := newAssignments(externalID)
	set.setIf(patch.Email.Set, "email", patch.Email.Value)
	set.setIf(patch.DisplayName.Set, "display_name", patch.DisplayName.Value)

	row := r.s.db.QueryRowContext(ctx,
		`UPDATE users SET `+set.clause()+`
		 WHERE clerk_user_id = $1
		 RETURNING `+userColumns,
		set.args...)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

// Delete removes the user. Owned rows go with it through ON DELETE CASCADE.
func (r *UserRepository) Delete(ctx context.Context, externalID string) (bool, error) {
	ctx, cancel := r.s.withTimeout(ctx)
	defer cancel()

	res, err := r.s.db.ExecContext(ctx, `DELETE FROM users WHERE clerk_user_id = $1`, externalID)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	return n > 0, nil
}

// Profile reads the user, balance and stats in one statement.
func (r *UserRepository) Profile(ctx context.Context, externalID string) (*domain.Profile, error) {
	ctx, cancel := r.s.withTimeout(ctx)
	defer cancel()

	var (
		p          domain.Profile
		email      sql.NullString
		name       sql.NullString
		expiresAt  sql.NullTime
		hasBalance bool
		hasStats   bool
		lastDate   sql.NullTime
		firstAt    sql.NullTime
		fun, easy  int
		medium     int
		hard       int
	)
	err := r.s.db.QueryRowContext(ctx, `
		SELECT u.id, u.clerk_user_id, u.email, u.display_name, u.subscription_tier,
		       u.subscription_status, u.subscription_expires_at, u.created_at, u.updated_at,
		       b.user_id IS NOT NULL,
		       COALESCE(b.available_minutes, 0), COALESCE(b.current_streak_days, 0),
		       b.last_session_date, COALESCE(b.updated_at, u.updated_at),
		       s.user_id IS NOT NULL,
		       COALESCE(s.total_sessions_completed, 0), COALESCE(s.total_sessions_failed, 0),
		       COALESCE(s.total_focus_minutes, 0), COALESCE(s.total_earned_minutes, 0),
		       COALESCE(s.total_spent_minutes, 0), COALESCE(s.longest_streak_days, 0),
		       COALESCE(s.longest_session_minutes, 0),
		       COALESCE(s.sessions_fun_mode, 0), COALESCE(s.sessions_easy_mode, 0),
		       COALESCE(s.sessions_medium_mode, 0), COALESCE(s.sessions_hard_mode, 0),
		       s.first_session_at, COALESCE(s.updated_at, u.updated_at)
		FROM users u
		LEFT JOIN user_balance b ON b.user_id = u.id
		LEFT JOIN user_stats s ON s.user_id = u.id
		WHERE u.clerk_user_id = $1`, externalID).Scan(
		&p.User.ID, &p.User.ExternalID, &email, &name, &p.User.SubscriptionTier,
		&p.User.SubscriptionStatus, &expiresAt, &p.User.CreatedAt, &p.User.UpdatedAt,
		&hasBalance,
		&p.Balance.AvailableMinutes, &p.Balance.CurrentStreakDays,
		&lastDate, &p.Balance.UpdatedAt,
		&hasStats,
		&p.Stats.TotalSessionsCompleted, &p.Stats.TotalSessionsFailed,
		&p.Stats.TotalFocusMinutes, &p.Stats.TotalEarnedMinutes,
		&p.Stats.TotalSpentMinutes, &p.Stats.LongestStreakDays,
		&p.Stats.LongestSessionMinutes,
		&fun, &easy, &medium, &hard,
		&firstAt, &p.Stats.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	if !hasBalance {
		return nil, fmt.Errorf("%w: user %s has no balance", domain.ErrIntegrityViolation, externalID)
	}
	if !hasStats {
		return nil, fmt.Errorf("%w: user %s has no stats", domain.ErrIntegrityViolation, externalID)
	}

	p.User.Email = stringPtr(email)
	p.User.DisplayName = stringPtr(name)
	p.User.SubscriptionExpiresAt = timePtr(expiresAt)
	p.Balance.UserID = p.User.ID
	p.Balance.LastSessionDate = timePtr(lastDate)
	p.Stats.UserID = p.User.ID
	p.Stats.FirstSessionAt = timePtr(firstAt)
	p.Stats.SessionsByMode = map[domain.FocusMode]int{
		domain.ModeFun:    fun,
		domain.ModeEasy:   easy,
		domain.ModeMedium: medium,
		domain.ModeHard:   hard,
	}
	return &p, nil
}
