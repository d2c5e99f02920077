package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/buytime/backend/internal/core/domain"
)

const (
	balanceColumns = `user_id, available_minutes, current_streak_days, last_session_date, updated_at`
	dayLayout      = "2006-01-02"
)

// modeCounters maps each focus mode to its stats column.
var modeCounters = map[domain.FocusMode]string{
	domain.ModeFun:    "sessions_fun_mode",
	domain.ModeEasy:   "sessions_easy_mode",
	domain.ModeMedium: "sessions_medium_mode",
	domain.ModeHard:   "sessions_hard_mode",
}

// BalanceRepository implements ports.BalanceRepository.
type BalanceRepository struct {
	s *Store
}

func scanBalance(row rowScanner) (*domain.Balance, error) {
	var (
		b        domain.Balance
		lastDate sql.NullTime
	)
	if err := row.Scan(&b.UserID, &b.AvailableMinutes, &b.CurrentStreakDays, &lastDate, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.LastSessionDate = timePtr(lastDate)
	return &b, nil
}

// Credit adds minutes in a single statement so concurrent credits never
// overwrite each other.
func (r *BalanceRepository) Credit(ctx context.Context, userID string, minutes int) (*domain.Balance, error) {
	ctx, cancel := r.s.withTimeout(ctx)
	defer cancel()

	row := r.s.db.QueryRowContext(ctx,
		`UPDATE user_balance
		 SET available_minutes = available_minutes + $2, updated_at = now()
		 WHERE user_id = $1
		 RETURNING `+balanceColumns,
		userID, minutes)
	b, err := scanBalance(row)
	switch {
	case err == nil:
		return b, nil
	case isInvalidText(err):
		return nil, domain.ErrUserNotFound
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("credit balance: %w", err)
	}

	var exists bool
	if err := r.s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return nil, domain.ErrUserNotFound
	}
	return nil, fmt.Errorf("%w: user %s has no balance", domain.ErrIntegrityViolation, userID)
}

// SetAvailable overwrites the balance. Concurrent writers resolve as last
// writer wins.
func (r *BalanceRepository) SetAvailable(ctx context.Context, externalID string, minutes int) (*domain.Balance, error) {
	ctx, cancel := r.s.withTimeout(ctx)
	defer cancel()

	row := r.s.db.QueryRowContext(ctx,
		`UPDATE user_balance b
		 SET available_minutes = $2, updated_at = now()
		 FROM users u
		 WHERE u.id = b.user_id AND u.clerk_user_id = $1
		 RETURNING b.user_id, b.available_minutes, b.current_streak_days, b.last_session_date, b.updated_at`,
		externalID, minutes)
	b, err := scanBalance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, missingUser(ctx, r.s.db, externalID, "balance")
	}
	if err != nil {
		return nil, fmt.Errorf("set balance: %w", err)
	}
	return b, nil
}

// Snapshot reads the balance and the day's totals in one statement, so the
// figures are mutually consistent.
func (r *BalanceRepository) Snapshot(ctx context.Context, externalID string, day time.Time) (*domain.BalanceSnapshot, error) {
	ctx, cancel := r.s.withTimeout(ctx)
	defer cancel()

	y, m, d := day.UTC().Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	var (
		snap     domain.BalanceSnapshot
		lastDate sql.NullTime
	)
	err := r.s.db.QueryRowContext(ctx, `
		WITH u AS (
			SELECT id FROM users WHERE clerk_user_id = $1
		), sess AS (
			SELECT COUNT(*) FILTER (WHERE status = 'completed') AS completed,
			       COUNT(*) FILTER (WHERE status = 'failed') AS failed,
			       COALESCE(SUM(reward_minutes) FILTER (WHERE status = 'completed'), 0) AS earned
			FROM focus_sessions
			WHERE user_id = (SELECT id FROM u) AND session_date = $2::date
		), spent AS (
			SELECT COALESCE(SUM(minutes_spent), 0) AS spent
			FROM time_spending
			WHERE user_id = (SELECT id FROM u) AND started_at >= $3 AND started_at < $4
		)
		SELECT b.user_id, b.available_minutes, b.current_streak_days, b.last_session_date, b.updated_at,
		       sess.completed, sess.failed, sess.earned, spent.spent
		FROM u
		JOIN user_balance b ON b.user_id = u.id
		CROSS JOIN sess
		CROSS JOIN spent`,
		externalID, from.Format(dayLayout), from, to).Scan(
		&snap.UserID, &snap.AvailableMinutes, &snap.CurrentStreakDays, &lastDate, &snap.UpdatedAt,
		&snap.Today.SessionsCompleted, &snap.Today.SessionsFailed, &snap.Today.EarnedMinutes,
		&snap.Today.SpentMinutes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, missingUser(ctx, r.s.db, externalID, "balance")
	}
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	snap.LastSessionDate = timePtr(lastDate)
	return &snap, nil
}

// RecordSession persists the session and applies its effects on the balance
// and stats in one transaction. The balance row is locked for the duration,
// so streak evaluation sees the latest committed session date.
func (r *BalanceRepository) RecordSession(ctx context.Context, externalID string, rec domain.SessionRecord) (*domain.Balance, error) {
	ctx, cancel := r.s.withTimeout(ctx)
	defer cancel()

	column, ok := modeCounters[rec.Outcome.Mode]
	if !ok {
		return nil, domain.ErrInvalidMode
	}

	var out *domain.Balance
	err := r.s.withTx(ctx, func(tx dbtx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT b.user_id, b.available_minutes, b.current_streak_days, b.last_session_date, b.updated_at
			 FROM user_balance b
			 JOIN users u ON u.id = b.user_id
			 WHERE u.clerk_user_id = $1
			 FOR UPDATE OF b`,
			externalID)
		b, err := scanBalance(row)
		if errors.Is(err, sql.ErrNoRows) {
			return missingUser(ctx, tx, externalID, "balance")
		}
		if err != nil {
			return fmt.Errorf("lock balance: %w", err)
		}

		o := rec.Outcome
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO focus_sessions (id, user_id, mode, multiplier_used, started_at, ended_at,
			     planned_duration_minutes, actual_duration_minutes, reward_minutes, status, session_date)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::date)`,
			rec.ID, b.UserID, string(o.Mode), rec.MultiplierUsed, o.StartedAt, o.EndedAt,
			o.PlannedDurationMinutes, o.DurationMinutes, rec.RewardMinutes, string(o.Status),
			rec.Day.Format(dayLayout)); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		if o.Status == domain.SessionFailed {
			res, err := tx.ExecContext(ctx,
				`UPDATE user_stats
				 SET total_sessions_failed = total_sessions_failed + 1, updated_at = now()
				 WHERE user_id = $1`, b.UserID)
			if err := requireRow(res, err, externalID); err != nil {
				return err
			}
			out = b
			return nil
		}

		streak := domain.AdvanceStreak(b.CurrentStreakDays, b.LastSessionDate, rec.Day)
		row = tx.QueryRowContext(ctx,
			`UPDATE user_balance
			 SET available_minutes = available_minutes + $2,
			     current_streak_days = $3,
			     last_session_date = $4::date,
			     updated_at = now()
			 WHERE user_id = $1
			 RETURNING `+balanceColumns,
			b.UserID, rec.RewardMinutes, streak, rec.Day.Format(dayLayout))
		if out, err = scanBalance(row); err != nil {
			return fmt.Errorf("credit session: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE user_stats
			 SET total_sessions_completed = total_sessions_completed + 1,
			     total_focus_minutes = total_focus_minutes + $2,
			     total_earned_minutes = total_earned_minutes + $3,
			     longest_streak_days = GREATEST(longest_streak_days, $4),
			     longest_session_minutes = GREATEST(longest_session_minutes, $2),
			     `+column+` = `+column+` + 1,
			     first_session_at = COALESCE(first_session_at, $5),
			     updated_at = now()
			 WHERE user_id = $1`,
			b.UserID, o.DurationMinutes, rec.RewardMinutes, streak, o.StartedAt)
		return requireRow(res, err, externalID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrIntegrityViolation) {
			return nil, err
		}
		return nil, fmt.Errorf("record session: %w", err)
	}
	return out, nil
}

// requireRow turns an update that touched no stats row into an integrity
// violation.
func requireRow(res sql.Result, err error, externalID string) error {
	if err != nil {
		return fmt.Errorf("update stats: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update stats: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: user %s has no stats", domain.ErrIntegrityViolation, externalID)
	}
	return nil
}
