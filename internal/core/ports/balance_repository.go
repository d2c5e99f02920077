package ports

import (
	"context"
	"time"

	"github.com/buytime/backend/internal/core/domain"
)

// BalanceRepository mutates and reads the minute ledger.
type BalanceRepository interface {
	// Credit atomically adds minutes to the available balance of userID.
	Credit(ctx context.Context, userID string, minutes int) (*domain.Balance, error)
	// SetAvailable overwrites the available balance. Last writer wins.
	SetAvailable(ctx context.Context, externalID string, minutes int) (*domain.Balance, error)
	// Snapshot reads the balance and the totals of day in one consistent read.
	Snapshot(ctx context.Context, externalID string, day time.Time) (*domain.BalanceSnapshot, error)
	// RecordSession stores a session and applies its reward, streak and stats
	// changes in one transaction.
	RecordSession(ctx context.Context, externalID string, rec domain.SessionRecord) (*domain.Balance, error)
}
