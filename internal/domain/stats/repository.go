package stats

import (
	"context"
	"time"
)

// StatsRepository reads attendance for streaks and monthly rollups.
type StatsRepository interface {
	// GetMonthly returns nil when no precomputed row exists.
	GetMonthly(ctx context.Context, schoolID, userID string, month, year int) (*MonthlyStats, error)

	// ListPresentRecords returns PRESENT and LATE records of the users within [from, to],
	// newest date first.
	ListPresentRecords(ctx context.Context, schoolID string, userIDs []string, from, to time.Time) ([]DayRecord, error)

	// ListUserRecords returns all records of one user within [from, to].
	ListUserRecords(ctx context.Context, schoolID, userID string, from, to time.Time) ([]DayRecord, error)

	// ListUserIDsWithRecords returns users of the school with at least one record within [from, to].
	ListUserIDsWithRecords(ctx context.Context, schoolID string, from, to time.Time) ([]string, error)

	UpsertMonthly(ctx context.Context, row MonthlyRow) error
}
