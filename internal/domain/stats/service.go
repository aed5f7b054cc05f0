package stats

import (
	"context"
)

// StatsService computes streaks and monthly statistics.
type StatsService interface {
	// ComputeStreaks returns the current streak of every requested user. An empty input
	// returns an empty map without touching storage.
	ComputeStreaks(ctx context.Context, schoolID string, userIDs []string) (map[string]int, error)

	// GetMonthlyStats serves the precomputed row when present, otherwise computes the
	// figures read-only from attendance records.
	GetMonthlyStats(ctx context.Context, schoolID, userID string, month, year int) (MonthlyStats, error)

	// RollupMonth recomputes and stores the month's rows for every user with records.
	RollupMonth(ctx context.Context, schoolID string, month, year int) (int, error)
}
