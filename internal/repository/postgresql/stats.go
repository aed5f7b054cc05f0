package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/stats"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type statsRepositoryImpl struct {
	db *database.DB
}

func NewStatsRepository(db *database.DB) stats.StatsRepository {
	return &statsRepositoryImpl{db: db}
}

// GetMonthly implements stats.StatsRepository.
func (s *statsRepositoryImpl) GetMonthly(ctx context.Context, schoolID, userID string, month, year int) (*stats.MonthlyStats, error) {
	q := GetQuerier(ctx, s.db)

	query := `
		SELECT total_working_days, total_present, total_absent, total_late, total_leaves,
			attendance_percentage::float8
		FROM attendance_stats
		WHERE school_id = $1 AND user_id = $2 AND month = $3 AND year = $4
	`

	var m stats.MonthlyStats
	err := q.QueryRow(ctx, query, schoolID, userID, month, year).Scan(
		&m.TotalDays,
		&m.PresentDays,
		&m.AbsentDays,
		&m.LateDays,
		&m.LeaveDays,
		&m.AttendancePercentage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get monthly stats: %w", err)
	}
	return &m, nil
}

func collectDayRecords(rows pgx.Rows) ([]stats.DayRecord, error) {
	defer rows.Close()

	var records []stats.DayRecord
	for rows.Next() {
		var r stats.DayRecord
		if err := rows.Scan(&r.UserID, &r.Date, &r.Status, &r.IsLateCheckIn); err != nil {
			return nil, fmt.Errorf("failed to scan attendance record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendance records: %w", err)
	}
	return records, nil
}

// ListPresentRecords implements stats.StatsRepository.
func (s *statsRepositoryImpl) ListPresentRecords(ctx context.Context, schoolID string, userIDs []string, from, to time.Time) ([]stats.DayRecord, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	q := GetQuerier(ctx, s.db)

	query := `
		SELECT user_id, date, status, is_late_check_in
		FROM attendance_records
		WHERE school_id = $1
		  AND user_id = ANY($2::uuid[])
		  AND date BETWEEN $3 AND $4
		  AND status IN ('PRESENT', 'LATE')
		ORDER BY user_id, date DESC
	`

	rows, err := q.Query(ctx, query, schoolID, userIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list present records: %w", err)
	}
	return collectDayRecords(rows)
}

// ListUserRecords implements stats.StatsRepository.
func (s *statsRepositoryImpl) ListUserRecords(ctx context.Context, schoolID, userID string, from, to time.Time) ([]stats.DayRecord, error) {
	q := GetQuerier(ctx, s.db)

	query := `
		SELECT user_id, date, status, is_late_check_in
		FROM attendance_records
		WHERE school_id = $1
		  AND user_id = $2
		  AND date BETWEEN $3 AND $4
		ORDER BY date
	`

	rows, err := q.Query(ctx, query, schoolID, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list user records: %w", err)
	}
	return collectDayRecords(rows)
}

// ListUserIDsWithRecords implements stats.StatsRepository.
func (s *statsRepositoryImpl) ListUserIDsWithRecords(ctx context.Context, schoolID string, from, to time.Time) ([]string, error) {
	q := GetQuerier(ctx, s.db)

	query := `
		SELECT DISTINCT user_id
		FROM attendance_records
		WHERE school_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY user_id
	`

	rows, err := q.Query(ctx, query, schoolID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list users with records: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpsertMonthly implements stats.StatsRepository.
func (s *statsRepositoryImpl) UpsertMonthly(ctx context.Context, row stats.MonthlyRow) error {
	q := GetQuerier(ctx, s.db)

	query := `
		INSERT INTO attendance_stats (
			user_id, school_id, month, year,
			total_working_days, total_present, total_absent, total_late, total_leaves,
			attendance_percentage, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (user_id, school_id, month, year) DO UPDATE SET
			total_working_days    = EXCLUDED.total_working_days,
			total_present         = EXCLUDED.total_present,
			total_absent          = EXCLUDED.total_absent,
			total_late            = EXCLUDED.total_late,
			total_leaves          = EXCLUDED.total_leaves,
			attendance_percentage = EXCLUDED.attendance_percentage,
			updated_at            = NOW()
	`

	_, err := q.Exec(ctx, query,
		row.UserID, row.SchoolID, row.Month, row.Year,
		row.TotalDays, row.PresentDays, row.AbsentDays, row.LateDays, row.LeaveDays,
		row.AttendancePercentage,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert monthly stats: %w", err)
	}
	return nil
}
