package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const configColumns = `
	school_id, default_start_time, default_end_time,
	check_in_window_hours, check_out_grace_hours, min_working_hours,
	grace_period_minutes, half_day_hours, full_day_hours,
	enable_geo_fencing, school_latitude, school_longitude, allowed_radius_meters,
	created_at, updated_at`

type configRepositoryImpl struct {
	db *database.DB
}

func NewConfigRepository(db *database.DB) attendance.ConfigRepository {
	return &configRepositoryImpl{db: db}
}

func scanConfig(row pgx.Row) (attendance.Config, error) {
	var c attendance.Config
	err := row.Scan(
		&c.SchoolID, &c.DefaultStartTime, &c.DefaultEndTime,
		&c.CheckInWindowHours, &c.CheckOutGraceHours, &c.MinWorkingHours,
		&c.GracePeriodMinutes, &c.HalfDayHours, &c.FullDayHours,
		&c.EnableGeoFencing, &c.SchoolLatitude, &c.SchoolLongitude, &c.AllowedRadiusMeters,
		&c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

// GetBySchoolID implements attendance.ConfigRepository.
func (r *configRepositoryImpl) GetBySchoolID(ctx context.Context, schoolID string) (attendance.Config, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT` + configColumns + ` FROM attendance_configs WHERE school_id = $1`

	cfg, err := scanConfig(q.QueryRow(ctx, query, schoolID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Config{}, attendance.ErrConfigNotFound
		}
		return attendance.Config{}, fmt.Errorf("failed to get attendance config: %w", err)
	}
	return cfg, nil
}

// Upsert implements attendance.ConfigRepository.
func (r *configRepositoryImpl) Upsert(ctx context.Context, cfg attendance.Config) (attendance.Config, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO attendance_configs (
			school_id, default_start_time, default_end_time,
			check_in_window_hours, check_out_grace_hours, min_working_hours,
			grace_period_minutes, half_day_hours, full_day_hours,
			enable_geo_fencing, school_latitude, school_longitude, allowed_radius_meters
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (school_id) DO UPDATE SET
			default_start_time    = EXCLUDED.default_start_time,
			default_end_time      = EXCLUDED.default_end_time,
			check_in_window_hours = EXCLUDED.check_in_window_hours,
			check_out_grace_hours = EXCLUDED.check_out_grace_hours,
			min_working_hours     = EXCLUDED.min_working_hours,
			grace_period_minutes  = EXCLUDED.grace_period_minutes,
			half_day_hours        = EXCLUDED.half_day_hours,
			full_day_hours        = EXCLUDED.full_day_hours,
			enable_geo_fencing    = EXCLUDED.enable_geo_fencing,
			school_latitude       = EXCLUDED.school_latitude,
			school_longitude      = EXCLUDED.school_longitude,
			allowed_radius_meters = EXCLUDED.allowed_radius_meters,
			updated_at            = NOW()
		RETURNING` + configColumns

	saved, err := scanConfig(q.QueryRow(ctx, query,
		cfg.SchoolID, cfg.DefaultStartTime, cfg.DefaultEndTime,
		cfg.CheckInWindowHours, cfg.CheckOutGraceHours, cfg.MinWorkingHours,
		cfg.GracePeriodMinutes, cfg.HalfDayHours, cfg.FullDayHours,
		cfg.EnableGeoFencing, cfg.SchoolLatitude, cfg.SchoolLongitude, cfg.AllowedRadiusMeters,
	))
	if err != nil {
		return attendance.Config{}, fmt.Errorf("failed to upsert attendance config: %w", err)
	}
	return saved, nil
}

// ListSchoolIDs implements attendance.ConfigRepository.
func (r *configRepositoryImpl) ListSchoolIDs(ctx context.Context) ([]string, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `SELECT school_id FROM attendance_configs ORDER BY school_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list configured schools: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan school id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
