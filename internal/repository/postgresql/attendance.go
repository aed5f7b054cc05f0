package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const attendanceColumns = `
	id, user_id, school_id, date, status,
	check_in_time, check_out_time, check_in_location, check_out_location,
	is_late_check_in, late_by_minutes, working_hours,
	device_info, remarks, marked_by, requires_approval, approval_status,
	created_at, updated_at`

type attendanceRepositoryImpl struct {
	db *database.DB
}

func NewAttendanceRepository(db *database.DB) attendance.AttendanceRepository {
	return &attendanceRepositoryImpl{db: db}
}

func scanAttendance(row pgx.Row) (attendance.Record, error) {
	var r attendance.Record
	err := row.Scan(
		&r.ID, &r.UserID, &r.SchoolID, &r.Date, &r.Status,
		&r.CheckInTime, &r.CheckOutTime, &r.CheckInLocation, &r.CheckOutLocation,
		&r.IsLateCheckIn, &r.LateByMinutes, &r.WorkingHours,
		&r.DeviceInfo, &r.Remarks, &r.MarkedBy, &r.RequiresApproval, &r.ApprovalStatus,
		&r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

func (a *attendanceRepositoryImpl) getByUserAndDate(ctx context.Context, userID, schoolID string, date time.Time, lock bool) (*attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT` + attendanceColumns + `
		FROM attendance_records
		WHERE user_id = $1
		  AND school_id = $2
		  AND date = $3`
	if lock {
		query += ` FOR UPDATE`
	}

	r, err := scanAttendance(q.QueryRow(ctx, query, userID, schoolID, date))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get attendance by user and date: %w", err)
	}
	return &r, nil
}

// GetForUpdate implements attendance.AttendanceRepository.
func (a *attendanceRepositoryImpl) GetForUpdate(ctx context.Context, userID, schoolID string, date time.Time) (*attendance.Record, error) {
	return a.getByUserAndDate(ctx, userID, schoolID, date, true)
}

// GetByUserAndDate implements attendance.AttendanceRepository.
func (a *attendanceRepositoryImpl) GetByUserAndDate(ctx context.Context, userID, schoolID string, date time.Time) (*attendance.Record, error) {
	return a.getByUserAndDate(ctx, userID, schoolID, date, false)
}

// UpsertCheckIn implements attendance.AttendanceRepository.
// A row that already carries a check-in is left untouched and reported as a duplicate.
func (a *attendanceRepositoryImpl) UpsertCheckIn(ctx context.Context, record attendance.Record) (attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		INSERT INTO attendance_records (
			id, user_id, school_id, date, status,
			check_in_time, check_in_location, is_late_check_in, late_by_minutes, working_hours,
			device_info, remarks, marked_by, requires_approval, approval_status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, $11, $12, $13, $14
		)
		ON CONFLICT (user_id, school_id, date) DO UPDATE SET
			status            = EXCLUDED.status,
			check_in_time     = EXCLUDED.check_in_time,
			check_in_location = EXCLUDED.check_in_location,
			is_late_check_in  = EXCLUDED.is_late_check_in,
			late_by_minutes   = EXCLUDED.late_by_minutes,
			working_hours     = 0,
			device_info       = EXCLUDED.device_info,
			remarks           = COALESCE(EXCLUDED.remarks, attendance_records.remarks),
			marked_by         = EXCLUDED.marked_by,
			requires_approval = EXCLUDED.requires_approval,
			approval_status   = EXCLUDED.approval_status,
			updated_at        = NOW()
		WHERE attendance_records.check_in_time IS NULL
		RETURNING` + attendanceColumns

	saved, err := scanAttendance(q.QueryRow(ctx, query,
		record.ID,
		record.UserID,
		record.SchoolID,
		record.Date,
		record.Status,
		record.CheckInTime,
		record.CheckInLocation,
		record.IsLateCheckIn,
		record.LateByMinutes,
		record.DeviceInfo,
		record.Remarks,
		record.MarkedBy,
		record.RequiresApproval,
		record.ApprovalStatus,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Record{}, attendance.ErrDuplicateRecord
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return attendance.Record{}, attendance.ErrDuplicateRecord
		}
		return attendance.Record{}, fmt.Errorf("failed to upsert check-in: %w", err)
	}

	return saved, nil
}

// UpdateCheckOut implements attendance.AttendanceRepository.
func (a *attendanceRepositoryImpl) UpdateCheckOut(ctx context.Context, record attendance.Record) (attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		UPDATE attendance_records
		SET check_out_time     = $1,
			check_out_location = $2,
			working_hours      = $3,
			status             = $4,
			remarks            = $5,
			updated_at         = NOW()
		WHERE id = $6
		  AND school_id = $7
		RETURNING` + attendanceColumns

	saved, err := scanAttendance(q.QueryRow(ctx, query,
		record.CheckOutTime,
		record.CheckOutLocation,
		record.WorkingHours,
		record.Status,
		record.Remarks,
		record.ID,
		record.SchoolID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Record{}, attendance.ErrAttendanceNotFound
		}
		return attendance.Record{}, fmt.Errorf("failed to update check-out: %w", err)
	}

	return saved, nil
}

// MarkAbsentForUnmarked implements attendance.AttendanceRepository.
// Users covered by an approved leave on the date are recorded ON_LEAVE instead of ABSENT.
func (a *attendanceRepositoryImpl) MarkAbsentForUnmarked(ctx context.Context, schoolID string, date time.Time) (int64, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		INSERT INTO attendance_records (id, user_id, school_id, date, status, marked_by, approval_status)
		SELECT gen_random_uuid(), u.id, u.school_id, $2,
			CASE WHEN EXISTS (
				SELECT 1 FROM leave_requests lr
				WHERE lr.user_id = u.id
				  AND lr.school_id = u.school_id
				  AND lr.status = 'APPROVED'
				  AND $2 BETWEEN lr.start_date AND lr.end_date
			) THEN 'ON_LEAVE' ELSE 'ABSENT' END,
			$3, 'NOT_REQUIRED'
		FROM users u
		WHERE u.school_id = $1
		  AND u.is_active = TRUE
		  AND u.deleted_at IS NULL
		  AND u.role IN ('STUDENT', 'TEACHER')
		  AND NOT EXISTS (
			SELECT 1 FROM attendance_records ar
			WHERE ar.user_id = u.id AND ar.school_id = u.school_id AND ar.date = $2
		  )
		ON CONFLICT (user_id, school_id, date) DO NOTHING
	`

	tag, err := q.Exec(ctx, query, schoolID, date, attendance.MarkedBySystem)
	if err != nil {
		return 0, fmt.Errorf("failed to mark absent: %w", err)
	}
	return tag.RowsAffected(), nil
}
