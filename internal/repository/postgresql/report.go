package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/report"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/user"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const (
	roleStudent = string(user.RoleStudent)
	roleTeacher = string(user.RoleTeacher)
)

// statusCountColumns yields present, absent, late, half_day, on_leave and total for the joined
// attendance rows. A PRESENT record that was checked in late counts as late, never twice.
const statusCountColumns = `
	COUNT(ar.id) FILTER (WHERE ar.status = 'PRESENT' AND NOT ar.is_late_check_in),
	COUNT(ar.id) FILTER (WHERE ar.status = 'ABSENT'),
	COUNT(ar.id) FILTER (WHERE ar.status = 'LATE' OR (ar.status = 'PRESENT' AND ar.is_late_check_in)),
	COUNT(ar.id) FILTER (WHERE ar.status = 'HALF_DAY'),
	COUNT(ar.id) FILTER (WHERE ar.status = 'ON_LEAVE'),
	COUNT(ar.id)`

type reportRepositoryImpl struct {
	db  *database.DB
	loc *time.Location
}

// NewReportRepository formats timestamps in loc.
func NewReportRepository(db *database.DB, loc *time.Location) report.ReportRepository {
	return &reportRepositoryImpl{db: db, loc: loc}
}

// studentFilter appends class and section conditions on the students alias st.
func studentFilter(f report.Filter, classColumn string, args []interface{}) (string, []interface{}) {
	var clauses []string
	if f.ClassID != nil {
		args = append(args, *f.ClassID)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", classColumn, len(args)))
	}
	if f.SectionID != nil {
		args = append(args, *f.SectionID)
		clauses = append(clauses, fmt.Sprintf("st.section_id = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

// GetDailyCounts implements report.ReportRepository.
func (r *reportRepositoryImpl) GetDailyCounts(ctx context.Context, f report.Filter) ([]report.DailyCount, error) {
	q := GetQuerier(ctx, r.db)

	args := []interface{}{f.SchoolID, f.StartDate, f.EndDate}
	filter, args := studentFilter(f, "st.class_id", args)

	query := `
		SELECT to_char(ar.date, 'YYYY-MM-DD'),` + statusCountColumns + `
		FROM attendance_records ar
		LEFT JOIN students st ON st.user_id = ar.user_id
		WHERE ar.school_id = $1
		  AND ar.date BETWEEN $2 AND $3` + filter + `
		GROUP BY ar.date
		ORDER BY ar.date
	`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily counts: %w", err)
	}
	defer rows.Close()

	var days []report.DailyCount
	for rows.Next() {
		var d report.DailyCount
		if err := rows.Scan(&d.Date, &d.Present, &d.Absent, &d.Late, &d.HalfDay, &d.OnLeave, &d.Total); err != nil {
			return nil, fmt.Errorf("failed to scan daily count: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily counts: %w", err)
	}
	return days, nil
}

// GetClassAttendance implements report.ReportRepository.
func (r *reportRepositoryImpl) GetClassAttendance(ctx context.Context, f report.Filter) ([]report.ClassRow, error) {
	q := GetQuerier(ctx, r.db)

	args := []interface{}{f.SchoolID, f.StartDate, f.EndDate}
	filter, args := studentFilter(f, "c.id", args)

	query := `
		SELECT c.id, c.name, COUNT(DISTINCT u.id),` + statusCountColumns + `
		FROM classes c
		LEFT JOIN students st ON st.class_id = c.id
		LEFT JOIN users u ON u.id = st.user_id
			AND u.is_active = TRUE
			AND u.deleted_at IS NULL
		LEFT JOIN attendance_records ar ON ar.user_id = u.id
			AND ar.school_id = c.school_id
			AND ar.date BETWEEN $2 AND $3
		WHERE c.school_id = $1` + filter + `
		GROUP BY c.id, c.name
		ORDER BY c.name
	`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query class attendance: %w", err)
	}
	defer rows.Close()

	var classes []report.ClassRow
	for rows.Next() {
		var c report.ClassRow
		err := rows.Scan(
			&c.ClassID, &c.ClassName, &c.TotalStudents,
			&c.Present, &c.Absent, &c.Late, &c.HalfDay, &c.OnLeave, &c.TotalRecords,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan class row: %w", err)
		}
		classes = append(classes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate class rows: %w", err)
	}
	return classes, nil
}

// GetStudentRollups implements report.ReportRepository.
func (r *reportRepositoryImpl) GetStudentRollups(ctx context.Context, f report.Filter) ([]report.StudentRollup, error) {
	q := GetQuerier(ctx, r.db)

	args := []interface{}{f.SchoolID, f.StartDate, f.EndDate, roleStudent}
	filter, args := studentFilter(f, "st.class_id", args)

	query := `
		SELECT u.id, u.name, st.class_id, c.name, st.section_id, sec.name,` + statusCountColumns + `
		FROM users u
		INNER JOIN students st ON st.user_id = u.id
		LEFT JOIN classes c ON c.id = st.class_id
		LEFT JOIN sections sec ON sec.id = st.section_id
		LEFT JOIN attendance_records ar ON ar.user_id = u.id
			AND ar.school_id = u.school_id
			AND ar.date BETWEEN $2 AND $3
		WHERE u.school_id = $1
		  AND u.role = $4
		  AND u.is_active = TRUE
		  AND u.deleted_at IS NULL` + filter + `
		GROUP BY u.id, u.name, st.class_id, c.name, st.section_id, sec.name
		ORDER BY u.name
	`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query student rollups: %w", err)
	}
	defer rows.Close()

	var students []report.StudentRollup
	for rows.Next() {
		var s report.StudentRollup
		err := rows.Scan(
			&s.UserID, &s.Name, &s.ClassID, &s.ClassName, &s.SectionID, &s.SectionName,
			&s.Present, &s.Absent, &s.Late, &s.HalfDay, &s.Leaves, &s.TotalRecords,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student rollup: %w", err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate student rollups: %w", err)
	}
	return students, nil
}

// GetDayRecords implements report.ReportRepository.
func (r *reportRepositoryImpl) GetDayRecords(ctx context.Context, f report.Filter, userIDs []string) ([]report.DayRecord, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ar.user_id, to_char(ar.date, 'YYYY-MM-DD'), ar.status,
			ar.check_in_time, ar.check_out_time, ar.working_hours
		FROM attendance_records ar
		WHERE ar.school_id = $1
		  AND ar.user_id = ANY($2::uuid[])
		  AND ar.date BETWEEN $3 AND $4
		ORDER BY ar.user_id, ar.date
	`

	rows, err := q.Query(ctx, query, f.SchoolID, userIDs, f.StartDate, f.EndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query day records: %w", err)
	}
	defer rows.Close()

	var records []report.DayRecord
	for rows.Next() {
		var (
			d                 report.DayRecord
			checkIn, checkOut *time.Time
		)
		if err := rows.Scan(&d.UserID, &d.Date, &d.Status, &checkIn, &checkOut, &d.WorkingHours); err != nil {
			return nil, fmt.Errorf("failed to scan day record: %w", err)
		}
		d.CheckInTime = r.formatTime(checkIn)
		d.CheckOutTime = r.formatTime(checkOut)
		records = append(records, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate day records: %w", err)
	}
	return records, nil
}

func (r *reportRepositoryImpl) formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.In(r.loc).Format(time.RFC3339)
	return &s
}

// GetTeacherRollups implements report.ReportRepository.
// Average late minutes only consider late check-ins that recorded a lateness.
func (r *reportRepositoryImpl) GetTeacherRollups(ctx context.Context, f report.Filter) ([]report.TeacherRollup, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT u.id, u.name, u.role,` + statusCountColumns + `,
			COUNT(ar.id) FILTER (WHERE ar.working_hours > 0),
			COALESCE(SUM(ar.working_hours), 0)::float8,
			COUNT(ar.id) FILTER (WHERE ar.is_late_check_in AND ar.late_by_minutes IS NOT NULL),
			COALESCE(SUM(ar.late_by_minutes) FILTER (WHERE ar.is_late_check_in), 0)
		FROM users u
		LEFT JOIN attendance_records ar ON ar.user_id = u.id
			AND ar.school_id = u.school_id
			AND ar.date BETWEEN $2 AND $3
		WHERE u.school_id = $1
		  AND u.role = $4
		  AND u.is_active = TRUE
		  AND u.deleted_at IS NULL
		GROUP BY u.id, u.name, u.role
		ORDER BY u.name
	`

	rows, err := q.Query(ctx, query, f.SchoolID, f.StartDate, f.EndDate, roleTeacher)
	if err != nil {
		return nil, fmt.Errorf("failed to query teacher rollups: %w", err)
	}
	defer rows.Close()

	var teachers []report.TeacherRollup
	for rows.Next() {
		var t report.TeacherRollup
		err := rows.Scan(
			&t.UserID, &t.Name, &t.Role,
			&t.DaysPresent, &t.DaysAbsent, &t.DaysLate, &t.DaysHalfDay, &t.DaysOnLeave, &t.TotalRecords,
			&t.WorkedDays, &t.TotalWorkingHours, &t.LateDaysMeasured, &t.TotalLateMinutes,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan teacher rollup: %w", err)
		}
		teachers = append(teachers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate teacher rollups: %w", err)
	}
	return teachers, nil
}

// GetActiveAcademicYear implements report.ReportRepository.
func (r *reportRepositoryImpl) GetActiveAcademicYear(ctx context.Context, schoolID string) (*report.AcademicYear, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, name, start_date, end_date
		FROM academic_years
		WHERE school_id = $1 AND is_active = TRUE
		ORDER BY start_date DESC
		LIMIT 1
	`

	var y report.AcademicYear
	err := q.QueryRow(ctx, query, schoolID).Scan(&y.ID, &y.Name, &y.StartDate, &y.EndDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active academic year: %w", err)
	}
	return &y, nil
}

// periodClause selects attendance_stats rows (alias s) inside the month period.
func periodClause(p report.MonthPeriod, args []interface{}) (string, []interface{}) {
	n := len(args)
	switch p.Kind {
	case report.PeriodExact:
		args = append(args, p.StartMonth, p.StartYear)
		return fmt.Sprintf("s.month = $%d AND s.year = $%d", n+1, n+2), args
	case report.PeriodYearRange:
		args = append(args, p.StartYear, p.StartMonth, p.EndMonth)
		return fmt.Sprintf("s.year = $%d AND s.month BETWEEN $%d AND $%d", n+1, n+2, n+3), args
	default:
		args = append(args, p.StartYear, p.StartMonth, p.EndYear, p.EndMonth)
		return fmt.Sprintf(
			"((s.year = $%d AND s.month >= $%d) OR (s.year > $%d AND s.year < $%d) OR (s.year = $%d AND s.month <= $%d))",
			n+1, n+2, n+1, n+3, n+3, n+4,
		), args
	}
}

// GetDefaulters implements report.ReportRepository.
// Only months that start inside the academic year are considered.
func (r *reportRepositoryImpl) GetDefaulters(ctx context.Context, schoolID string, year report.AcademicYear, period report.MonthPeriod, threshold float64) ([]report.DefaulterRow, error) {
	q := GetQuerier(ctx, r.db)

	args := []interface{}{schoolID, threshold, year.StartDate, year.EndDate, []string{roleStudent, roleTeacher}}
	clause, args := periodClause(period, args)

	query := `
		SELECT u.id, u.name, u.role, s.month, s.year,
			s.total_working_days, s.total_present, s.attendance_percentage::float8
		FROM attendance_stats s
		INNER JOIN users u ON u.id = s.user_id
		WHERE s.school_id = $1
		  AND s.attendance_percentage < $2
		  AND make_date(s.year, s.month, 1) BETWEEN date_trunc('month', $3::date)::date AND $4::date
		  AND u.role = ANY($5)
		  AND u.is_active = TRUE
		  AND u.deleted_at IS NULL
		  AND ` + clause + `
		ORDER BY s.attendance_percentage ASC, u.name, s.year, s.month
	`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query defaulters: %w", err)
	}
	defer rows.Close()

	var defaulters []report.DefaulterRow
	for rows.Next() {
		var d report.DefaulterRow
		err := rows.Scan(
			&d.UserID, &d.Name, &d.Role, &d.Month, &d.Year,
			&d.TotalWorkingDays, &d.TotalPresent, &d.AttendancePercentage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan defaulter: %w", err)
		}
		defaulters = append(defaulters, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate defaulters: %w", err)
	}
	return defaulters, nil
}
