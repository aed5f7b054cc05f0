package report

import (
	"context"
)

// ReportRepository runs the read-only aggregation queries behind each report.
type ReportRepository interface {
	GetDailyCounts(ctx context.Context, f Filter) ([]DailyCount, error)
	GetClassAttendance(ctx context.Context, f Filter) ([]ClassRow, error)

	// GetStudentRollups covers active, non-deleted students only.
	GetStudentRollups(ctx context.Context, f Filter) ([]StudentRollup, error)
	GetDayRecords(ctx context.Context, f Filter, userIDs []string) ([]DayRecord, error)

	// GetTeacherRollups covers active, non-deleted teaching staff only.
	GetTeacherRollups(ctx context.Context, f Filter) ([]TeacherRollup, error)

	// GetActiveAcademicYear returns nil when the school has none.
	GetActiveAcademicYear(ctx context.Context, schoolID string) (*AcademicYear, error)
	GetDefaulters(ctx context.Context, schoolID string, year AcademicYear, period MonthPeriod, threshold float64) ([]DefaulterRow, error)
}
