package stats

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/attendance"
)

// MonthlyStats is a user's attendance rollup for one calendar month.
type MonthlyStats struct {
	TotalDays            int     `json:"total_days"`
	PresentDays          int     `json:"present_days"`
	AbsentDays           int     `json:"absent_days"`
	LateDays             int     `json:"late_days"`
	LeaveDays            int     `json:"leave_days"`
	AttendancePercentage float64 `json:"attendance_percentage"`
}

// MonthlyRow is a persisted attendance_stats row.
type MonthlyRow struct {
	UserID   string
	SchoolID string
	Month    int
	Year     int
	MonthlyStats
	UpdatedAt time.Time
}

// DayRecord is the slice of an attendance record the aggregators need.
type DayRecord struct {
	UserID        string
	Date          time.Time
	Status        attendance.Status
	IsLateCheckIn bool
}
