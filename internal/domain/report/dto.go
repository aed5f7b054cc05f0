package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/validator"
)

type Type string

const (
	TypeMonthly            Type = "MONTHLY"
	TypeClassWise          Type = "CLASS_WISE"
	TypeStudentWise        Type = "STUDENT_WISE"
	TypeTeacherPerformance Type = "TEACHER_PERFORMANCE"
	TypeDefaulters         Type = "DEFAULTERS"
	TypeLeaveAnalysis      Type = "LEAVE_ANALYSIS"
	TypeSummary            Type = "SUMMARY"
)

var AllTypes = []Type{
	TypeMonthly, TypeClassWise, TypeStudentWise, TypeTeacherPerformance,
	TypeDefaulters, TypeLeaveAnalysis, TypeSummary,
}

func (t Type) IsValid() bool {
	for _, v := range AllTypes {
		if t == v {
			return true
		}
	}
	return false
}

// DefaulterThreshold is the attendance percentage below which a user is a defaulter.
const DefaulterThreshold = 75.0

// ========================================
// REQUEST
// ========================================

type Request struct {
	SchoolID  string  `json:"-"`
	Type      Type    `json:"type"`
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
	ClassID   *string `json:"class_id,omitempty"`
	SectionID *string `json:"section_id,omitempty"`
}

func (r *Request) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.SchoolID) {
		errs.Add("school_id", "school_id is required")
	}

	var start, end time.Time
	var startErr, endErr error
	if validator.IsEmpty(r.StartDate) {
		errs.Add("start_date", "start_date is required")
	} else if start, startErr = time.Parse("2006-01-02", r.StartDate); startErr != nil {
		errs.Add("start_date", "start_date must be in YYYY-MM-DD format")
	}
	if validator.IsEmpty(r.EndDate) {
		errs.Add("end_date", "end_date is required")
	} else if end, endErr = time.Parse("2006-01-02", r.EndDate); endErr != nil {
		errs.Add("end_date", "end_date must be in YYYY-MM-DD format")
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		errs.Add("end_date", ErrInvalidDateRange.Error())
	}

	if r.ClassID != nil && !validator.IsValidUUID(*r.ClassID) {
		errs.Add("class_id", "class_id must be a valid UUID")
	}
	if r.SectionID != nil && !validator.IsValidUUID(*r.SectionID) {
		errs.Add("section_id", "section_id must be a valid UUID")
	}

	return errs.Err()
}

// Range returns the parsed inclusive date range. Call after Validate.
func (r Request) Range() (time.Time, time.Time) {
	start, _ := time.Parse("2006-01-02", r.StartDate)
	end, _ := time.Parse("2006-01-02", r.EndDate)
	return start, end
}

// CacheKey identifies a report payload within its school's cache bucket.
func (r Request) CacheKey() string {
	return fmt.Sprintf("report:%s:%s:%s:%s:%s:%s",
		r.SchoolID, r.Type, r.StartDate, r.EndDate, deref(r.ClassID), deref(r.SectionID))
}

// ParseType normalises a client supplied report type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidReportType, s)
	}
	return t, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ========================================
// FILTERS
// ========================================

// Filter narrows a repository query to a date range and optional class/section.
type Filter struct {
	SchoolID  string
	StartDate time.Time
	EndDate   time.Time
	ClassID   *string
	SectionID *string
}

// ========================================
// PAYLOADS
// ========================================

type Period struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Header is shared by every report payload.
type Header struct {
	ReportType  Type   `json:"report_type"`
	SchoolID    string `json:"school_id"`
	Period      Period `json:"period"`
	GeneratedAt string `json:"generated_at"`
}

// MONTHLY

type DailyCount struct {
	Date    string `json:"date"`
	Present int    `json:"present"`
	Absent  int    `json:"absent"`
	Late    int    `json:"late"`
	HalfDay int    `json:"half_day"`
	OnLeave int    `json:"on_leave"`
	Total   int    `json:"total"`
}

type MonthlySummary struct {
	TotalPresent            int     `json:"total_present"`
	TotalAbsent             int     `json:"total_absent"`
	TotalLate               int     `json:"total_late"`
	TotalHalfDay            int     `json:"total_half_day"`
	TotalOnLeave            int     `json:"total_on_leave"`
	TotalRecords            int     `json:"total_records"`
	AvgAttendancePercentage float64 `json:"avg_attendance_percentage"`
}

type MonthlyReport struct {
	Header
	Days    []DailyCount   `json:"days"`
	Summary MonthlySummary `json:"summary"`
}

// CLASS_WISE

type ClassRow struct {
	ClassID              string  `json:"class_id"`
	ClassName            string  `json:"class_name"`
	TotalStudents        int     `json:"total_students"`
	Present              int     `json:"present"`
	Absent               int     `json:"absent"`
	Late                 int     `json:"late"`
	HalfDay              int     `json:"half_day"`
	OnLeave              int     `json:"on_leave"`
	TotalRecords         int     `json:"total_records"`
	AttendancePercentage float64 `json:"attendance_percentage"`
}

type ClassWiseReport struct {
	Header
	Classes []ClassRow `json:"classes"`
}

// STUDENT_WISE

// StudentRollup is one student's counts for the range as read from storage.
type StudentRollup struct {
	UserID       string  `json:"user_id"`
	Name         string  `json:"name"`
	ClassID      *string `json:"class_id,omitempty"`
	ClassName    *string `json:"class_name,omitempty"`
	SectionID    *string `json:"section_id,omitempty"`
	SectionName  *string `json:"section_name,omitempty"`
	Present      int     `json:"present"`
	Absent       int     `json:"absent"`
	Late         int     `json:"late"`
	HalfDay      int     `json:"half_day"`
	Leaves       int     `json:"leaves"`
	TotalRecords int     `json:"total_records"`
}

type DayRecord struct {
	UserID       string  `json:"-"`
	Date         string  `json:"date"`
	Status       string  `json:"status"`
	CheckInTime  *string `json:"check_in_time,omitempty"`
	CheckOutTime *string `json:"check_out_time,omitempty"`
	WorkingHours float64 `json:"working_hours"`
}

type StudentRow struct {
	StudentRollup
	AttendancePercentage float64     `json:"attendance_percentage"`
	CurrentStreak        int         `json:"current_streak"`
	Records              []DayRecord `json:"records"`
}

type StudentWiseReport struct {
	Header
	Students []StudentRow `json:"students"`
}

// TEACHER_PERFORMANCE

// TeacherRollup is one teacher's counts and sums for the range as read from storage.
type TeacherRollup struct {
	UserID            string
	Name              string
	Role              string
	DaysPresent       int
	DaysLate          int
	DaysAbsent        int
	DaysHalfDay       int
	DaysOnLeave       int
	TotalRecords      int
	WorkedDays        int
	TotalWorkingHours float64
	LateDaysMeasured  int
	TotalLateMinutes  int
}

type TeacherRow struct {
	UserID               string  `json:"user_id"`
	Name                 string  `json:"name"`
	Role                 string  `json:"role"`
	DaysPresent          int     `json:"days_present"`
	DaysLate             int     `json:"days_late"`
	DaysAbsent           int     `json:"days_absent"`
	TotalRecords         int     `json:"total_records"`
	TotalWorkingHours    float64 `json:"total_working_hours"`
	AvgWorkingHours      float64 `json:"avg_working_hours"`
	AvgLateMinutes       float64 `json:"avg_late_minutes"`
	CurrentStreak        int     `json:"current_streak"`
	AttendancePercentage float64 `json:"attendance_percentage"`
}

type TeacherPerformanceReport struct {
	Header
	Teachers []TeacherRow `json:"teachers"`
}

// DEFAULTERS

type AcademicYear struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"-"`
	EndDate   time.Time `json:"-"`
}

type DefaulterRow struct {
	UserID               string  `json:"user_id"`
	Name                 string  `json:"name"`
	Role                 string  `json:"role"`
	Month                int     `json:"month"`
	Year                 int     `json:"year"`
	TotalWorkingDays     int     `json:"total_working_days"`
	TotalPresent         int     `json:"total_present"`
	AttendancePercentage float64 `json:"attendance_percentage"`
}

type DefaultersReport struct {
	Header
	AcademicYear AcademicYear   `json:"academic_year"`
	Threshold    float64        `json:"threshold"`
	MonthPeriod  MonthPeriod    `json:"month_period"`
	Defaulters   []DefaulterRow `json:"defaulters"`
}

// LEAVE_ANALYSIS

type LeaveGroup struct {
	LeaveType string  `json:"leave_type"`
	Status    string  `json:"status"`
	Count     int     `json:"count"`
	TotalDays float64 `json:"total_days"`
}

type LeaveTotals struct {
	TotalRequests int     `json:"total_requests"`
	TotalDays     float64 `json:"total_days"`
	Pending       int     `json:"pending"`
	Approved      int     `json:"approved"`
	Rejected      int     `json:"rejected"`
}

type LeaveRequestRow struct {
	ID            string  `json:"id"`
	UserID        string  `json:"user_id"`
	RequesterName string  `json:"requester_name"`
	RequesterRole string  `json:"requester_role"`
	LeaveType     string  `json:"leave_type"`
	Status        string  `json:"status"`
	StartDate     string  `json:"start_date"`
	EndDate       string  `json:"end_date"`
	TotalDays     float64 `json:"total_days"`
	Reason        *string `json:"reason,omitempty"`
}

type LeaveSummary struct {
	Totals LeaveTotals  `json:"totals"`
	Groups []LeaveGroup `json:"groups"`
}

type LeaveAnalysisReport struct {
	Header
	LeaveSummary
	Requests []LeaveRequestRow `json:"requests"`
}

// SUMMARY

type SummaryReport struct {
	Header
	Overview       MonthlySummary `json:"overview"`
	ClassSummary   []ClassRow     `json:"class_summary"`
	TeacherSummary []TeacherRow   `json:"teacher_summary"`
	LeaveSummary   LeaveSummary   `json:"leave_summary"`
}
