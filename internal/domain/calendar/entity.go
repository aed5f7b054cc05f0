package calendar

import (
	"context"
	"errors"
	"time"
)

type DayType string

const (
	DayTypeWorkingDay DayType = "WORKING_DAY"
	DayTypeWeekend    DayType = "WEEKEND"
	DayTypeHoliday    DayType = "HOLIDAY"
)

// Day is a school calendar entry. At most one exists per (school, date).
type Day struct {
	SchoolID    string
	Date        time.Time
	DayType     DayType
	HolidayName *string
}

// DayInfo is the resolved classification of a calendar day.
type DayInfo struct {
	Date        time.Time
	DayType     DayType
	HolidayName *string
	FromTable   bool
}

func (d DayInfo) IsWorkingDay() bool {
	return d.DayType == DayTypeWorkingDay
}

var ErrInvalidMonth = errors.New("month must be between 1 and 12")

// CalendarRepository reads the per-school calendar table.
type CalendarRepository interface {
	// GetByDate returns nil when the school has no entry for the date.
	GetByDate(ctx context.Context, schoolID string, date time.Time) (*Day, error)
	// CountWorkingDays counts WORKING_DAY entries of a month.
	CountWorkingDays(ctx context.Context, schoolID string, year, month int) (int, error)
}

// CalendarService classifies calendar days.
type CalendarService interface {
	ResolveDay(ctx context.Context, schoolID string, date time.Time) (DayInfo, error)
	CountWorkingDays(ctx context.Context, schoolID string, year, month int) (int, error)
}
