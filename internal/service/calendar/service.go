package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/calendar"
)

type CalendarServiceImpl struct {
	calendar.CalendarRepository
}

func NewCalendarService(repo calendar.CalendarRepository) calendar.CalendarService {
	return &CalendarServiceImpl{CalendarRepository: repo}
}

// ResolveDay implements calendar.CalendarService.
// Days missing from the calendar table fall back to Sunday = WEEKEND, otherwise WORKING_DAY.
func (s *CalendarServiceImpl) ResolveDay(ctx context.Context, schoolID string, date time.Time) (calendar.DayInfo, error) {
	entry, err := s.CalendarRepository.GetByDate(ctx, schoolID, date)
	if err != nil {
		return calendar.DayInfo{}, fmt.Errorf("failed to get calendar day: %w", err)
	}

	if entry != nil {
		return calendar.DayInfo{
			Date:        date,
			DayType:     entry.DayType,
			HolidayName: entry.HolidayName,
			FromTable:   true,
		}, nil
	}

	return FallbackDay(date), nil
}

// CountWorkingDays implements calendar.CalendarService.
func (s *CalendarServiceImpl) CountWorkingDays(ctx context.Context, schoolID string, year, month int) (int, error) {
	if month < 1 || month > 12 {
		return 0, calendar.ErrInvalidMonth
	}
	count, err := s.CalendarRepository.CountWorkingDays(ctx, schoolID, year, month)
	if err != nil {
		return 0, fmt.Errorf("failed to count working days: %w", err)
	}
	return count, nil
}

// FallbackDay classifies a date with no calendar entry.
func FallbackDay(date time.Time) calendar.DayInfo {
	dayType := calendar.DayTypeWorkingDay
	if date.Weekday() == time.Sunday {
		dayType = calendar.DayTypeWeekend
	}
	return calendar.DayInfo{Date: date, DayType: dayType}
}
