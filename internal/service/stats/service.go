package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/calendar"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/stats"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/clock"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/utils"
)

// DefaultLookbackDays bounds the streak query.
const DefaultLookbackDays = 60

type StatsServiceImpl struct {
	stats.StatsRepository
	calendar     calendar.CalendarService
	clock        *clock.Resolver
	lookbackDays int
}

func NewStatsService(repo stats.StatsRepository, calendarService calendar.CalendarService, resolver *clock.Resolver, lookbackDays int) stats.StatsService {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	return &StatsServiceImpl{
		StatsRepository: repo,
		calendar:        calendarService,
		clock:           resolver,
		lookbackDays:    lookbackDays,
	}
}

// ComputeStreaks implements stats.StatsService.
func (s *StatsServiceImpl) ComputeStreaks(ctx context.Context, schoolID string, userIDs []string) (map[string]int, error) {
	streaks := make(map[string]int, len(userIDs))
	if len(userIDs) == 0 {
		return streaks, nil
	}

	unique := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if _, seen := streaks[id]; seen {
			continue
		}
		streaks[id] = 0
		unique = append(unique, id)
	}

	today := s.clock.Today()
	from := today.AddDate(0, 0, -s.lookbackDays)

	records, err := s.StatsRepository.ListPresentRecords(ctx, schoolID, unique, from, today)
	if err != nil {
		return nil, fmt.Errorf("failed to list present records: %w", err)
	}

	byUser := make(map[string][]time.Time, len(unique))
	for _, r := range records {
		byUser[r.UserID] = append(byUser[r.UserID], r.Date)
	}

	for userID, dates := range byUser {
		if _, requested := streaks[userID]; requested {
			streaks[userID] = CalculateStreak(dates, today)
		}
	}

	return streaks, nil
}

// CalculateStreak counts consecutive days ending today. dates must be sorted newest first.
// Any missing calendar day ends the streak, weekends and holidays included.
func CalculateStreak(dates []time.Time, today time.Time) int {
	streak := 0
	expected := today
	for _, d := range dates {
		switch {
		case d.Equal(expected):
			streak++
			expected = expected.AddDate(0, 0, -1)
		case d.After(expected):
			continue
		default:
			return streak
		}
	}
	return streak
}

// GetMonthlyStats implements stats.StatsService.
func (s *StatsServiceImpl) GetMonthlyStats(ctx context.Context, schoolID, userID string, month, year int) (stats.MonthlyStats, error) {
	if err := validatePeriod(month, year); err != nil {
		return stats.MonthlyStats{}, err
	}

	precomputed, err := s.StatsRepository.GetMonthly(ctx, schoolID, userID, month, year)
	if err != nil {
		return stats.MonthlyStats{}, fmt.Errorf("failed to get monthly stats: %w", err)
	}
	if precomputed != nil {
		return *precomputed, nil
	}

	workingDays, err := s.calendar.CountWorkingDays(ctx, schoolID, year, month)
	if err != nil {
		return stats.MonthlyStats{}, err
	}

	from, to := clock.MonthBounds(year, month)
	records, err := s.StatsRepository.ListUserRecords(ctx, schoolID, userID, from, to)
	if err != nil {
		return stats.MonthlyStats{}, fmt.Errorf("failed to list attendance records: %w", err)
	}

	return Aggregate(records, workingDays), nil
}

// RollupMonth implements stats.StatsService.
func (s *StatsServiceImpl) RollupMonth(ctx context.Context, schoolID string, month, year int) (int, error) {
	if err := validatePeriod(month, year); err != nil {
		return 0, err
	}

	workingDays, err := s.calendar.CountWorkingDays(ctx, schoolID, year, month)
	if err != nil {
		return 0, err
	}

	from, to := clock.MonthBounds(year, month)
	userIDs, err := s.StatsRepository.ListUserIDsWithRecords(ctx, schoolID, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to list users with records: %w", err)
	}

	for _, userID := range userIDs {
		records, err := s.StatsRepository.ListUserRecords(ctx, schoolID, userID, from, to)
		if err != nil {
			return 0, fmt.Errorf("failed to list attendance records: %w", err)
		}

		row := stats.MonthlyRow{
			UserID:       userID,
			SchoolID:     schoolID,
			Month:        month,
			Year:         year,
			MonthlyStats: Aggregate(records, workingDays),
			UpdatedAt:    s.clock.Now(),
		}
		if err := s.StatsRepository.UpsertMonthly(ctx, row); err != nil {
			return 0, fmt.Errorf("failed to upsert monthly stats: %w", err)
		}
	}

	slog.Info("monthly stats rolled up", "school_id", schoolID, "month", month, "year", year, "users", len(userIDs))
	return len(userIDs), nil
}

// Aggregate classifies a month of records. workingDays of zero falls back to the record count.
func Aggregate(records []stats.DayRecord, workingDays int) stats.MonthlyStats {
	var result stats.MonthlyStats
	for _, r := range records {
		switch r.Status {
		case attendance.StatusPresent:
			result.PresentDays++
			// Checkout overwrites LATE with PRESENT, so the flag also counts as late.
			if r.IsLateCheckIn {
				result.LateDays++
			}
		case attendance.StatusLate:
			result.PresentDays++
			result.LateDays++
		case attendance.StatusAbsent:
			result.AbsentDays++
		case attendance.StatusOnLeave:
			result.LeaveDays++
		}
	}

	result.TotalDays = workingDays
	if result.TotalDays == 0 {
		result.TotalDays = len(records)
	}
	result.AttendancePercentage = utils.Percentage(result.PresentDays, result.TotalDays, 1)
	return result
}

func validatePeriod(month, year int) error {
	if month < 1 || month > 12 {
		return stats.ErrInvalidMonth
	}
	if year < 2000 || year > 2100 {
		return stats.ErrInvalidYear
	}
	return nil
}
