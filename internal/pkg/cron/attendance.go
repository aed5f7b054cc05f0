package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/calendar"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/stats"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/clock"
	attendanceService "github.com/cmlabs-hris/attendance-engine-go/internal/service/attendance"
)

type AttendanceJobs struct {
	configRepo     attendance.ConfigRepository
	attendanceRepo attendance.AttendanceRepository
	calendar       calendar.CalendarService
	stats          stats.StatsService
	invalidator    attendance.ReportInvalidator
	clock          *clock.Resolver
}

func NewAttendanceJobs(
	configRepo attendance.ConfigRepository,
	attendanceRepo attendance.AttendanceRepository,
	calendarService calendar.CalendarService,
	statsService stats.StatsService,
	invalidator attendance.ReportInvalidator,
	resolver *clock.Resolver,
) *AttendanceJobs {
	return &AttendanceJobs{
		configRepo:     configRepo,
		attendanceRepo: attendanceRepo,
		calendar:       calendarService,
		stats:          statsService,
		invalidator:    invalidator,
		clock:          resolver,
	}
}

func (j *AttendanceJobs) RegisterJobs(scheduler *Scheduler, markAbsentSpec, rollupSpec string) error {
	if err := scheduler.AddJob("mark_absent_users", markAbsentSpec, j.MarkAbsent); err != nil {
		return err
	}
	return scheduler.AddJob("rollup_monthly_stats", rollupSpec, j.RollupMonthlyStats)
}

// MarkAbsent records ABSENT for users without a record once a school's check-in window
// has closed on a working day. Schools that fail are logged and skipped.
func (j *AttendanceJobs) MarkAbsent(ctx context.Context) error {
	slog.Info("Cron: Starting mark absent users job")

	schoolIDs, err := j.configRepo.ListSchoolIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list schools: %w", err)
	}

	now := j.clock.Now()
	today := j.clock.Today()

	var total int64
	failed := 0
	for _, schoolID := range schoolIDs {
		created, err := j.markAbsentForSchool(ctx, schoolID, today, now)
		if err != nil {
			slog.Error("Cron: Failed to mark absent", "school_id", schoolID, "error", err)
			failed++
			continue
		}
		total += created
	}

	slog.Info("Cron: Marked absent users", "count", total, "schools", len(schoolIDs), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("mark absent failed for %d of %d schools", failed, len(schoolIDs))
	}
	return nil
}

func (j *AttendanceJobs) markAbsentForSchool(ctx context.Context, schoolID string, today, now time.Time) (int64, error) {
	day, err := j.calendar.ResolveDay(ctx, schoolID, today)
	if err != nil {
		return 0, err
	}
	if !day.IsWorkingDay() {
		return 0, nil
	}

	cfg, err := j.configRepo.GetBySchoolID(ctx, schoolID)
	if err != nil {
		return 0, err
	}
	windows, err := attendanceService.ComputeWindows(cfg, today, j.clock)
	if err != nil {
		return 0, err
	}
	if !now.After(windows.CheckInDeadline) {
		return 0, nil
	}

	created, err := j.attendanceRepo.MarkAbsentForUnmarked(ctx, schoolID, today)
	if err != nil {
		return 0, err
	}
	if created > 0 && j.invalidator != nil {
		j.invalidator.InvalidateSchool(schoolID)
	}
	return created, nil
}

// RollupMonthlyStats refreshes attendance_stats for the current month of every school.
// On the first day of a month the previous month is finalized as well.
func (j *AttendanceJobs) RollupMonthlyStats(ctx context.Context) error {
	slog.Info("Cron: Starting monthly stats rollup job")

	schoolIDs, err := j.configRepo.ListSchoolIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list schools: %w", err)
	}

	today := j.clock.Today()
	periods := []time.Time{today}
	if today.Day() == 1 {
		periods = append(periods, today.AddDate(0, -1, 0))
	}

	total := 0
	failed := 0
	for _, schoolID := range schoolIDs {
		for _, p := range periods {
			n, err := j.stats.RollupMonth(ctx, schoolID, int(p.Month()), p.Year())
			if err != nil {
				slog.Error("Cron: Failed to roll up stats",
					"school_id", schoolID,
					"month", int(p.Month()),
					"year", p.Year(),
					"error", err)
				failed++
				continue
			}
			total += n
		}
	}

	slog.Info("Cron: Rolled up monthly stats", "rows", total, "failed", failed)
	if failed > 0 {
		return fmt.Errorf("stats rollup failed for %d school periods", failed)
	}
	return nil
}
