package cron

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/calendar"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/stats"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConfigRepo struct {
	configs map[string]attendance.Config
}

func (f *fakeConfigRepo) GetBySchoolID(_ context.Context, schoolID string) (attendance.Config, error) {
	cfg, ok := f.configs[schoolID]
	if !ok {
		return attendance.Config{}, attendance.ErrConfigNotFound
	}
	return cfg, nil
}

func (f *fakeConfigRepo) Upsert(_ context.Context, cfg attendance.Config) (attendance.Config, error) {
	f.configs[cfg.SchoolID] = cfg
	return cfg, nil
}

func (f *fakeConfigRepo) ListSchoolIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.configs))
	for id := range f.configs {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeAttendanceRepo struct {
	attendance.AttendanceRepository
	mu      sync.Mutex
	marked  map[string]time.Time
	created int64
	err     error
}

func (f *fakeAttendanceRepo) MarkAbsentForUnmarked(_ context.Context, schoolID string, date time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.marked[schoolID] = date
	return f.created, nil
}

type fakeCalendar struct {
	dayType calendar.DayType
}

func (f fakeCalendar) ResolveDay(_ context.Context, _ string, date time.Time) (calendar.DayInfo, error) {
	return calendar.DayInfo{Date: date, DayType: f.dayType}, nil
}

func (f fakeCalendar) CountWorkingDays(context.Context, string, int, int) (int, error) {
	return 0, nil
}

type rollupCall struct {
	schoolID    string
	month, year int
}

type fakeStats struct {
	stats.StatsService
	calls []rollupCall
}

func (f *fakeStats) RollupMonth(_ context.Context, schoolID string, month, year int) (int, error) {
	f.calls = append(f.calls, rollupCall{schoolID, month, year})
	return 2, nil
}

type fakeInvalidator struct {
	schools []string
}

func (f *fakeInvalidator) InvalidateSchool(schoolID string) {
	f.schools = append(f.schools, schoolID)
}

func testConfig(schoolID string) attendance.Config {
	return attendance.Config{
		SchoolID:           schoolID,
		DefaultStartTime:   "08:00",
		DefaultEndTime:     "14:00",
		CheckInWindowHours: 2,
		CheckOutGraceHours: 2,
		MinWorkingHours:    4,
		GracePeriodMinutes: 15,
		HalfDayHours:       4,
		FullDayHours:       8,
	}
}

type jobsEnv struct {
	jobs        *AttendanceJobs
	repo        *fakeAttendanceRepo
	stats       *fakeStats
	invalidator *fakeInvalidator
}

func newJobsEnv(now time.Time, dayType calendar.DayType) jobsEnv {
	resolver := clock.NewResolver(clock.DefaultOffsetMinutes)
	resolver.Now = func() time.Time { return now }

	repo := &fakeAttendanceRepo{marked: map[string]time.Time{}, created: 3}
	st := &fakeStats{}
	inv := &fakeInvalidator{}
	configs := &fakeConfigRepo{configs: map[string]attendance.Config{"school-1": testConfig("school-1")}}

	return jobsEnv{
		jobs:        NewAttendanceJobs(configs, repo, fakeCalendar{dayType: dayType}, st, inv, resolver),
		repo:        repo,
		stats:       st,
		invalidator: inv,
	}
}

func ist(day, hour, minute int) time.Time {
	return time.Date(2024, 1, day, hour, minute, 0, 0, time.FixedZone("IST", 330*60))
}

func TestMarkAbsent_AfterDeadline(t *testing.T) {
	env := newJobsEnv(ist(15, 10, 1), calendar.DayTypeWorkingDay)

	require.NoError(t, env.jobs.MarkAbsent(context.Background()))

	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), env.repo.marked["school-1"])
	assert.Equal(t, []string{"school-1"}, env.invalidator.schools)
}

func TestMarkAbsent_BeforeDeadline(t *testing.T) {
	env := newJobsEnv(ist(15, 10, 0), calendar.DayTypeWorkingDay)

	require.NoError(t, env.jobs.MarkAbsent(context.Background()))

	assert.Empty(t, env.repo.marked)
	assert.Empty(t, env.invalidator.schools)
}

func TestMarkAbsent_SkipsNonWorkingDay(t *testing.T) {
	env := newJobsEnv(ist(14, 18, 30), calendar.DayTypeWeekend)

	require.NoError(t, env.jobs.MarkAbsent(context.Background()))

	assert.Empty(t, env.repo.marked)
}

func TestMarkAbsent_NothingCreatedKeepsCache(t *testing.T) {
	env := newJobsEnv(ist(15, 18, 30), calendar.DayTypeWorkingDay)
	env.repo.created = 0

	require.NoError(t, env.jobs.MarkAbsent(context.Background()))

	assert.Contains(t, env.repo.marked, "school-1")
	assert.Empty(t, env.invalidator.schools)
}

func TestMarkAbsent_ReportsFailures(t *testing.T) {
	env := newJobsEnv(ist(15, 18, 30), calendar.DayTypeWorkingDay)
	env.repo.err = errors.New("connection reset")

	err := env.jobs.MarkAbsent(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 schools")
}

func TestRollupMonthlyStats(t *testing.T) {
	env := newJobsEnv(ist(15, 1, 0), calendar.DayTypeWorkingDay)

	require.NoError(t, env.jobs.RollupMonthlyStats(context.Background()))

	assert.Equal(t, []rollupCall{{"school-1", 1, 2024}}, env.stats.calls)
}

func TestRollupMonthlyStats_FirstOfMonthFinalizesPrevious(t *testing.T) {
	env := newJobsEnv(ist(1, 1, 0), calendar.DayTypeWorkingDay)

	require.NoError(t, env.jobs.RollupMonthlyStats(context.Background()))

	assert.Equal(t, []rollupCall{
		{"school-1", 1, 2024},
		{"school-1", 12, 2023},
	}, env.stats.calls)
}
