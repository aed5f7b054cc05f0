package postgresql_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/report"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/stats"
	"github.com/cmlabs-hris/attendance-engine-go/internal/repository/postgresql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	setupOnce sync.Once
	testDB    *TestDatabaseSetup
	setupErr  error
	enabled   bool
)

func integrationDB(t *testing.T) *TestDatabaseSetup {
	t.Helper()
	ctx := context.Background()

	setupOnce.Do(func() {
		testDB, enabled, setupErr = NewTestDatabase(ctx)
		if setupErr == nil && enabled {
			setupErr = testDB.ApplySchema(ctx)
		}
	})
	if !enabled {
		t.Skip("TEST_DATABASE_URL not set")
	}
	require.NoError(t, setupErr)
	require.NoError(t, testDB.TruncateAllTables(ctx))
	return testDB
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func day(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func TestAttendanceRepository_CheckInLifecycle(t *testing.T) {
	db := integrationDB(t)
	ctx := context.Background()
	repo := postgresql.NewAttendanceRepository(db.DB)

	schoolID, userID := newID(), newID()
	require.NoError(t, db.InsertUser(ctx, userID, schoolID, "Asha", "STUDENT"))

	date := day("2024-01-15")
	checkIn := time.Date(2024, 1, 15, 2, 40, 0, 0, time.UTC)

	record := attendance.Record{
		ID:              newID(),
		UserID:          userID,
		SchoolID:        schoolID,
		Date:            date,
		Status:          attendance.StatusPresent,
		CheckInTime:     &checkIn,
		CheckInLocation: &attendance.GeoPoint{Latitude: 12.97, Longitude: 77.59},
		MarkedBy:        userID,
		ApprovalStatus:  attendance.ApprovalNotRequired,
	}

	saved, err := repo.UpsertCheckIn(ctx, record)
	require.NoError(t, err)
	assert.Equal(t, record.ID, saved.ID)
	require.NotNil(t, saved.CheckInLocation)
	assert.InDelta(t, 12.97, saved.CheckInLocation.Latitude, 1e-9)

	record.ID = newID()
	_, err = repo.UpsertCheckIn(ctx, record)
	assert.ErrorIs(t, err, attendance.ErrDuplicateRecord)

	tx := postgresql.NewTxManager(db.DB)
	err = tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := repo.GetForUpdate(ctx, userID, schoolID, date)
		require.NoError(t, err)
		require.NotNil(t, current)

		checkOut := checkIn.Add(6 * time.Hour)
		current.CheckOutTime = &checkOut
		current.WorkingHours = 6
		current.Status = attendance.StatusPresent
		_, err = repo.UpdateCheckOut(ctx, *current)
		return err
	})
	require.NoError(t, err)

	got, err := repo.GetByUserAndDate(ctx, userID, schoolID, date)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.CheckOutTime)
	assert.Equal(t, 6.0, got.WorkingHours)

	missing, err := repo.GetByUserAndDate(ctx, userID, schoolID, day("2024-01-16"))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAttendanceRepository_ConcurrentCheckIns(t *testing.T) {
	db := integrationDB(t)
	ctx := context.Background()
	repo := postgresql.NewAttendanceRepository(db.DB)

	schoolID, userID := newID(), newID()
	require.NoError(t, db.InsertUser(ctx, userID, schoolID, "Ravi", "STUDENT"))

	date := day("2024-01-15")
	checkIn := time.Date(2024, 1, 15, 2, 40, 0, 0, time.UTC)

	const attempts = 5
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.UpsertCheckIn(ctx, attendance.Record{
				ID:             newID(),
				UserID:         userID,
				SchoolID:       schoolID,
				Date:           date,
				Status:         attendance.StatusPresent,
				CheckInTime:    &checkIn,
				MarkedBy:       userID,
				ApprovalStatus: attendance.ApprovalNotRequired,
			})
		}(i)
	}
	wg.Wait()

	created, duplicates := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, attendance.ErrDuplicateRecord):
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, attempts-1, duplicates)
}

func TestAttendanceRepository_MarkAbsentForUnmarked(t *testing.T) {
	db := integrationDB(t)
	ctx := context.Background()
	repo := postgresql.NewAttendanceRepository(db.DB)

	schoolID := newID()
	present, absent, onLeave := newID(), newID(), newID()
	require.NoError(t, db.InsertUser(ctx, present, schoolID, "Present", "STUDENT"))
	require.NoError(t, db.InsertUser(ctx, absent, schoolID, "Absent", "TEACHER"))
	require.NoError(t, db.InsertUser(ctx, onLeave, schoolID, "Leave", "STUDENT"))

	date := day("2024-01-15")
	_, err := db.DB.Exec(ctx, `
		INSERT INTO leave_requests (id, user_id, school_id, leave_type, status, start_date, end_date, total_days)
		VALUES ($1, $2, $3, 'SICK', 'APPROVED', '2024-01-14', '2024-01-16', 3)`,
		newID(), onLeave, schoolID)
	require.NoError(t, err)

	checkIn := time.Date(2024, 1, 15, 2, 40, 0, 0, time.UTC)
	_, err = repo.UpsertCheckIn(ctx, attendance.Record{
		ID: newID(), UserID: present, SchoolID: schoolID, Date: date,
		Status: attendance.StatusPresent, CheckInTime: &checkIn,
		MarkedBy: present, ApprovalStatus: attendance.ApprovalNotRequired,
	})
	require.NoError(t, err)

	created, err := repo.MarkAbsentForUnmarked(ctx, schoolID, date)
	require.NoError(t, err)
	assert.Equal(t, int64(2), created)

	again, err := repo.MarkAbsentForUnmarked(ctx, schoolID, date)
	require.NoError(t, err)
	assert.Zero(t, again)

	rec, err := repo.GetByUserAndDate(ctx, absent, schoolID, date)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusAbsent, rec.Status)
	assert.Equal(t, attendance.MarkedBySystem, rec.MarkedBy)

	rec, err = repo.GetByUserAndDate(ctx, onLeave, schoolID, date)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusOnLeave, rec.Status)
}

func TestConfigRepository(t *testing.T) {
	db := integrationDB(t)
	ctx := context.Background()
	repo := postgresql.NewConfigRepository(db.DB)

	schoolID := newID()
	_, err := repo.GetBySchoolID(ctx, schoolID)
	assert.ErrorIs(t, err, attendance.ErrConfigNotFound)

	lat, lng := 12.97, 77.59
	cfg := attendance.Config{
		SchoolID: schoolID, DefaultStartTime: "08:00", DefaultEndTime: "14:00",
		CheckInWindowHours: 2, CheckOutGraceHours: 2, MinWorkingHours: 4,
		GracePeriodMinutes: 15, HalfDayHours: 4, FullDayHours: 8,
		EnableGeoFencing: true, SchoolLatitude: &lat, SchoolLongitude: &lng, AllowedRadiusMeters: 200,
	}
	_, err = repo.Upsert(ctx, cfg)
	require.NoError(t, err)

	cfg.GracePeriodMinutes = 10
	saved, err := repo.Upsert(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, 10, saved.GracePeriodMinutes)
	assert.True(t, saved.HasSchoolLocation())

	ids, err := repo.ListSchoolIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{schoolID}, ids)
}

func TestStatsAndDefaulters(t *testing.T) {
	db := integrationDB(t)
	ctx := context.Background()
	statsRepo := postgresql.NewStatsRepository(db.DB)
	reportRepo := postgresql.NewReportRepository(db.DB, time.UTC)

	schoolID, low, high := newID(), newID(), newID()
	require.NoError(t, db.InsertUser(ctx, low, schoolID, "Low", "STUDENT"))
	require.NoError(t, db.InsertUser(ctx, high, schoolID, "High", "STUDENT"))

	for _, row := range []stats.MonthlyRow{
		{UserID: low, SchoolID: schoolID, Month: 1, Year: 2024, MonthlyStats: stats.MonthlyStats{TotalDays: 20, PresentDays: 10, AttendancePercentage: 50}},
		{UserID: low, SchoolID: schoolID, Month: 12, Year: 2023, MonthlyStats: stats.MonthlyStats{TotalDays: 20, PresentDays: 12, AttendancePercentage: 60}},
		{UserID: high, SchoolID: schoolID, Month: 1, Year: 2024, MonthlyStats: stats.MonthlyStats{TotalDays: 20, PresentDays: 19, AttendancePercentage: 95}},
	} {
		require.NoError(t, statsRepo.UpsertMonthly(ctx, row))
	}

	got, err := statsRepo.GetMonthly(ctx, schoolID, low, 1, 2024)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 50.0, got.AttendancePercentage)

	year, err := reportRepo.GetActiveAcademicYear(ctx, schoolID)
	require.NoError(t, err)
	assert.Nil(t, year)

	_, err = db.DB.Exec(ctx, `
		INSERT INTO academic_years (id, school_id, name, start_date, end_date, is_active)
		VALUES ($1, $2, '2023-24', '2023-06-01', '2024-05-31', TRUE)`, newID(), schoolID)
	require.NoError(t, err)

	year, err = reportRepo.GetActiveAcademicYear(ctx, schoolID)
	require.NoError(t, err)
	require.NotNil(t, year)

	exact := report.ResolveMonthPeriod(day("2024-01-01"), day("2024-01-31"))
	rows, err := reportRepo.GetDefaulters(ctx, schoolID, *year, exact, report.DefaulterThreshold)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, low, rows[0].UserID)

	cross := report.ResolveMonthPeriod(day("2023-12-01"), day("2024-01-31"))
	rows, err = reportRepo.GetDefaulters(ctx, schoolID, *year, cross, report.DefaulterThreshold)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
