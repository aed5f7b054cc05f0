package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/calendar"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type calendarRepositoryImpl struct {
	db *database.DB
}

func NewCalendarRepository(db *database.DB) calendar.CalendarRepository {
	return &calendarRepositoryImpl{db: db}
}

// GetByDate implements calendar.CalendarRepository.
func (c *calendarRepositoryImpl) GetByDate(ctx context.Context, schoolID string, date time.Time) (*calendar.Day, error) {
	q := GetQuerier(ctx, c.db)

	query := `
		SELECT school_id, date, day_type, holiday_name
		FROM calendar_days
		WHERE school_id = $1 AND date = $2
	`

	var day calendar.Day
	err := q.QueryRow(ctx, query, schoolID, date).Scan(
		&day.SchoolID,
		&day.Date,
		&day.DayType,
		&day.HolidayName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get calendar day: %w", err)
	}
	return &day, nil
}

// CountWorkingDays implements calendar.CalendarRepository.
func (c *calendarRepositoryImpl) CountWorkingDays(ctx context.Context, schoolID string, year, month int) (int, error) {
	q := GetQuerier(ctx, c.db)

	query := `
		SELECT COUNT(*)
		FROM calendar_days
		WHERE school_id = $1
		  AND day_type = 'WORKING_DAY'
		  AND EXTRACT(YEAR FROM date) = $2
		  AND EXTRACT(MONTH FROM date) = $3
	`

	var count int
	if err := q.QueryRow(ctx, query, schoolID, year, month).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count working days: %w", err)
	}
	return count, nil
}
