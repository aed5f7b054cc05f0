package attendance

import (
	"context"
	"time"
)

// AttendanceRepository defines data access for attendance records.
// All methods take schoolID to keep tenants isolated.
type AttendanceRepository interface {
	// GetForUpdate fetches the user's record for the day and locks it for the
	// surrounding transaction. Returns nil when no record exists.
	GetForUpdate(ctx context.Context, userID, schoolID string, date time.Time) (*Record, error)

	// GetByUserAndDate fetches without locking. Returns nil when no record exists.
	GetByUserAndDate(ctx context.Context, userID, schoolID string, date time.Time) (*Record, error)

	// UpsertCheckIn inserts the day's record or fills a record that has no check-in yet.
	// Returns ErrDuplicateRecord when a check-in already exists.
	UpsertCheckIn(ctx context.Context, record Record) (Record, error)

	// UpdateCheckOut writes the check-out fields of an existing record.
	UpdateCheckOut(ctx context.Context, record Record) (Record, error)

	// MarkAbsentForUnmarked creates ABSENT records for active users of the school with no
	// record on the date. Returns the number of rows created.
	MarkAbsentForUnmarked(ctx context.Context, schoolID string, date time.Time) (int64, error)
}

// ConfigRepository is the attendance configuration store.
type ConfigRepository interface {
	// GetBySchoolID returns ErrConfigNotFound when the school has no configuration.
	GetBySchoolID(ctx context.Context, schoolID string) (Config, error)
	Upsert(ctx context.Context, cfg Config) (Config, error)
	ListSchoolIDs(ctx context.Context) ([]string, error)
}

// TxManager runs fn inside one database transaction. Repositories called with the
// context passed to fn take part in that transaction.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
