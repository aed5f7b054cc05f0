package attendance

import (
	"context"
)

// AttendanceService defines the attendance state machine and its read helpers.
type AttendanceService interface {
	// MarkAttendance runs one CHECK_IN or CHECK_OUT transition atomically.
	// Business-rule rejections come back as MarkResult with Success=false and a nil error.
	MarkAttendance(ctx context.Context, req MarkRequest) (MarkResult, error)

	// GetTodayStatus describes the user's attendance state for the current regional day.
	GetTodayStatus(ctx context.Context, schoolID, userID string) (TodayStatusResponse, error)

	GetConfig(ctx context.Context, schoolID string) (ConfigResponse, error)
	UpsertConfig(ctx context.Context, req UpsertConfigRequest) (ConfigResponse, error)
}

// ReportInvalidator drops cached reports of a school after attendance changes.
type ReportInvalidator interface {
	InvalidateSchool(schoolID string)
}

// EventPublisher pushes live attendance changes to dashboards.
type EventPublisher interface {
	PublishAttendance(schoolID string, eventName string, data interface{})
}
