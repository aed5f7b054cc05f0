package attendance

import "errors"

// Attendance domain errors. Business-rule rejections are not errors; see RejectionReason.
var (
	// Configuration errors
	ErrConfigNotFound        = errors.New("attendance configuration not found for this school")
	ErrSchoolLocationMissing = errors.New("geofencing is enabled but the school location is not configured")
	ErrInvalidConfig         = errors.New("attendance configuration is invalid")

	// Concurrency
	ErrDuplicateRecord = errors.New("attendance record already exists for this user and date")

	ErrAttendanceNotFound = errors.New("attendance record not found")
)
