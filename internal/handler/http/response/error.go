package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/report"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/stats"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/user"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Auth errors
	case errors.Is(err, user.ErrInvalidToken):
		Unauthorized(w, err.Error())
	case errors.Is(err, user.ErrSchoolIDRequired):
		Forbidden(w, err.Error())
	case errors.Is(err, user.ErrInsufficientPermissions):
		Forbidden(w, err.Error())

	// Attendance configuration errors
	case errors.Is(err, attendance.ErrConfigNotFound):
		ConfigurationError(w, err.Error(), "Ask a school administrator to set up attendance settings")
	case errors.Is(err, attendance.ErrSchoolLocationMissing):
		ConfigurationError(w, err.Error(), "Ask a school administrator to set the school latitude and longitude")
	case errors.Is(err, attendance.ErrInvalidConfig):
		ConfigurationError(w, err.Error(), "Ask a school administrator to review the attendance settings")
	case errors.Is(err, attendance.ErrAttendanceNotFound):
		NotFound(w, "Attendance record not found")

	// Stats errors
	case errors.Is(err, stats.ErrInvalidMonth), errors.Is(err, stats.ErrInvalidYear):
		ValidationError(w, map[string]string{"period": err.Error()})

	// Report errors
	case errors.Is(err, report.ErrInvalidReportType):
		ValidationError(w, map[string]string{"type": err.Error()})
	case errors.Is(err, report.ErrNoActiveAcademicYear):
		BadRequestWithCode(w, "NO_ACTIVE_ACADEMIC_YEAR", err.Error())

	// Default
	default:
		slog.Error("Unhandled error", "error", err)
		InternalError(w, err)
	}
}
