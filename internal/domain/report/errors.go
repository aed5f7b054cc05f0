package report

import "errors"

var (
	ErrInvalidReportType    = errors.New("invalid report type")
	ErrInvalidDateRange     = errors.New("end date must not be before start date")
	ErrNoActiveAcademicYear = errors.New("no active academic year found for this school")
)
