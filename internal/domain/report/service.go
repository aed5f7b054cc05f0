package report

import (
	"context"
	"encoding/json"
)

// ReportService generates report payloads behind a school-scoped cache.
type ReportService interface {
	// GenerateReport returns the marshalled payload. Identical requests within the cache
	// TTL return identical bytes.
	GenerateReport(ctx context.Context, req Request) (json.RawMessage, error)

	// InvalidateSchool drops every cached report of the school.
	InvalidateSchool(schoolID string)
}
