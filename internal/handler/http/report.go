package http

import (
	"net/http"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/report"
	"github.com/cmlabs-hris/attendance-engine-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/attendance-engine-go/internal/handler/http/response"
)

type ReportHandler interface {
	GetAttendanceReport(w http.ResponseWriter, r *http.Request)
}

type reportHandlerImpl struct {
	reportService report.ReportService
}

func NewReportHandler(reportService report.ReportService) ReportHandler {
	return &reportHandlerImpl{
		reportService: reportService,
	}
}

func optionalQuery(r *http.Request, key string) *string {
	if v := r.URL.Query().Get(key); v != "" {
		return &v
	}
	return nil
}

// GetAttendanceReport handles GET /reports/attendance
// Query params: type, start_date, end_date, class_id, section_id
func (h *reportHandlerImpl) GetAttendanceReport(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())

	reportType, err := report.ParseType(r.URL.Query().Get("type"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	req := report.Request{
		SchoolID:  claims.SchoolID,
		Type:      reportType,
		StartDate: r.URL.Query().Get("start_date"),
		EndDate:   r.URL.Query().Get("end_date"),
		ClassID:   optionalQuery(r, "class_id"),
		SectionID: optionalQuery(r, "section_id"),
	}

	payload, err := h.reportService.GenerateReport(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, payload)
}
