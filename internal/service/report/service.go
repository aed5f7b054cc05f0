package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/report"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/stats"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/cache"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/clock"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/utils"
	"golang.org/x/sync/errgroup"
)

type ReportServiceImpl struct {
	reportRepo report.ReportRepository
	leaveRepo  leave.LeaveRequestRepository
	stats      stats.StatsService
	cache      *cache.SchoolCache
	clock      *clock.Resolver
}

func NewReportService(
	reportRepo report.ReportRepository,
	leaveRepo leave.LeaveRequestRepository,
	statsService stats.StatsService,
	reportCache *cache.SchoolCache,
	resolver *clock.Resolver,
) report.ReportService {
	return &ReportServiceImpl{
		reportRepo: reportRepo,
		leaveRepo:  leaveRepo,
		stats:      statsService,
		cache:      reportCache,
		clock:      resolver,
	}
}

// GenerateReport implements report.ReportService.
func (s *ReportServiceImpl) GenerateReport(ctx context.Context, req report.Request) (json.RawMessage, error) {
	if !req.Type.IsValid() {
		return nil, fmt.Errorf("%w: %q", report.ErrInvalidReportType, req.Type)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := req.CacheKey()
	if cached, ok := s.cache.Get(req.SchoolID, key); ok {
		slog.Debug("report cache hit", "school_id", req.SchoolID, "type", req.Type)
		return cached, nil
	}

	gen := s.cache.Generation(req.SchoolID)
	payload, err := s.build(ctx, req)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s report: %w", req.Type, err)
	}

	if !s.cache.Set(req.SchoolID, key, gen, body) {
		slog.Debug("report invalidated while building, not cached", "school_id", req.SchoolID, "type", req.Type)
	}
	return body, nil
}

// InvalidateSchool implements report.ReportService.
func (s *ReportServiceImpl) InvalidateSchool(schoolID string) {
	s.cache.InvalidateSchool(schoolID)
}

func (s *ReportServiceImpl) build(ctx context.Context, req report.Request) (interface{}, error) {
	start, end := req.Range()
	f := report.Filter{
		SchoolID:  req.SchoolID,
		StartDate: start,
		EndDate:   end,
		ClassID:   req.ClassID,
		SectionID: req.SectionID,
	}
	header := s.header(req)

	switch req.Type {
	case report.TypeMonthly:
		days, summary, err := s.monthly(ctx, f)
		if err != nil {
			return nil, err
		}
		return report.MonthlyReport{Header: header, Days: days, Summary: summary}, nil

	case report.TypeClassWise:
		classes, err := s.classWise(ctx, f)
		if err != nil {
			return nil, err
		}
		return report.ClassWiseReport{Header: header, Classes: classes}, nil

	case report.TypeStudentWise:
		students, err := s.studentWise(ctx, f)
		if err != nil {
			return nil, err
		}
		return report.StudentWiseReport{Header: header, Students: students}, nil

	case report.TypeTeacherPerformance:
		teachers, err := s.teacherPerformance(ctx, f)
		if err != nil {
			return nil, err
		}
		return report.TeacherPerformanceReport{Header: header, Teachers: teachers}, nil

	case report.TypeDefaulters:
		return s.defaulters(ctx, f, header)

	case report.TypeLeaveAnalysis:
		summary, requests, err := s.leaveAnalysis(ctx, f)
		if err != nil {
			return nil, err
		}
		return report.LeaveAnalysisReport{Header: header, LeaveSummary: summary, Requests: requests}, nil

	case report.TypeSummary:
		return s.summary(ctx, f, header)
	}

	return nil, fmt.Errorf("%w: %q", report.ErrInvalidReportType, req.Type)
}

func (s *ReportServiceImpl) header(req report.Request) report.Header {
	return report.Header{
		ReportType:  req.Type,
		SchoolID:    req.SchoolID,
		Period:      report.Period{StartDate: req.StartDate, EndDate: req.EndDate},
		GeneratedAt: s.clock.Now().In(s.clock.Location).Format(time.RFC3339),
	}
}

func (s *ReportServiceImpl) monthly(ctx context.Context, f report.Filter) ([]report.DailyCount, report.MonthlySummary, error) {
	days, err := s.reportRepo.GetDailyCounts(ctx, f)
	if err != nil {
		return nil, report.MonthlySummary{}, fmt.Errorf("failed to get daily counts: %w", err)
	}
	if days == nil {
		days = []report.DailyCount{}
	}
	return days, Summarize(days), nil
}

// Summarize totals daily counts. The average counts PRESENT and LATE as attended.
func Summarize(days []report.DailyCount) report.MonthlySummary {
	var summary report.MonthlySummary
	for _, d := range days {
		summary.TotalPresent += d.Present
		summary.TotalAbsent += d.Absent
		summary.TotalLate += d.Late
		summary.TotalHalfDay += d.HalfDay
		summary.TotalOnLeave += d.OnLeave
		summary.TotalRecords += d.Total
	}
	summary.AvgAttendancePercentage = utils.Percentage(summary.TotalPresent+summary.TotalLate, summary.TotalRecords, 2)
	return summary
}

func (s *ReportServiceImpl) classWise(ctx context.Context, f report.Filter) ([]report.ClassRow, error) {
	classes, err := s.reportRepo.GetClassAttendance(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to get class attendance: %w", err)
	}
	for i := range classes {
		c := &classes[i]
		c.AttendancePercentage = utils.Percentage(c.Present+c.Late, c.TotalRecords, 2)
	}
	if classes == nil {
		classes = []report.ClassRow{}
	}
	return classes, nil
}

func (s *ReportServiceImpl) studentWise(ctx context.Context, f report.Filter) ([]report.StudentRow, error) {
	rollups, err := s.reportRepo.GetStudentRollups(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to get student rollups: %w", err)
	}
	if len(rollups) == 0 {
		return []report.StudentRow{}, nil
	}

	userIDs := make([]string, len(rollups))
	for i, r := range rollups {
		userIDs[i] = r.UserID
	}

	streaks, err := s.stats.ComputeStreaks(ctx, f.SchoolID, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to compute streaks: %w", err)
	}

	records, err := s.reportRepo.GetDayRecords(ctx, f, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get day records: %w", err)
	}
	byUser := make(map[string][]report.DayRecord, len(rollups))
	for _, r := range records {
		byUser[r.UserID] = append(byUser[r.UserID], r)
	}

	rows := make([]report.StudentRow, len(rollups))
	for i, r := range rollups {
		days := byUser[r.UserID]
		if days == nil {
			days = []report.DayRecord{}
		}
		rows[i] = report.StudentRow{
			StudentRollup:        r,
			AttendancePercentage: utils.Percentage(r.Present+r.Late, r.TotalRecords, 2),
			CurrentStreak:        streaks[r.UserID],
			Records:              days,
		}
	}
	return rows, nil
}

func (s *ReportServiceImpl) teacherPerformance(ctx context.Context, f report.Filter) ([]report.TeacherRow, error) {
	rollups, err := s.reportRepo.GetTeacherRollups(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to get teacher rollups: %w", err)
	}
	if len(rollups) == 0 {
		return []report.TeacherRow{}, nil
	}

	userIDs := make([]string, len(rollups))
	for i, r := range rollups {
		userIDs[i] = r.UserID
	}
	streaks, err := s.stats.ComputeStreaks(ctx, f.SchoolID, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to compute streaks: %w", err)
	}

	rows := make([]report.TeacherRow, len(rollups))
	for i, r := range rollups {
		rows[i] = report.TeacherRow{
			UserID:               r.UserID,
			Name:                 r.Name,
			Role:                 r.Role,
			DaysPresent:          r.DaysPresent,
			DaysLate:             r.DaysLate,
			DaysAbsent:           r.DaysAbsent,
			TotalRecords:         r.TotalRecords,
			TotalWorkingHours:    utils.Round(r.TotalWorkingHours, 2),
			AvgWorkingHours:      utils.Average(r.TotalWorkingHours, r.WorkedDays, 2),
			AvgLateMinutes:       utils.Average(float64(r.TotalLateMinutes), r.LateDaysMeasured, 2),
			CurrentStreak:        streaks[r.UserID],
			AttendancePercentage: utils.Percentage(r.DaysPresent+r.DaysLate, r.TotalRecords, 2),
		}
	}
	return rows, nil
}

func (s *ReportServiceImpl) defaulters(ctx context.Context, f report.Filter, header report.Header) (report.DefaultersReport, error) {
	year, err := s.reportRepo.GetActiveAcademicYear(ctx, f.SchoolID)
	if err != nil {
		return report.DefaultersReport{}, fmt.Errorf("failed to get active academic year: %w", err)
	}
	if year == nil {
		return report.DefaultersReport{}, report.ErrNoActiveAcademicYear
	}

	period := report.ResolveMonthPeriod(f.StartDate, f.EndDate)
	rows, err := s.reportRepo.GetDefaulters(ctx, f.SchoolID, *year, period, report.DefaulterThreshold)
	if err != nil {
		return report.DefaultersReport{}, fmt.Errorf("failed to get defaulters: %w", err)
	}
	if rows == nil {
		rows = []report.DefaulterRow{}
	}

	return report.DefaultersReport{
		Header:       header,
		AcademicYear: *year,
		Threshold:    report.DefaulterThreshold,
		MonthPeriod:  period,
		Defaulters:   rows,
	}, nil
}

func (s *ReportServiceImpl) leaveAnalysis(ctx context.Context, f report.Filter) (report.LeaveSummary, []report.LeaveRequestRow, error) {
	requests, err := s.leaveRepo.ListOverlapping(ctx, f.SchoolID, f.StartDate, f.EndDate)
	if err != nil {
		return report.LeaveSummary{}, nil, fmt.Errorf("failed to list leave requests: %w", err)
	}

	rows := make([]report.LeaveRequestRow, 0, len(requests))
	for _, r := range requests {
		rows = append(rows, report.LeaveRequestRow{
			ID:            r.ID,
			UserID:        r.UserID,
			RequesterName: r.RequesterName,
			RequesterRole: r.RequesterRole,
			LeaveType:     r.LeaveType,
			Status:        string(r.Status),
			StartDate:     r.StartDate.Format(clock.DateLayout),
			EndDate:       r.EndDate.Format(clock.DateLayout),
			TotalDays:     r.TotalDays,
			Reason:        r.Reason,
		})
	}
	return SummarizeLeaves(requests), rows, nil
}

// SummarizeLeaves groups requests by leave type and status, ordered by type then status.
func SummarizeLeaves(requests []leave.LeaveRequest) report.LeaveSummary {
	type groupKey struct{ leaveType, status string }

	groups := make(map[groupKey]*report.LeaveGroup)
	var totals report.LeaveTotals
	for _, r := range requests {
		k := groupKey{r.LeaveType, string(r.Status)}
		g, ok := groups[k]
		if !ok {
			g = &report.LeaveGroup{LeaveType: r.LeaveType, Status: string(r.Status)}
			groups[k] = g
		}
		g.Count++
		g.TotalDays += r.TotalDays

		totals.TotalRequests++
		totals.TotalDays += r.TotalDays
		switch r.Status {
		case leave.StatusPending:
			totals.Pending++
		case leave.StatusApproved:
			totals.Approved++
		case leave.StatusRejected:
			totals.Rejected++
		}
	}

	out := make([]report.LeaveGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LeaveType != out[j].LeaveType {
			return out[i].LeaveType < out[j].LeaveType
		}
		return out[i].Status < out[j].Status
	})

	return report.LeaveSummary{Totals: totals, Groups: out}
}

func (s *ReportServiceImpl) summary(ctx context.Context, f report.Filter, header report.Header) (report.SummaryReport, error) {
	result := report.SummaryReport{Header: header}

	unfiltered := f
	unfiltered.ClassID = nil
	unfiltered.SectionID = nil

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, overview, err := s.monthly(gctx, f)
		result.Overview = overview
		return err
	})
	g.Go(func() error {
		classes, err := s.classWise(gctx, unfiltered)
		result.ClassSummary = classes
		return err
	})
	g.Go(func() error {
		teachers, err := s.teacherPerformance(gctx, f)
		result.TeacherSummary = teachers
		return err
	})
	g.Go(func() error {
		leaves, _, err := s.leaveAnalysis(gctx, f)
		result.LeaveSummary = leaves
		return err
	})

	if err := g.Wait(); err != nil {
		return report.SummaryReport{}, err
	}
	return result, nil
}
