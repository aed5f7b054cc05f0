package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/calendar"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/clock"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/utils"
	"github.com/google/uuid"
)

const (
	EventCheckIn  = "attendance.check_in"
	EventCheckOut = "attendance.check_out"
)

type AttendanceServiceImpl struct {
	txManager      attendance.TxManager
	attendanceRepo attendance.AttendanceRepository
	configRepo     attendance.ConfigRepository
	calendar       calendar.CalendarService
	clock          *clock.Resolver
	invalidator    attendance.ReportInvalidator
	publisher      attendance.EventPublisher
}

// NewAttendanceService wires the state machine. invalidator and publisher may be nil.
func NewAttendanceService(
	txManager attendance.TxManager,
	attendanceRepo attendance.AttendanceRepository,
	configRepo attendance.ConfigRepository,
	calendarService calendar.CalendarService,
	resolver *clock.Resolver,
	invalidator attendance.ReportInvalidator,
	publisher attendance.EventPublisher,
) attendance.AttendanceService {
	return &AttendanceServiceImpl{
		txManager:      txManager,
		attendanceRepo: attendanceRepo,
		configRepo:     configRepo,
		calendar:       calendarService,
		clock:          resolver,
		invalidator:    invalidator,
		publisher:      publisher,
	}
}

// MarkAttendance implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) MarkAttendance(ctx context.Context, req attendance.MarkRequest) (attendance.MarkResult, error) {
	if err := req.Validate(); err != nil {
		return attendance.MarkResult{}, err
	}

	common := req.Common()
	if common.MarkedBy == "" {
		common.MarkedBy = common.UserID
	}
	action := req.Action()

	cfg, err := s.configRepo.GetBySchoolID(ctx, common.SchoolID)
	if err != nil {
		if errors.Is(err, attendance.ErrConfigNotFound) {
			return attendance.MarkResult{}, err
		}
		return attendance.MarkResult{}, fmt.Errorf("failed to get attendance config: %w", err)
	}

	now := s.clock.Now()
	today := s.clock.DayOf(now)

	day, err := s.calendar.ResolveDay(ctx, common.SchoolID, today)
	if err != nil {
		return attendance.MarkResult{}, fmt.Errorf("failed to resolve calendar day: %w", err)
	}
	if !day.IsWorkingDay() {
		dayType := string(day.DayType)
		msg := "Attendance cannot be marked on a non-working day"
		if day.HolidayName != nil {
			msg = fmt.Sprintf("Attendance cannot be marked on a holiday: %s", *day.HolidayName)
		}
		result := reject(action, attendance.ReasonNotWorkingDay, msg)
		result.DayType = &dayType
		result.HolidayName = day.HolidayName
		return result, nil
	}

	geo, err := checkGeofence(cfg, common.Location)
	if err != nil {
		return attendance.MarkResult{}, err
	}
	if geo.Checked && !geo.Inside {
		distance := utils.Round(geo.Distance, 2)
		radius := cfg.AllowedRadiusMeters
		result := reject(action, attendance.ReasonOutsideGeofence,
			fmt.Sprintf("You are %.0fm away from school. Allowed radius is %.0fm", distance, radius))
		result.DistanceMeters = &distance
		result.AllowedRadiusMeters = &radius
		return result, nil
	}

	windows, err := ComputeWindows(cfg, today, s.clock)
	if err != nil {
		return attendance.MarkResult{}, err
	}

	var result attendance.MarkResult
	err = s.txManager.WithinTx(ctx, func(txCtx context.Context) error {
		var txErr error
		switch action {
		case attendance.ActionCheckIn:
			result, txErr = s.checkIn(txCtx, common, cfg, today, now, windows)
		case attendance.ActionCheckOut:
			result, txErr = s.checkOut(txCtx, common, cfg, today, now, windows)
		default:
			txErr = fmt.Errorf("unsupported attendance action %q", action)
		}
		return txErr
	})
	if err != nil {
		if errors.Is(err, attendance.ErrDuplicateRecord) {
			// A concurrent check-in won the race; report the record it wrote.
			existing, getErr := s.attendanceRepo.GetByUserAndDate(ctx, common.UserID, common.SchoolID, today)
			if getErr != nil {
				return attendance.MarkResult{}, fmt.Errorf("failed to get attendance record: %w", getErr)
			}
			return s.alreadyCheckedIn(existing), nil
		}
		return attendance.MarkResult{}, err
	}

	if result.Success {
		s.afterMark(common.SchoolID, action, result)
	}

	return result, nil
}

func (s *AttendanceServiceImpl) checkIn(ctx context.Context, common attendance.MarkCommon, cfg attendance.Config, today, now time.Time, w Windows) (attendance.MarkResult, error) {
	existing, err := s.attendanceRepo.GetForUpdate(ctx, common.UserID, common.SchoolID, today)
	if err != nil {
		return attendance.MarkResult{}, fmt.Errorf("failed to get attendance record: %w", err)
	}
	if existing != nil && existing.CheckInTime != nil {
		return s.alreadyCheckedIn(existing), nil
	}

	if now.Before(w.SchoolStart) {
		opensAt := s.formatClock(w.SchoolStart)
		result := reject(attendance.ActionCheckIn, attendance.ReasonCheckInNotOpen,
			fmt.Sprintf("Check-in opens at %s", opensAt))
		result.OpensAt = &opensAt
		return result, nil
	}
	if now.After(w.CheckInDeadline) {
		closedAt := s.formatClock(w.CheckInDeadline)
		result := reject(attendance.ActionCheckIn, attendance.ReasonCheckInClosed,
			fmt.Sprintf("Check-in closed at %s", closedAt))
		result.ClosedAt = &closedAt
		return result, nil
	}

	isLate, lateBy := Lateness(now, w.GracePeriodEnd)
	status := attendance.StatusPresent
	if isLate {
		status = attendance.StatusLate
	}

	checkInTime := now
	record := attendance.Record{
		UserID:           common.UserID,
		SchoolID:         common.SchoolID,
		Date:             today,
		Status:           status,
		CheckInTime:      &checkInTime,
		CheckInLocation:  common.Location,
		IsLateCheckIn:    isLate,
		LateByMinutes:    lateBy,
		DeviceInfo:       common.DeviceInfo,
		Remarks:          common.Remarks,
		MarkedBy:         common.MarkedBy,
		RequiresApproval: false,
		ApprovalStatus:   attendance.ApprovalNotRequired,
	}
	if existing != nil {
		record.ID = existing.ID
		if record.Remarks == nil {
			record.Remarks = existing.Remarks
		}
	} else {
		id, err := uuid.NewV7()
		if err != nil {
			return attendance.MarkResult{}, fmt.Errorf("failed to generate attendance id: %w", err)
		}
		record.ID = id.String()
	}

	saved, err := s.attendanceRepo.UpsertCheckIn(ctx, record)
	if err != nil {
		if errors.Is(err, attendance.ErrDuplicateRecord) {
			return attendance.MarkResult{}, err
		}
		return attendance.MarkResult{}, fmt.Errorf("failed to save check-in: %w", err)
	}

	msg := "Checked in successfully"
	if isLate {
		msg = fmt.Sprintf("Checked in late by %d minutes", *lateBy)
	}
	resp := s.toRecordResponse(saved)
	return attendance.MarkResult{
		Success:       true,
		Action:        attendance.ActionCheckIn,
		Message:       msg,
		Attendance:    &resp,
		IsLate:        &isLate,
		LateByMinutes: lateBy,
		CheckOutWindow: &attendance.WindowResponse{
			Start: s.formatClock(w.CheckOutStart),
			End:   s.formatClock(w.CheckOutDeadline),
		},
	}, nil
}

func (s *AttendanceServiceImpl) checkOut(ctx context.Context, common attendance.MarkCommon, cfg attendance.Config, today, now time.Time, w Windows) (attendance.MarkResult, error) {
	existing, err := s.attendanceRepo.GetForUpdate(ctx, common.UserID, common.SchoolID, today)
	if err != nil {
		return attendance.MarkResult{}, fmt.Errorf("failed to get attendance record: %w", err)
	}
	if existing == nil || existing.CheckInTime == nil {
		return reject(attendance.ActionCheckOut, attendance.ReasonNoCheckIn, "You have not checked in today"), nil
	}
	if existing.CheckOutTime != nil {
		resp := s.toRecordResponse(*existing)
		result := reject(attendance.ActionCheckOut, attendance.ReasonAlreadyCheckedOut,
			fmt.Sprintf("Already checked out at %s", s.formatClock(*existing.CheckOutTime)))
		result.Attendance = &resp
		return result, nil
	}

	if now.Before(w.CheckOutStart) {
		opensAt := s.formatClock(w.CheckOutStart)
		result := reject(attendance.ActionCheckOut, attendance.ReasonCheckOutNotOpen,
			fmt.Sprintf("Check-out opens at %s", opensAt))
		result.OpensAt = &opensAt
		return result, nil
	}
	if now.After(w.CheckOutDeadline) {
		closedAt := s.formatClock(w.CheckOutDeadline)
		result := reject(attendance.ActionCheckOut, attendance.ReasonCheckOutClosed,
			fmt.Sprintf("Check-out closed at %s. Contact an administrator to correct your attendance", closedAt))
		result.ClosedAt = &closedAt
		return result, nil
	}

	minCheckOut := existing.CheckInTime.Add(hours(cfg.MinWorkingHours))
	if now.Before(minCheckOut) {
		minTime := s.formatClock(minCheckOut)
		result := reject(attendance.ActionCheckOut, attendance.ReasonMinHoursNotMet,
			fmt.Sprintf("Minimum %.1f working hours required. You can check out after %s", cfg.MinWorkingHours, minTime))
		result.MinTime = &minTime
		return result, nil
	}

	workingHours := WorkingHours(*existing.CheckInTime, now)
	checkOutTime := now

	record := *existing
	record.CheckOutTime = &checkOutTime
	record.CheckOutLocation = common.Location
	record.WorkingHours = workingHours
	record.Status = CheckOutStatus(workingHours, cfg)
	if common.Remarks != nil {
		record.Remarks = common.Remarks
	}

	saved, err := s.attendanceRepo.UpdateCheckOut(ctx, record)
	if err != nil {
		return attendance.MarkResult{}, fmt.Errorf("failed to save check-out: %w", err)
	}

	resp := s.toRecordResponse(saved)
	return attendance.MarkResult{
		Success:      true,
		Action:       attendance.ActionCheckOut,
		Message:      fmt.Sprintf("Checked out successfully. Worked %.2f hours", workingHours),
		Attendance:   &resp,
		WorkingHours: &workingHours,
	}, nil
}

func (s *AttendanceServiceImpl) alreadyCheckedIn(existing *attendance.Record) attendance.MarkResult {
	msg := "You have already checked in today"
	var resp *attendance.RecordResponse
	if existing != nil {
		r := s.toRecordResponse(*existing)
		resp = &r
		if existing.CheckInTime != nil {
			msg = fmt.Sprintf("Already checked in at %s", s.formatClock(*existing.CheckInTime))
		}
	}
	result := reject(attendance.ActionCheckIn, attendance.ReasonAlreadyCheckedIn, msg)
	result.Attendance = resp
	return result
}

// afterMark runs only after the transaction committed.
func (s *AttendanceServiceImpl) afterMark(schoolID string, action attendance.Action, result attendance.MarkResult) {
	if s.invalidator != nil {
		s.invalidator.InvalidateSchool(schoolID)
	}
	if s.publisher != nil && result.Attendance != nil {
		eventName := EventCheckIn
		if action == attendance.ActionCheckOut {
			eventName = EventCheckOut
		}
		s.publisher.PublishAttendance(schoolID, eventName, *result.Attendance)
	}
	slog.Debug("attendance marked", "school_id", schoolID, "action", action)
}

// GetTodayStatus implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) GetTodayStatus(ctx context.Context, schoolID, userID string) (attendance.TodayStatusResponse, error) {
	cfg, err := s.configRepo.GetBySchoolID(ctx, schoolID)
	if err != nil {
		if errors.Is(err, attendance.ErrConfigNotFound) {
			return attendance.TodayStatusResponse{}, err
		}
		return attendance.TodayStatusResponse{}, fmt.Errorf("failed to get attendance config: %w", err)
	}

	now := s.clock.Now()
	today := s.clock.DayOf(now)

	day, err := s.calendar.ResolveDay(ctx, schoolID, today)
	if err != nil {
		return attendance.TodayStatusResponse{}, fmt.Errorf("failed to resolve calendar day: %w", err)
	}

	record, err := s.attendanceRepo.GetByUserAndDate(ctx, userID, schoolID, today)
	if err != nil {
		return attendance.TodayStatusResponse{}, fmt.Errorf("failed to get attendance record: %w", err)
	}

	resp := attendance.TodayStatusResponse{
		Date:        today.Format(clock.DateLayout),
		DayType:     string(day.DayType),
		HolidayName: day.HolidayName,
	}
	if record != nil {
		r := s.toRecordResponse(*record)
		resp.Attendance = &r
		resp.HasCheckedIn = record.CheckInTime != nil
		resp.HasCheckedOut = record.CheckOutTime != nil
	}

	if !day.IsWorkingDay() {
		resp.Message = "Today is not a working day"
		return resp, nil
	}

	w, err := ComputeWindows(cfg, today, s.clock)
	if err != nil {
		return attendance.TodayStatusResponse{}, err
	}
	resp.CheckInWindow = &attendance.WindowResponse{Start: s.formatClock(w.SchoolStart), End: s.formatClock(w.CheckInDeadline)}
	resp.CheckOutWindow = &attendance.WindowResponse{Start: s.formatClock(w.CheckOutStart), End: s.formatClock(w.CheckOutDeadline)}

	switch {
	case !resp.HasCheckedIn:
		resp.CanCheckIn = !now.Before(w.SchoolStart) && !now.After(w.CheckInDeadline)
		switch {
		case resp.CanCheckIn:
			resp.Message = "Check-in is open"
		case now.Before(w.SchoolStart):
			resp.Message = fmt.Sprintf("Check-in opens at %s", s.formatClock(w.SchoolStart))
		default:
			resp.Message = "Check-in is closed for today"
		}
	case !resp.HasCheckedOut:
		minCheckOut := record.CheckInTime.Add(hours(cfg.MinWorkingHours))
		resp.CanCheckOut = !now.Before(w.CheckOutStart) && !now.After(w.CheckOutDeadline) && !now.Before(minCheckOut)
		switch {
		case resp.CanCheckOut:
			resp.Message = "Check-out is open"
		case now.After(w.CheckOutDeadline):
			resp.Message = "Check-out is closed for today"
		default:
			opens := w.CheckOutStart
			if minCheckOut.After(opens) {
				opens = minCheckOut
			}
			resp.Message = fmt.Sprintf("Check-out opens at %s", s.formatClock(opens))
		}
	default:
		resp.Message = "Attendance completed for today"
	}

	return resp, nil
}

// GetConfig implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) GetConfig(ctx context.Context, schoolID string) (attendance.ConfigResponse, error) {
	cfg, err := s.configRepo.GetBySchoolID(ctx, schoolID)
	if err != nil {
		if errors.Is(err, attendance.ErrConfigNotFound) {
			return attendance.ConfigResponse{}, err
		}
		return attendance.ConfigResponse{}, fmt.Errorf("failed to get attendance config: %w", err)
	}
	return toConfigResponse(cfg), nil
}

// UpsertConfig implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) UpsertConfig(ctx context.Context, req attendance.UpsertConfigRequest) (attendance.ConfigResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.ConfigResponse{}, err
	}

	saved, err := s.configRepo.Upsert(ctx, attendance.Config{
		SchoolID:            req.SchoolID,
		DefaultStartTime:    req.DefaultStartTime,
		DefaultEndTime:      req.DefaultEndTime,
		CheckInWindowHours:  req.CheckInWindowHours,
		CheckOutGraceHours:  req.CheckOutGraceHours,
		MinWorkingHours:     req.MinWorkingHours,
		GracePeriodMinutes:  req.GracePeriodMinutes,
		HalfDayHours:        req.HalfDayHours,
		FullDayHours:        req.FullDayHours,
		EnableGeoFencing:    req.EnableGeoFencing,
		SchoolLatitude:      req.SchoolLatitude,
		SchoolLongitude:     req.SchoolLongitude,
		AllowedRadiusMeters: req.AllowedRadiusMeters,
	})
	if err != nil {
		return attendance.ConfigResponse{}, fmt.Errorf("failed to save attendance config: %w", err)
	}
	return toConfigResponse(saved), nil
}

func reject(action attendance.Action, reason attendance.RejectionReason, msg string) attendance.MarkResult {
	return attendance.MarkResult{
		Success: false,
		Action:  action,
		Reason:  reason,
		Message: msg,
	}
}

// formatClock renders an instant as regional HH:MM.
func (s *AttendanceServiceImpl) formatClock(t time.Time) string {
	return t.In(s.clock.Location).Format("15:04")
}

func (s *AttendanceServiceImpl) formatTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.In(s.clock.Location).Format(time.RFC3339)
	return &formatted
}

func (s *AttendanceServiceImpl) toRecordResponse(r attendance.Record) attendance.RecordResponse {
	return attendance.RecordResponse{
		ID:               r.ID,
		UserID:           r.UserID,
		SchoolID:         r.SchoolID,
		Date:             r.Date.Format(clock.DateLayout),
		Status:           r.Status,
		CheckInTime:      s.formatTimestamp(r.CheckInTime),
		CheckOutTime:     s.formatTimestamp(r.CheckOutTime),
		CheckInLocation:  r.CheckInLocation,
		CheckOutLocation: r.CheckOutLocation,
		IsLateCheckIn:    r.IsLateCheckIn,
		LateByMinutes:    r.LateByMinutes,
		WorkingHours:     r.WorkingHours,
		DeviceInfo:       r.DeviceInfo,
		Remarks:          r.Remarks,
		MarkedBy:         r.MarkedBy,
		RequiresApproval: r.RequiresApproval,
		ApprovalStatus:   r.ApprovalStatus,
	}
}

func toConfigResponse(cfg attendance.Config) attendance.ConfigResponse {
	return attendance.ConfigResponse{
		SchoolID:            cfg.SchoolID,
		DefaultStartTime:    cfg.DefaultStartTime,
		DefaultEndTime:      cfg.DefaultEndTime,
		CheckInWindowHours:  cfg.CheckInWindowHours,
		CheckOutGraceHours:  cfg.CheckOutGraceHours,
		MinWorkingHours:     cfg.MinWorkingHours,
		GracePeriodMinutes:  cfg.GracePeriodMinutes,
		HalfDayHours:        cfg.HalfDayHours,
		FullDayHours:        cfg.FullDayHours,
		EnableGeoFencing:    cfg.EnableGeoFencing,
		SchoolLatitude:      cfg.SchoolLatitude,
		SchoolLongitude:     cfg.SchoolLongitude,
		AllowedRadiusMeters: cfg.AllowedRadiusMeters,
	}
}
