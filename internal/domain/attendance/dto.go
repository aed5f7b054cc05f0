package attendance

import (
	"fmt"
	"strings"

	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/validator"
)

// ========================================
// MARK ATTENDANCE DTOs
// ========================================

// MarkCommon carries the fields shared by check-in and check-out.
type MarkCommon struct {
	SchoolID   string                 `json:"-"`
	UserID     string                 `json:"-"`
	MarkedBy   string                 `json:"-"`
	Location   *GeoPoint              `json:"location,omitempty"`
	DeviceInfo map[string]interface{} `json:"device_info,omitempty"`
	Remarks    *string                `json:"remarks,omitempty"`
}

func (c MarkCommon) validate() validator.ValidationErrors {
	var errs validator.ValidationErrors

	if validator.IsEmpty(c.SchoolID) {
		errs.Add("school_id", "school_id is required")
	}
	if validator.IsEmpty(c.UserID) {
		errs.Add("user_id", "user_id is required")
	}

	if c.Location != nil {
		if !validator.IsValidLatitude(c.Location.Latitude) {
			errs.Add("location.latitude", "latitude must be between -90 and 90")
		}
		if !validator.IsValidLongitude(c.Location.Longitude) {
			errs.Add("location.longitude", "longitude must be between -180 and 180")
		}
	}

	if c.Remarks != nil && len(*c.Remarks) > 500 {
		errs.Add("remarks", "remarks must not exceed 500 characters")
	}

	return errs
}

// MarkRequest is either a CheckInRequest or a CheckOutRequest.
type MarkRequest interface {
	Action() Action
	Common() MarkCommon
	Validate() error
}

type CheckInRequest struct {
	MarkCommon
}

func (r CheckInRequest) Action() Action     { return ActionCheckIn }
func (r CheckInRequest) Common() MarkCommon { return r.MarkCommon }
func (r CheckInRequest) Validate() error    { return r.validate().Err() }

type CheckOutRequest struct {
	MarkCommon
}

func (r CheckOutRequest) Action() Action     { return ActionCheckOut }
func (r CheckOutRequest) Common() MarkCommon { return r.MarkCommon }
func (r CheckOutRequest) Validate() error    { return r.validate().Err() }

// NewMarkRequest builds the typed request for a client supplied action string.
func NewMarkRequest(action string, common MarkCommon) (MarkRequest, error) {
	switch Action(strings.ToUpper(strings.TrimSpace(action))) {
	case ActionCheckIn:
		return CheckInRequest{MarkCommon: common}, nil
	case ActionCheckOut:
		return CheckOutRequest{MarkCommon: common}, nil
	default:
		return nil, validator.ValidationErrors{{
			Field:   "action",
			Message: fmt.Sprintf("action must be one of: %s, %s", ActionCheckIn, ActionCheckOut),
		}}
	}
}

// RejectionReason identifies why a mark was refused. Rejections are normal outcomes, not errors.
type RejectionReason string

const (
	ReasonAlreadyCheckedIn  RejectionReason = "ALREADY_CHECKED_IN"
	ReasonAlreadyCheckedOut RejectionReason = "ALREADY_CHECKED_OUT"
	ReasonNotWorkingDay     RejectionReason = "NOT_WORKING_DAY"
	ReasonOutsideGeofence   RejectionReason = "OUTSIDE_GEOFENCE"
	ReasonCheckInNotOpen    RejectionReason = "CHECK_IN_NOT_OPEN"
	ReasonCheckInClosed     RejectionReason = "CHECK_IN_CLOSED"
	ReasonNoCheckIn         RejectionReason = "NO_CHECK_IN"
	ReasonCheckOutNotOpen   RejectionReason = "CHECK_OUT_NOT_OPEN"
	ReasonCheckOutClosed    RejectionReason = "CHECK_OUT_CLOSED"
	ReasonMinHoursNotMet    RejectionReason = "MIN_HOURS_NOT_MET"
)

type WindowResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MarkResult is the outcome of a mark attempt.
type MarkResult struct {
	Success    bool            `json:"success"`
	Action     Action          `json:"action"`
	Reason     RejectionReason `json:"reason,omitempty"`
	Message    string          `json:"message"`
	Attendance *RecordResponse `json:"attendance,omitempty"`

	// Rejection context
	OpensAt             *string  `json:"opens_at,omitempty"`
	ClosedAt            *string  `json:"closed_at,omitempty"`
	MinTime             *string  `json:"min_time,omitempty"`
	DistanceMeters      *float64 `json:"distance_meters,omitempty"`
	AllowedRadiusMeters *float64 `json:"allowed_radius_meters,omitempty"`
	DayType             *string  `json:"day_type,omitempty"`
	HolidayName         *string  `json:"holiday_name,omitempty"`

	// Success context
	IsLate         *bool           `json:"is_late,omitempty"`
	LateByMinutes  *int            `json:"late_by_minutes,omitempty"`
	WorkingHours   *float64        `json:"working_hours,omitempty"`
	CheckOutWindow *WindowResponse `json:"check_out_window,omitempty"`
}

type RecordResponse struct {
	ID               string                 `json:"id"`
	UserID           string                 `json:"user_id"`
	SchoolID         string                 `json:"school_id"`
	Date             string                 `json:"date"`
	Status           Status                 `json:"status"`
	CheckInTime      *string                `json:"check_in_time,omitempty"`
	CheckOutTime     *string                `json:"check_out_time,omitempty"`
	CheckInLocation  *GeoPoint              `json:"check_in_location,omitempty"`
	CheckOutLocation *GeoPoint              `json:"check_out_location,omitempty"`
	IsLateCheckIn    bool                   `json:"is_late_check_in"`
	LateByMinutes    *int                   `json:"late_by_minutes,omitempty"`
	WorkingHours     float64                `json:"working_hours"`
	DeviceInfo       map[string]interface{} `json:"device_info,omitempty"`
	Remarks          *string                `json:"remarks,omitempty"`
	MarkedBy         string                 `json:"marked_by"`
	RequiresApproval bool                   `json:"requires_approval"`
	ApprovalStatus   ApprovalStatus         `json:"approval_status"`
}

// ========================================
// TODAY STATUS DTOs
// ========================================

type TodayStatusResponse struct {
	Date           string          `json:"date"`
	DayType        string          `json:"day_type"`
	HolidayName    *string         `json:"holiday_name,omitempty"`
	HasCheckedIn   bool            `json:"has_checked_in"`
	HasCheckedOut  bool            `json:"has_checked_out"`
	CanCheckIn     bool            `json:"can_check_in"`
	CanCheckOut    bool            `json:"can_check_out"`
	CheckInWindow  *WindowResponse `json:"check_in_window,omitempty"`
	CheckOutWindow *WindowResponse `json:"check_out_window,omitempty"`
	Attendance     *RecordResponse `json:"attendance,omitempty"`
	Message        string          `json:"message"`
}

// ========================================
// CONFIG DTOs
// ========================================

type UpsertConfigRequest struct {
	SchoolID            string   `json:"-"`
	DefaultStartTime    string   `json:"default_start_time"`
	DefaultEndTime      string   `json:"default_end_time"`
	CheckInWindowHours  float64  `json:"check_in_window_hours"`
	CheckOutGraceHours  float64  `json:"check_out_grace_hours"`
	MinWorkingHours     float64  `json:"min_working_hours"`
	GracePeriodMinutes  int      `json:"grace_period_minutes"`
	HalfDayHours        float64  `json:"half_day_hours"`
	FullDayHours        float64  `json:"full_day_hours"`
	EnableGeoFencing    bool     `json:"enable_geo_fencing"`
	SchoolLatitude      *float64 `json:"school_latitude,omitempty"`
	SchoolLongitude     *float64 `json:"school_longitude,omitempty"`
	AllowedRadiusMeters float64  `json:"allowed_radius_meters"`
}

func (r *UpsertConfigRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.SchoolID) {
		errs.Add("school_id", "school_id is required")
	}
	if !validator.IsValidTimeOfDay(r.DefaultStartTime) {
		errs.Add("default_start_time", "default_start_time must be in HH:MM format")
	}
	if !validator.IsValidTimeOfDay(r.DefaultEndTime) {
		errs.Add("default_end_time", "default_end_time must be in HH:MM format")
	}
	if validator.IsValidTimeOfDay(r.DefaultStartTime) && validator.IsValidTimeOfDay(r.DefaultEndTime) &&
		r.DefaultEndTime <= r.DefaultStartTime {
		errs.Add("default_end_time", "default_end_time must be after default_start_time")
	}
	if r.CheckInWindowHours <= 0 {
		errs.Add("check_in_window_hours", "check_in_window_hours must be greater than 0")
	}
	if r.CheckOutGraceHours < 0 {
		errs.Add("check_out_grace_hours", "check_out_grace_hours must not be negative")
	}
	if r.MinWorkingHours < 0 {
		errs.Add("min_working_hours", "min_working_hours must not be negative")
	}
	if r.GracePeriodMinutes < 0 {
		errs.Add("grace_period_minutes", "grace_period_minutes must not be negative")
	}
	if r.HalfDayHours <= 0 {
		errs.Add("half_day_hours", "half_day_hours must be greater than 0")
	}
	if r.FullDayHours < r.HalfDayHours {
		errs.Add("full_day_hours", "full_day_hours must not be less than half_day_hours")
	}

	if r.EnableGeoFencing {
		if r.SchoolLatitude == nil || r.SchoolLongitude == nil {
			errs.Add("school_location", "school_latitude and school_longitude are required when geofencing is enabled")
		}
		if r.AllowedRadiusMeters <= 0 {
			errs.Add("allowed_radius_meters", "allowed_radius_meters must be greater than 0 when geofencing is enabled")
		}
	}
	if r.SchoolLatitude != nil && !validator.IsValidLatitude(*r.SchoolLatitude) {
		errs.Add("school_latitude", "school_latitude must be between -90 and 90")
	}
	if r.SchoolLongitude != nil && !validator.IsValidLongitude(*r.SchoolLongitude) {
		errs.Add("school_longitude", "school_longitude must be between -180 and 180")
	}

	return errs.Err()
}

type ConfigResponse struct {
	SchoolID            string   `json:"school_id"`
	DefaultStartTime    string   `json:"default_start_time"`
	DefaultEndTime      string   `json:"default_end_time"`
	CheckInWindowHours  float64  `json:"check_in_window_hours"`
	CheckOutGraceHours  float64  `json:"check_out_grace_hours"`
	MinWorkingHours     float64  `json:"min_working_hours"`
	GracePeriodMinutes  int      `json:"grace_period_minutes"`
	HalfDayHours        float64  `json:"half_day_hours"`
	FullDayHours        float64  `json:"full_day_hours"`
	EnableGeoFencing    bool     `json:"enable_geo_fencing"`
	SchoolLatitude      *float64 `json:"school_latitude,omitempty"`
	SchoolLongitude     *float64 `json:"school_longitude,omitempty"`
	AllowedRadiusMeters float64  `json:"allowed_radius_meters"`
}
