package attendance

import (
	"time"
)

type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusLate    Status = "LATE"
	StatusHalfDay Status = "HALF_DAY"
	StatusAbsent  Status = "ABSENT"
	StatusOnLeave Status = "ON_LEAVE"
)

// IsPresent reports whether the status counts as attended for streaks and stats.
func (s Status) IsPresent() bool {
	return s == StatusPresent || s == StatusLate
}

type Action string

const (
	ActionCheckIn  Action = "CHECK_IN"
	ActionCheckOut Action = "CHECK_OUT"
)

type ApprovalStatus string

const (
	ApprovalNotRequired ApprovalStatus = "NOT_REQUIRED"
	ApprovalPending     ApprovalStatus = "PENDING"
	ApprovalApproved    ApprovalStatus = "APPROVED"
)

// MarkedBySystem is the actor recorded by batch jobs.
const MarkedBySystem = "SYSTEM"

// Config holds the per-school attendance rules. Times are HH:MM in the regional zone.
type Config struct {
	SchoolID            string
	DefaultStartTime    string
	DefaultEndTime      string
	CheckInWindowHours  float64
	CheckOutGraceHours  float64
	MinWorkingHours     float64
	GracePeriodMinutes  int
	HalfDayHours        float64
	FullDayHours        float64
	EnableGeoFencing    bool
	SchoolLatitude      *float64
	SchoolLongitude     *float64
	AllowedRadiusMeters float64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// HasSchoolLocation reports whether both school coordinates are configured.
func (c Config) HasSchoolLocation() bool {
	return c.SchoolLatitude != nil && c.SchoolLongitude != nil
}

type GeoPoint struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Address   *string  `json:"address,omitempty"`
}

// Record is one user's attendance on one regional calendar day.
type Record struct {
	ID               string
	UserID           string
	SchoolID         string
	Date             time.Time
	Status           Status
	CheckInTime      *time.Time
	CheckOutTime     *time.Time
	CheckInLocation  *GeoPoint
	CheckOutLocation *GeoPoint
	IsLateCheckIn    bool
	LateByMinutes    *int
	WorkingHours     float64
	DeviceInfo       map[string]interface{}
	Remarks          *string
	MarkedBy         string
	RequiresApproval bool
	ApprovalStatus   ApprovalStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
