package leave

import (
	"time"
)

type RequestStatus string

const (
	StatusPending  RequestStatus = "PENDING"
	StatusApproved RequestStatus = "APPROVED"
	StatusRejected RequestStatus = "REJECTED"
)

// LeaveRequest is read-only to the attendance engine. Its approval workflow lives elsewhere.
type LeaveRequest struct {
	ID        string
	UserID    string
	SchoolID  string
	LeaveType string
	Status    RequestStatus
	StartDate time.Time
	EndDate   time.Time
	TotalDays float64
	Reason    *string
	CreatedAt time.Time

	// Requester
	RequesterName string
	RequesterRole string
}

// Overlaps reports whether the request covers any day of [from, to].
func (r LeaveRequest) Overlaps(from, to time.Time) bool {
	return !r.StartDate.After(to) && !r.EndDate.Before(from)
}
