package leave

import (
	"context"
	"time"
)

// LeaveRequestRepository reads leave_requests joined with the requester.
type LeaveRequestRepository interface {
	// ListOverlapping returns the school's requests that overlap [from, to], newest first.
	ListOverlapping(ctx context.Context, schoolID string, from, to time.Time) ([]LeaveRequest, error)
}
