package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/database"
)

type leaveRequestRepositoryImpl struct {
	db *database.DB
}

func NewLeaveRequestRepository(db *database.DB) leave.LeaveRequestRepository {
	return &leaveRequestRepositoryImpl{db: db}
}

// ListOverlapping implements leave.LeaveRequestRepository.
func (r *leaveRequestRepositoryImpl) ListOverlapping(ctx context.Context, schoolID string, from, to time.Time) ([]leave.LeaveRequest, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT
			lr.id, lr.user_id, lr.school_id, lr.leave_type, lr.status,
			lr.start_date, lr.end_date, lr.total_days::float8, lr.reason, lr.created_at,
			u.name, u.role
		FROM leave_requests lr
		INNER JOIN users u ON lr.user_id = u.id
		WHERE lr.school_id = $1
		  AND lr.start_date <= $3
		  AND lr.end_date >= $2
		ORDER BY lr.created_at DESC
	`

	rows, err := q.Query(ctx, query, schoolID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list leave requests: %w", err)
	}
	defer rows.Close()

	var requests []leave.LeaveRequest
	for rows.Next() {
		var lr leave.LeaveRequest
		err := rows.Scan(
			&lr.ID, &lr.UserID, &lr.SchoolID, &lr.LeaveType, &lr.Status,
			&lr.StartDate, &lr.EndDate, &lr.TotalDays, &lr.Reason, &lr.CreatedAt,
			&lr.RequesterName, &lr.RequesterRole,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leave request: %w", err)
		}
		requests = append(requests, lr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leave requests: %w", err)
	}
	return requests, nil
}
