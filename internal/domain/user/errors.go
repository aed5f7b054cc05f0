package user

import "errors"

var (
	ErrInvalidToken            = errors.New("invalid or expired token")
	ErrSchoolIDRequired        = errors.New("school ID is required")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
)
