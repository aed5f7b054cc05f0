package user

type Role string

const (
	RoleAdmin   Role = "ADMIN"   // School administrator - full access
	RoleTeacher Role = "TEACHER" // Teaching staff, reads class reports
	RoleStaff   Role = "STAFF"   // Non-teaching staff
	RoleStudent Role = "STUDENT"
)

// Claims identifies the caller of a request. Values come from a verified access token.
type Claims struct {
	UserID   string
	SchoolID string
	Role     Role
}

// ClaimsFromMap reads claims decoded by jwtauth.
func ClaimsFromMap(m map[string]interface{}) (Claims, error) {
	userID, _ := m["user_id"].(string)
	schoolID, _ := m["school_id"].(string)
	role, _ := m["role"].(string)

	if userID == "" {
		return Claims{}, ErrInvalidToken
	}
	if schoolID == "" {
		return Claims{}, ErrSchoolIDRequired
	}
	return Claims{UserID: userID, SchoolID: schoolID, Role: Role(role)}, nil
}

// IsAdmin checks if user administers the school
func (c Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}
