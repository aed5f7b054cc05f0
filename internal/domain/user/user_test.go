package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimsFromMap(t *testing.T) {
	claims, err := ClaimsFromMap(map[string]interface{}{
		"user_id":   "u-1",
		"school_id": "s-1",
		"role":      "ADMIN",
	})
	require.NoError(t, err)
	assert.Equal(t, Claims{UserID: "u-1", SchoolID: "s-1", Role: RoleAdmin}, claims)
	assert.True(t, claims.IsAdmin())

	_, err = ClaimsFromMap(map[string]interface{}{"school_id": "s-1"})
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ClaimsFromMap(map[string]interface{}{"user_id": "u-1"})
	assert.ErrorIs(t, err, ErrSchoolIDRequired)
}

func TestHasPermission(t *testing.T) {
	assert.True(t, HasPermission(RoleAdmin, PermissionAttendanceConfigure))
	assert.True(t, HasPermission(RoleTeacher, PermissionReportsView))
	assert.False(t, HasPermission(RoleTeacher, PermissionAttendanceConfigure))
	assert.False(t, HasPermission(RoleStudent, PermissionReportsView))
	assert.True(t, HasPermission(RoleStudent, PermissionAttendanceMark))
	assert.False(t, HasPermission(Role("GUEST"), PermissionAttendanceMark))
}
