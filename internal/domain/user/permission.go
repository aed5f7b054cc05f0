package user

type Permission string

const (
	// Own attendance
	PermissionAttendanceMark    Permission = "attendance.mark"
	PermissionAttendanceViewOwn Permission = "attendance.view_own"

	// School-wide attendance
	PermissionAttendanceViewAll   Permission = "attendance.view_all"
	PermissionAttendanceConfigure Permission = "attendance.configure"

	// Reports
	PermissionReportsView Permission = "reports.view"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermissionAttendanceMark,
		PermissionAttendanceViewOwn,
		PermissionAttendanceViewAll,
		PermissionAttendanceConfigure,
		PermissionReportsView,
	},
	RoleTeacher: {
		PermissionAttendanceMark,
		PermissionAttendanceViewOwn,
		PermissionAttendanceViewAll,
		PermissionReportsView,
	},
	RoleStaff: {
		PermissionAttendanceMark,
		PermissionAttendanceViewOwn,
	},
	RoleStudent: {
		PermissionAttendanceMark,
		PermissionAttendanceViewOwn,
	},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}

	return false
}
