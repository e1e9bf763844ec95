package rbac

import (
	"fmt"
	"slices"
	"strings"
)

// RoleName identifies one of the built-in roles.
type RoleName string

// Built-in roles.
const (
	RoleAdmin   RoleName = "admin"
	RoleTeacher RoleName = "teacher"
	RoleStudent RoleName = "student"
)

// DefaultRole is the role handed to newly created principals.
const DefaultRole = RoleStudent

// PermissionName identifies a capability from the fixed permission catalog.
type PermissionName string

// Permission catalog.
const (
	PermUserRead   PermissionName = "USER_READ"
	PermUserCreate PermissionName = "USER_CREATE"
	PermUserUpdate PermissionName = "USER_UPDATE"
	PermUserDelete PermissionName = "USER_DELETE"

	PermRoleRead         PermissionName = "ROLE_READ"
	PermRoleManage       PermissionName = "ROLE_MANAGE"
	PermPermissionRead   PermissionName = "PERMISSION_READ"
	PermPermissionManage PermissionName = "PERMISSION_MANAGE"

	PermCourseRead   PermissionName = "COURSE_READ"
	PermCourseCreate PermissionName = "COURSE_CREATE"
	PermCourseUpdate PermissionName = "COURSE_UPDATE"
	PermCourseDelete PermissionName = "COURSE_DELETE"

	PermStudentRead   PermissionName = "STUDENT_READ"
	PermStudentManage PermissionName = "STUDENT_MANAGE"
	PermTeacherRead   PermissionName = "TEACHER_READ"
	PermTeacherManage PermissionName = "TEACHER_MANAGE"

	PermEnrollmentRead   PermissionName = "ENROLLMENT_READ"
	PermEnrollmentManage PermissionName = "ENROLLMENT_MANAGE"

	PermGradeRead   PermissionName = "GRADE_READ"
	PermGradeManage PermissionName = "GRADE_MANAGE"

	PermAttendanceRead   PermissionName = "ATTENDANCE_READ"
	PermAttendanceManage PermissionName = "ATTENDANCE_MANAGE"
	PermAttendanceReport PermissionName = "ATTENDANCE_REPORT"

	PermReportRead PermissionName = "REPORT_READ"
)

var roleCatalog = map[RoleName]string{
	RoleAdmin:   "Full administrative access",
	RoleTeacher: "Manages courses, grades and attendance for assigned classes",
	RoleStudent: "Views own courses, grades and attendance",
}

var permissionCatalog = map[PermissionName]string{
	PermUserRead:         "View users",
	PermUserCreate:       "Create users",
	PermUserUpdate:       "Update users",
	PermUserDelete:       "Delete users",
	PermRoleRead:         "View roles and role assignments",
	PermRoleManage:       "Assign and remove roles",
	PermPermissionRead:   "View permissions",
	PermPermissionManage: "Grant and revoke permissions",
	PermCourseRead:       "View courses",
	PermCourseCreate:     "Create courses",
	PermCourseUpdate:     "Update courses",
	PermCourseDelete:     "Delete courses",
	PermStudentRead:      "View students",
	PermStudentManage:    "Manage students",
	PermTeacherRead:      "View teachers",
	PermTeacherManage:    "Manage teachers",
	PermEnrollmentRead:   "View enrollments",
	PermEnrollmentManage: "Manage enrollments",
	PermGradeRead:        "View grades",
	PermGradeManage:      "Record and update grades",
	PermAttendanceRead:   "View attendance",
	PermAttendanceManage: "Record attendance",
	PermAttendanceReport: "View attendance reports",
	PermReportRead:       "View reports",
}

// Valid reports whether the role belongs to the catalog.
func (r RoleName) Valid() bool {
	_, ok := roleCatalog[r]
	return ok
}

// Description returns the catalog description of the role.
func (r RoleName) Description() string { return roleCatalog[r] }

func (r RoleName) String() string { return string(r) }

// Valid reports whether the permission belongs to the catalog.
func (p PermissionName) Valid() bool {
	_, ok := permissionCatalog[p]
	return ok
}

// Description returns the catalog description of the permission.
func (p PermissionName) Description() string { return permissionCatalog[p] }

func (p PermissionName) String() string { return string(p) }

// ParseRoleName normalizes raw input into a catalog role.
func ParseRoleName(raw string) (RoleName, error) {
	name := RoleName(strings.ToLower(strings.TrimSpace(raw)))
	if !name.Valid() {
		return "", fmt.Errorf("%w: role %q", ErrInvalidName, raw)
	}
	return name, nil
}

// ParsePermissionName normalizes raw input into a catalog permission.
func ParsePermissionName(raw string) (PermissionName, error) {
	name := PermissionName(strings.ToUpper(strings.TrimSpace(raw)))
	if !name.Valid() {
		return "", fmt.Errorf("%w: permission %q", ErrInvalidName, raw)
	}
	return name, nil
}

// RoleNames lists the catalog roles ordered by name.
func RoleNames() []RoleName {
	return []RoleName{RoleAdmin, RoleStudent, RoleTeacher}
}

// PermissionNames lists the catalog permissions ordered by name.
func PermissionNames() []PermissionName {
	names := make([]PermissionName, 0, len(permissionCatalog))
	for name := range permissionCatalog {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultGrants returns the permissions a built-in role receives at bootstrap.
func DefaultGrants(role RoleName) []PermissionName {
	switch role {
	case RoleAdmin:
		return PermissionNames()
	case RoleTeacher:
		return []PermissionName{
			PermCourseRead, PermCourseCreate, PermCourseUpdate,
			PermStudentRead, PermStudentManage,
			PermEnrollmentRead, PermEnrollmentManage,
			PermGradeRead, PermGradeManage,
			PermAttendanceRead, PermAttendanceManage, PermAttendanceReport,
		}
	case RoleStudent:
		return []PermissionName{PermCourseRead, PermEnrollmentRead, PermGradeRead, PermAttendanceRead}
	default:
		return nil
	}
}
