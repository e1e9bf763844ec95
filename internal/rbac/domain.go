package rbac

import "time"

// Role represents a named bundle of permissions.
type Role struct {
	ID          int64     `json:"id"`
	Name        RoleName  `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Permission represents an atomic capability.
type Permission struct {
	ID          int64          `json:"id"`
	Name        PermissionName `json:"name"`
	Description string         `json:"description"`
}

// RoleAssignment links a principal to a role.
type RoleAssignment struct {
	PrincipalID string    `json:"principal_id"`
	RoleID      int64     `json:"role_id"`
	AssignedAt  time.Time `json:"assigned_at"`
}

// RolePermissionGrant ties a permission to a role.
type RolePermissionGrant struct {
	RoleID       int64     `json:"role_id"`
	PermissionID int64     `json:"permission_id"`
	GrantedAt    time.Time `json:"granted_at"`
}

// PermissionNamesOf projects permissions onto their names.
func PermissionNamesOf(perms []Permission) []PermissionName {
	names := make([]PermissionName, len(perms))
	for i, p := range perms {
		names[i] = p.Name
	}
	return names
}

// RoleNamesOf projects roles onto their names.
func RoleNamesOf(roles []Role) []RoleName {
	names := make([]RoleName, len(roles))
	for i, r := range roles {
		names[i] = r.Name
	}
	return names
}
