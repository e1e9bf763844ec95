package rbac

import "context"

// RoleStore persists role definitions and principal-role assignments.
type RoleStore interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRoleByName(ctx context.Context, name RoleName) (Role, error)
	ListRolesFor(ctx context.Context, principalID string) ([]Role, error)
	// AssignRole fails with ErrAlreadyAssigned when the pair exists.
	AssignRole(ctx context.Context, principalID string, name RoleName) (RoleAssignment, error)
	// RemoveRole succeeds when no assignment exists.
	RemoveRole(ctx context.Context, principalID string, name RoleName) error
	HasRole(ctx context.Context, principalID string, name RoleName) (bool, error)
	HasAnyRole(ctx context.Context, principalID string, names []RoleName) (bool, error)
}

// PermissionStore persists permission definitions and role-permission grants.
type PermissionStore interface {
	ListPermissions(ctx context.Context) ([]Permission, error)
	GetPermissionByName(ctx context.Context, name PermissionName) (Permission, error)
	ListPermissionsFor(ctx context.Context, roleID int64) ([]Permission, error)
	// GrantPermission fails with ErrAlreadyGranted when the pair exists.
	GrantPermission(ctx context.Context, roleID int64, name PermissionName) (RolePermissionGrant, error)
	// RevokePermission succeeds when no grant exists.
	RevokePermission(ctx context.Context, roleID int64, name PermissionName) error
	RoleHasPermission(ctx context.Context, roleID int64, name PermissionName) (bool, error)
	EffectivePermissions(ctx context.Context, principalID string) ([]Permission, error)
	HasPermission(ctx context.Context, principalID string, name PermissionName) (bool, error)
	HasAnyPermission(ctx context.Context, principalID string, names []PermissionName) (bool, error)
}

// Store is the full persistence boundary of the authorization subsystem.
type Store interface {
	RoleStore
	PermissionStore
	// EnsureCatalog upserts the built-in roles and permissions. Roles that hold
	// no grants yet receive DefaultGrants.
	EnsureCatalog(ctx context.Context) error
}
