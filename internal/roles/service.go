package roles

import (
	"context"

	"github.com/campusrec/campusrec/internal/rbac"
)

// RepositoryPort defines the RBAC operations role management relies on.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]rbac.Role, error)
	RolePermissions(ctx context.Context, roleName string) ([]rbac.Permission, error)
	GrantPermission(ctx context.Context, actorID, roleName, permName string) (rbac.RolePermissionGrant, error)
	RevokePermission(ctx context.Context, actorID, roleName, permName string) error
}

// Service handles role business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	return s.repo.ListRoles(ctx)
}

// RolePermissions returns the permission names granted to a role.
func (s *Service) RolePermissions(ctx context.Context, roleName string) (RolePermissions, error) {
	perms, err := s.repo.RolePermissions(ctx, roleName)
	if err != nil {
		return RolePermissions{}, err
	}
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p.Name)
	}
	role, _ := rbac.ParseRoleName(roleName)
	return RolePermissions{Role: string(role), Permissions: names}, nil
}

// Grant adds a permission to a role.
func (s *Service) Grant(ctx context.Context, actorID, roleName string, req GrantRequest) (rbac.RolePermissionGrant, error) {
	return s.repo.GrantPermission(ctx, actorID, roleName, req.Permission)
}

// Revoke removes a permission from a role.
func (s *Service) Revoke(ctx context.Context, actorID, roleName, permName string) error {
	return s.repo.RevokePermission(ctx, actorID, roleName, permName)
}
