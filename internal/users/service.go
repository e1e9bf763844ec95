package users

import (
	"context"

	"github.com/campusrec/campusrec/internal/rbac"
)

// RepositoryPort defines the RBAC operations user management relies on.
type RepositoryPort interface {
	PrincipalRoles(ctx context.Context, principalID string) ([]rbac.Role, error)
	PrincipalPermissions(ctx context.Context, principalID string) ([]rbac.Permission, error)
	AssignRole(ctx context.Context, actorID, principalID, roleName string) (rbac.RoleAssignment, error)
	RemoveRole(ctx context.Context, actorID, principalID, roleName string) error
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Roles returns the roles held by a principal.
func (s *Service) Roles(ctx context.Context, principalID string) ([]rbac.Role, error) {
	return s.repo.PrincipalRoles(ctx, principalID)
}

// Permissions returns the effective permissions of a principal.
func (s *Service) Permissions(ctx context.Context, principalID string) (Access, error) {
	perms, err := s.repo.PrincipalPermissions(ctx, principalID)
	if err != nil {
		return Access{}, err
	}
	return Access{PrincipalID: principalID, Permissions: rbac.PermissionNamesOf(perms)}, nil
}

// Me returns roles and effective permissions of the caller.
func (s *Service) Me(ctx context.Context, principalID string) (Access, error) {
	roles, err := s.repo.PrincipalRoles(ctx, principalID)
	if err != nil {
		return Access{}, err
	}
	access, err := s.Permissions(ctx, principalID)
	if err != nil {
		return Access{}, err
	}
	access.Roles = rbac.RoleNamesOf(roles)
	return access, nil
}

// Assign gives a role to a principal.
func (s *Service) Assign(ctx context.Context, actorID, principalID string, req AssignRequest) (rbac.RoleAssignment, error) {
	return s.repo.AssignRole(ctx, actorID, principalID, req.Role)
}

// Remove takes a role from a principal.
func (s *Service) Remove(ctx context.Context, actorID, principalID, roleName string) error {
	return s.repo.RemoveRole(ctx, actorID, principalID, roleName)
}
