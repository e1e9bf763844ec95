package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/campusrec/campusrec/internal/platform/httpx"
	"github.com/campusrec/campusrec/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates administrative RBAC operations. Names arrive as raw
// strings from transport and leave as catalog types; failures are reported
// as httpx sentinels carrying a client-safe message.
type Service struct {
	store  Store
	audit  AuditPort
	logger *slog.Logger
}

// NewService constructs a Service over store. audit may be nil.
func NewService(store Store, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, audit: audit, logger: logger}
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	roles, err := s.store.ListRoles(ctx)
	if err != nil {
		return nil, s.internal(ctx, "list roles", err)
	}
	return roles, nil
}

// ListPermissions returns the permission catalog ordered by name.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	perms, err := s.store.ListPermissions(ctx)
	if err != nil {
		return nil, s.internal(ctx, "list permissions", err)
	}
	return perms, nil
}

// RolePermissions returns the permissions granted to the named role.
func (s *Service) RolePermissions(ctx context.Context, roleName string) ([]Permission, error) {
	role, err := s.role(ctx, roleName)
	if err != nil {
		return nil, err
	}
	perms, err := s.store.ListPermissionsFor(ctx, role.ID)
	if err != nil {
		return nil, s.internal(ctx, "list role permissions", err)
	}
	return perms, nil
}

// GrantPermission grants permName to roleName on behalf of actorID.
func (s *Service) GrantPermission(ctx context.Context, actorID, roleName, permName string) (RolePermissionGrant, error) {
	role, err := s.role(ctx, roleName)
	if err != nil {
		return RolePermissionGrant{}, err
	}
	perm, err := ParsePermissionName(permName)
	if err != nil {
		return RolePermissionGrant{}, validation(err)
	}
	grant, err := s.store.GrantPermission(ctx, role.ID, perm)
	switch {
	case errors.Is(err, ErrAlreadyGranted):
		return RolePermissionGrant{}, fmt.Errorf("%w: role %s already has permission %s", httpx.ErrDuplicate, role.Name, perm)
	case errors.Is(err, ErrNotFound):
		return RolePermissionGrant{}, fmt.Errorf("%w: permission %s", httpx.ErrNotFound, perm)
	case err != nil:
		return RolePermissionGrant{}, s.internal(ctx, "grant permission", err)
	}
	s.record(ctx, actorID, "rbac:grant_permission", "role", string(role.Name), map[string]any{"permission": string(perm)})
	return grant, nil
}

// RevokePermission removes permName from roleName. Revoking an absent grant succeeds.
func (s *Service) RevokePermission(ctx context.Context, actorID, roleName, permName string) error {
	role, err := s.role(ctx, roleName)
	if err != nil {
		return err
	}
	perm, err := ParsePermissionName(permName)
	if err != nil {
		return validation(err)
	}
	err = s.store.RevokePermission(ctx, role.ID, perm)
	switch {
	case errors.Is(err, ErrNotFound):
		return fmt.Errorf("%w: permission %s", httpx.ErrNotFound, perm)
	case err != nil:
		return s.internal(ctx, "revoke permission", err)
	}
	s.record(ctx, actorID, "rbac:revoke_permission", "role", string(role.Name), map[string]any{"permission": string(perm)})
	return nil
}

// PrincipalRoles returns the roles held by principalID.
func (s *Service) PrincipalRoles(ctx context.Context, principalID string) ([]Role, error) {
	if principalID == "" {
		return nil, fmt.Errorf("%w: principal id required", httpx.ErrValidation)
	}
	roles, err := s.store.ListRolesFor(ctx, principalID)
	if err != nil {
		return nil, s.internal(ctx, "list principal roles", err)
	}
	return roles, nil
}

// PrincipalPermissions returns the effective permissions of principalID.
func (s *Service) PrincipalPermissions(ctx context.Context, principalID string) ([]Permission, error) {
	if principalID == "" {
		return nil, fmt.Errorf("%w: principal id required", httpx.ErrValidation)
	}
	perms, err := s.store.EffectivePermissions(ctx, principalID)
	if err != nil {
		return nil, s.internal(ctx, "effective permissions", err)
	}
	return perms, nil
}

// AssignRole gives roleName to principalID on behalf of actorID.
func (s *Service) AssignRole(ctx context.Context, actorID, principalID, roleName string) (RoleAssignment, error) {
	if principalID == "" {
		return RoleAssignment{}, fmt.Errorf("%w: principal id required", httpx.ErrValidation)
	}
	name, err := ParseRoleName(roleName)
	if err != nil {
		return RoleAssignment{}, validation(err)
	}
	assignment, err := s.store.AssignRole(ctx, principalID, name)
	switch {
	case errors.Is(err, ErrAlreadyAssigned):
		return RoleAssignment{}, fmt.Errorf("%w: principal %s already has role %s", httpx.ErrDuplicate, principalID, name)
	case errors.Is(err, ErrNotFound):
		return RoleAssignment{}, fmt.Errorf("%w: role %s", httpx.ErrNotFound, name)
	case err != nil:
		return RoleAssignment{}, s.internal(ctx, "assign role", err)
	}
	s.record(ctx, actorID, "rbac:assign_role", "principal", principalID, map[string]any{"role": string(name)})
	return assignment, nil
}

// RemoveRole takes roleName from principalID. Removing an absent assignment succeeds.
func (s *Service) RemoveRole(ctx context.Context, actorID, principalID, roleName string) error {
	if principalID == "" {
		return fmt.Errorf("%w: principal id required", httpx.ErrValidation)
	}
	name, err := ParseRoleName(roleName)
	if err != nil {
		return validation(err)
	}
	err = s.store.RemoveRole(ctx, principalID, name)
	switch {
	case errors.Is(err, ErrNotFound):
		return fmt.Errorf("%w: role %s", httpx.ErrNotFound, name)
	case err != nil:
		return s.internal(ctx, "remove role", err)
	}
	s.record(ctx, actorID, "rbac:remove_role", "principal", principalID, map[string]any{"role": string(name)})
	return nil
}

func (s *Service) role(ctx context.Context, raw string) (Role, error) {
	name, err := ParseRoleName(raw)
	if err != nil {
		return Role{}, validation(err)
	}
	role, err := s.store.GetRoleByName(ctx, name)
	switch {
	case errors.Is(err, ErrNotFound):
		return Role{}, fmt.Errorf("%w: role %s", httpx.ErrNotFound, name)
	case err != nil:
		return Role{}, s.internal(ctx, "get role", err)
	}
	return role, nil
}

func (s *Service) record(ctx context.Context, actorID, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

// internal logs the store error and hides its text from callers.
func (s *Service) internal(ctx context.Context, op string, err error) error {
	s.logger.ErrorContext(ctx, "rbac "+op, slog.Any("error", err))
	return fmt.Errorf("rbac: %s: %w", op, err)
}

func validation(err error) error {
	return fmt.Errorf("%w: %w", httpx.ErrValidation, err)
}
