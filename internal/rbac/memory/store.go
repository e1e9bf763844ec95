// Package memory provides an in-process implementation of rbac.Store.
// It backs tests and local development wiring (STORE_DRIVER=memory).
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/campusrec/campusrec/internal/rbac"
)

type assignmentKey struct {
	principalID string
	roleID      int64
}

type grantKey struct {
	roleID       int64
	permissionID int64
}

// Store keeps catalog rows and relation records in maps guarded by a single
// RWMutex, so every read observes whole assignments and grants.
type Store struct {
	mu sync.RWMutex

	roles       map[rbac.RoleName]rbac.Role
	permissions map[rbac.PermissionName]rbac.Permission
	roleByID    map[int64]rbac.RoleName
	permByID    map[int64]rbac.PermissionName

	assignments map[assignmentKey]rbac.RoleAssignment
	grants      map[grantKey]rbac.RolePermissionGrant

	nextID int64
	now    func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore builds a store holding the role and permission catalog with no
// assignments and no grants.
func NewStore(opts ...Option) *Store {
	s := &Store{
		roles:       make(map[rbac.RoleName]rbac.Role),
		permissions: make(map[rbac.PermissionName]rbac.Permission),
		roleByID:    make(map[int64]rbac.RoleName),
		permByID:    make(map[int64]rbac.PermissionName),
		assignments: make(map[assignmentKey]rbac.RoleAssignment),
		grants:      make(map[grantKey]rbac.RolePermissionGrant),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.loadCatalog()
	return s
}

func (s *Store) loadCatalog() {
	for _, name := range rbac.RoleNames() {
		if _, ok := s.roles[name]; ok {
			continue
		}
		s.nextID++
		s.roles[name] = rbac.Role{ID: s.nextID, Name: name, Description: name.Description(), CreatedAt: s.now()}
		s.roleByID[s.nextID] = name
	}
	for _, name := range rbac.PermissionNames() {
		if _, ok := s.permissions[name]; ok {
			continue
		}
		s.nextID++
		s.permissions[name] = rbac.Permission{ID: s.nextID, Name: name, Description: name.Description()}
		s.permByID[s.nextID] = name
	}
}

// EnsureCatalog restores missing catalog rows and hands DefaultGrants to
// roles that hold no grants.
func (s *Store) EnsureCatalog(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadCatalog()
	for _, name := range rbac.RoleNames() {
		role := s.roles[name]
		if s.grantCountLocked(role.ID) > 0 {
			continue
		}
		for _, permName := range rbac.DefaultGrants(name) {
			perm := s.permissions[permName]
			s.grants[grantKey{roleID: role.ID, permissionID: perm.ID}] = rbac.RolePermissionGrant{
				RoleID:       role.ID,
				PermissionID: perm.ID,
				GrantedAt:    s.now(),
			}
		}
	}
	return nil
}

func (s *Store) grantCountLocked(roleID int64) int {
	n := 0
	for key := range s.grants {
		if key.roleID == roleID {
			n++
		}
	}
	return n
}

// ListRoles returns all roles ordered by name.
func (s *Store) ListRoles(_ context.Context) ([]rbac.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roles := make([]rbac.Role, 0, len(s.roles))
	for _, role := range s.roles {
		roles = append(roles, role)
	}
	sortRoles(roles)
	return roles, nil
}

// GetRoleByName fetches a role by its catalog name.
func (s *Store) GetRoleByName(_ context.Context, name rbac.RoleName) (rbac.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, ok := s.roles[name]
	if !ok {
		return rbac.Role{}, fmt.Errorf("%w: role %s", rbac.ErrNotFound, name)
	}
	return role, nil
}

// ListRolesFor returns the roles held by a principal ordered by name.
func (s *Store) ListRolesFor(_ context.Context, principalID string) ([]rbac.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.rolesForLocked(principalID), nil
}

func (s *Store) rolesForLocked(principalID string) []rbac.Role {
	roles := make([]rbac.Role, 0)
	for key := range s.assignments {
		if key.principalID != principalID {
			continue
		}
		if name, ok := s.roleByID[key.roleID]; ok {
			roles = append(roles, s.roles[name])
		}
	}
	sortRoles(roles)
	return roles
}

// AssignRole records a principal-role assignment.
func (s *Store) AssignRole(_ context.Context, principalID string, name rbac.RoleName) (rbac.RoleAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, ok := s.roles[name]
	if !ok {
		return rbac.RoleAssignment{}, fmt.Errorf("%w: role %s", rbac.ErrNotFound, name)
	}
	key := assignmentKey{principalID: principalID, roleID: role.ID}
	if _, exists := s.assignments[key]; exists {
		return rbac.RoleAssignment{}, fmt.Errorf("%w: principal %s, role %s", rbac.ErrAlreadyAssigned, principalID, name)
	}
	assignment := rbac.RoleAssignment{PrincipalID: principalID, RoleID: role.ID, AssignedAt: s.now()}
	s.assignments[key] = assignment
	return assignment, nil
}

// RemoveRole deletes a principal-role assignment if present.
func (s *Store) RemoveRole(_ context.Context, principalID string, name rbac.RoleName) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, ok := s.roles[name]
	if !ok {
		return fmt.Errorf("%w: role %s", rbac.ErrNotFound, name)
	}
	delete(s.assignments, assignmentKey{principalID: principalID, roleID: role.ID})
	return nil
}

// HasRole reports whether the principal holds the role.
func (s *Store) HasRole(ctx context.Context, principalID string, name rbac.RoleName) (bool, error) {
	return s.HasAnyRole(ctx, principalID, []rbac.RoleName{name})
}

// HasAnyRole reports whether the principal holds at least one of the roles.
func (s *Store) HasAnyRole(_ context.Context, principalID string, names []rbac.RoleName) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, name := range names {
		role, ok := s.roles[name]
		if !ok {
			continue
		}
		if _, held := s.assignments[assignmentKey{principalID: principalID, roleID: role.ID}]; held {
			return true, nil
		}
	}
	return false, nil
}

// ListPermissions returns the permission catalog ordered by name.
func (s *Store) ListPermissions(_ context.Context) ([]rbac.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	perms := make([]rbac.Permission, 0, len(s.permissions))
	for _, perm := range s.permissions {
		perms = append(perms, perm)
	}
	sortPermissions(perms)
	return perms, nil
}

// GetPermissionByName fetches a permission by its catalog name.
func (s *Store) GetPermissionByName(_ context.Context, name rbac.PermissionName) (rbac.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	perm, ok := s.permissions[name]
	if !ok {
		return rbac.Permission{}, fmt.Errorf("%w: permission %s", rbac.ErrNotFound, name)
	}
	return perm, nil
}

// ListPermissionsFor returns the permissions granted to a role.
func (s *Store) ListPermissionsFor(_ context.Context, roleID int64) ([]rbac.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.roleByID[roleID]; !ok {
		return nil, fmt.Errorf("%w: role id %d", rbac.ErrNotFound, roleID)
	}
	perms := make([]rbac.Permission, 0)
	for key := range s.grants {
		if key.roleID != roleID {
			continue
		}
		perms = append(perms, s.permissions[s.permByID[key.permissionID]])
	}
	sortPermissions(perms)
	return perms, nil
}

// GrantPermission records a role-permission grant.
func (s *Store) GrantPermission(_ context.Context, roleID int64, name rbac.PermissionName) (rbac.RolePermissionGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	perm, ok := s.permissions[name]
	if !ok {
		return rbac.RolePermissionGrant{}, fmt.Errorf("%w: permission %s", rbac.ErrNotFound, name)
	}
	roleName, ok := s.roleByID[roleID]
	if !ok {
		return rbac.RolePermissionGrant{}, fmt.Errorf("%w: role id %d", rbac.ErrNotFound, roleID)
	}
	key := grantKey{roleID: roleID, permissionID: perm.ID}
	if _, exists := s.grants[key]; exists {
		return rbac.RolePermissionGrant{}, fmt.Errorf("%w: role %s, permission %s", rbac.ErrAlreadyGranted, roleName, name)
	}
	grant := rbac.RolePermissionGrant{RoleID: roleID, PermissionID: perm.ID, GrantedAt: s.now()}
	s.grants[key] = grant
	return grant, nil
}

// RevokePermission deletes a role-permission grant if present.
func (s *Store) RevokePermission(_ context.Context, roleID int64, name rbac.PermissionName) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	perm, ok := s.permissions[name]
	if !ok {
		return fmt.Errorf("%w: permission %s", rbac.ErrNotFound, name)
	}
	delete(s.grants, grantKey{roleID: roleID, permissionID: perm.ID})
	return nil
}

// RoleHasPermission reports whether the role holds the permission.
func (s *Store) RoleHasPermission(_ context.Context, roleID int64, name rbac.PermissionName) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	perm, ok := s.permissions[name]
	if !ok {
		return false, nil
	}
	_, held := s.grants[grantKey{roleID: roleID, permissionID: perm.ID}]
	return held, nil
}

// EffectivePermissions joins principal roles with their grants.
func (s *Store) EffectivePermissions(_ context.Context, principalID string) ([]rbac.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.effectiveLocked(principalID), nil
}

func (s *Store) effectiveLocked(principalID string) []rbac.Permission {
	held := make(map[int64]struct{})
	for key := range s.assignments {
		if key.principalID == principalID {
			held[key.roleID] = struct{}{}
		}
	}
	seen := make(map[int64]struct{})
	perms := make([]rbac.Permission, 0)
	for key := range s.grants {
		if _, ok := held[key.roleID]; !ok {
			continue
		}
		if _, dup := seen[key.permissionID]; dup {
			continue
		}
		seen[key.permissionID] = struct{}{}
		perms = append(perms, s.permissions[s.permByID[key.permissionID]])
	}
	sortPermissions(perms)
	return perms
}

// HasPermission reports whether any held role grants the permission.
func (s *Store) HasPermission(ctx context.Context, principalID string, name rbac.PermissionName) (bool, error) {
	return s.HasAnyPermission(ctx, principalID, []rbac.PermissionName{name})
}

// HasAnyPermission reports whether any held role grants one of the permissions.
func (s *Store) HasAnyPermission(_ context.Context, principalID string, names []rbac.PermissionName) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, perm := range s.effectiveLocked(principalID) {
		if slices.Contains(names, perm.Name) {
			return true, nil
		}
	}
	return false, nil
}

func sortRoles(roles []rbac.Role) {
	slices.SortFunc(roles, func(a, b rbac.Role) int {
		return cmp.Compare(a.Name, b.Name)
	})
}

func sortPermissions(perms []rbac.Permission) {
	slices.SortFunc(perms, func(a, b rbac.Permission) int {
		return cmp.Compare(a.Name, b.Name)
	})
}

var _ rbac.Store = (*Store)(nil)
