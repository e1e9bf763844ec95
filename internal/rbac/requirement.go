package rbac

import (
	"fmt"
	"strings"
)

// RequirementKind selects how a Requirement is evaluated.
type RequirementKind int

const (
	KindRole RequirementKind = iota + 1
	KindAnyRole
	KindPermission
	KindAnyPermission
)

func (k RequirementKind) String() string {
	switch k {
	case KindRole:
		return "role"
	case KindAnyRole:
		return "any_role"
	case KindPermission:
		return "permission"
	case KindAnyPermission:
		return "any_permission"
	default:
		return "unknown"
	}
}

// Requirement is the capability a protected operation demands. Any-of
// requirements are satisfied by a single match.
type Requirement struct {
	Kind        RequirementKind
	Roles       []RoleName
	Permissions []PermissionName
}

// RequireRole demands a single role.
func RequireRole(name RoleName) Requirement {
	return Requirement{Kind: KindRole, Roles: []RoleName{name}}
}

// RequireAnyRole demands at least one of the roles.
func RequireAnyRole(names ...RoleName) Requirement {
	return Requirement{Kind: KindAnyRole, Roles: dedupe(names)}
}

// RequirePermission demands a single permission.
func RequirePermission(name PermissionName) Requirement {
	return Requirement{Kind: KindPermission, Permissions: []PermissionName{name}}
}

// RequireAnyPermission demands at least one of the permissions.
func RequireAnyPermission(names ...PermissionName) Requirement {
	return Requirement{Kind: KindAnyPermission, Permissions: dedupe(names)}
}

// IsRoleCheck reports whether the requirement is evaluated against roles.
func (r Requirement) IsRoleCheck() bool {
	return r.Kind == KindRole || r.Kind == KindAnyRole
}

// Names returns the required names in declaration order.
func (r Requirement) Names() []string {
	if r.IsRoleCheck() {
		out := make([]string, len(r.Roles))
		for i, n := range r.Roles {
			out[i] = string(n)
		}
		return out
	}
	out := make([]string, len(r.Permissions))
	for i, n := range r.Permissions {
		out[i] = string(n)
	}
	return out
}

func (r Requirement) String() string {
	return r.Kind.String() + ":" + strings.Join(r.Names(), ",")
}

// Validate rejects empty requirements and names outside the catalog.
func (r Requirement) Validate() error {
	switch r.Kind {
	case KindRole, KindAnyRole:
		if len(r.Roles) == 0 || (r.Kind == KindRole && len(r.Roles) != 1) {
			return fmt.Errorf("%w: %s", ErrInvalidRequirement, r)
		}
		for _, name := range r.Roles {
			if !name.Valid() {
				return fmt.Errorf("%w: unknown role %q", ErrInvalidRequirement, name)
			}
		}
	case KindPermission, KindAnyPermission:
		if len(r.Permissions) == 0 || (r.Kind == KindPermission && len(r.Permissions) != 1) {
			return fmt.Errorf("%w: %s", ErrInvalidRequirement, r)
		}
		for _, name := range r.Permissions {
			if !name.Valid() {
				return fmt.Errorf("%w: unknown permission %q", ErrInvalidRequirement, name)
			}
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidRequirement, r.Kind)
	}
	return nil
}

func dedupe[T comparable](values []T) []T {
	seen := make(map[T]struct{}, len(values))
	out := make([]T, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
