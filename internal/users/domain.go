package users

import "github.com/campusrec/campusrec/internal/rbac"

// AssignRequest is the body of POST /api/users/{principalID}/roles.
type AssignRequest struct {
	Role string `json:"role" validate:"required,max=32"`
}

// Access is the authorization view of one principal.
type Access struct {
	PrincipalID string                `json:"principal_id"`
	Roles       []rbac.RoleName       `json:"roles,omitempty"`
	Permissions []rbac.PermissionName `json:"permissions"`
}
