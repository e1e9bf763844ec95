package roles

// GrantRequest is the body of POST /api/roles/{role}/permissions.
type GrantRequest struct {
	Permission string `json:"permission" validate:"required,max=64"`
}

// RolePermissions is the response of GET /api/roles/{role}/permissions.
type RolePermissions struct {
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}
