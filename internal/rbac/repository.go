package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusrec/campusrec/internal/platform/db"
)

const pgUniqueViolation = "23505"

// PGRepository implements Store on PostgreSQL. Composite primary keys on
// user_roles and role_permissions enforce assignment and grant uniqueness.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ListRoles returns all roles ordered by name.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, created_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return collectRoles(rows)
}

// GetRoleByName fetches a role by name.
func (r *PGRepository) GetRoleByName(ctx context.Context, name RoleName) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT id, name, description, created_at FROM roles WHERE name = $1`, string(name)).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("%w: role %s", ErrNotFound, name)
		}
		return Role{}, err
	}
	return role, nil
}

// ListRolesFor returns the roles held by a principal ordered by name.
func (r *PGRepository) ListRolesFor(ctx context.Context, principalID string) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT r.id, r.name, r.description, r.created_at
FROM user_roles ur
JOIN roles r ON r.id = ur.role_id
WHERE ur.principal_id = $1
ORDER BY r.name`, principalID)
	if err != nil {
		return nil, err
	}
	return collectRoles(rows)
}

// AssignRole inserts the assignment in a single statement so the role lookup
// and the uniqueness check cannot interleave with a concurrent removal.
func (r *PGRepository) AssignRole(ctx context.Context, principalID string, name RoleName) (RoleAssignment, error) {
	var assignment RoleAssignment
	err := r.pool.QueryRow(ctx, `INSERT INTO user_roles (principal_id, role_id, assigned_at)
SELECT $1, id, NOW() FROM roles WHERE name = $2
RETURNING principal_id, role_id, assigned_at`, principalID, string(name)).
		Scan(&assignment.PrincipalID, &assignment.RoleID, &assignment.AssignedAt)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return RoleAssignment{}, fmt.Errorf("%w: role %s", ErrNotFound, name)
		case isUniqueViolation(err):
			return RoleAssignment{}, fmt.Errorf("%w: principal %s, role %s", ErrAlreadyAssigned, principalID, name)
		}
		return RoleAssignment{}, err
	}
	return assignment, nil
}

// RemoveRole deletes the assignment; absence of the assignment is not an error.
func (r *PGRepository) RemoveRole(ctx context.Context, principalID string, name RoleName) error {
	role, err := r.GetRoleByName(ctx, name)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `DELETE FROM user_roles WHERE principal_id = $1 AND role_id = $2`, principalID, role.ID)
	return err
}

// HasRole reports whether the principal holds the role.
func (r *PGRepository) HasRole(ctx context.Context, principalID string, name RoleName) (bool, error) {
	return r.HasAnyRole(ctx, principalID, []RoleName{name})
}

// HasAnyRole reports whether the principal holds at least one of the roles.
func (r *PGRepository) HasAnyRole(ctx context.Context, principalID string, names []RoleName) (bool, error) {
	if len(names) == 0 {
		return false, nil
	}
	var held bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
	SELECT 1 FROM user_roles ur
	JOIN roles r ON r.id = ur.role_id
	WHERE ur.principal_id = $1 AND r.name = ANY($2)
)`, principalID, roleStrings(names)).Scan(&held)
	return held, err
}

// ListPermissions returns the permission catalog ordered by name.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

// GetPermissionByName fetches a permission by name.
func (r *PGRepository) GetPermissionByName(ctx context.Context, name PermissionName) (Permission, error) {
	var perm Permission
	err := r.pool.QueryRow(ctx, `SELECT id, name, description FROM permissions WHERE name = $1`, string(name)).
		Scan(&perm.ID, &perm.Name, &perm.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, fmt.Errorf("%w: permission %s", ErrNotFound, name)
		}
		return Permission{}, err
	}
	return perm, nil
}

// ListPermissionsFor returns the permissions granted to a role.
func (r *PGRepository) ListPermissionsFor(ctx context.Context, roleID int64) ([]Permission, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, roleID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: role id %d", ErrNotFound, roleID)
	}
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.name, p.description
FROM role_permissions rp
JOIN permissions p ON p.id = rp.permission_id
WHERE rp.role_id = $1
ORDER BY p.name`, roleID)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

// GrantPermission inserts the grant; duplicates surface as ErrAlreadyGranted.
func (r *PGRepository) GrantPermission(ctx context.Context, roleID int64, name PermissionName) (RolePermissionGrant, error) {
	perm, err := r.GetPermissionByName(ctx, name)
	if err != nil {
		return RolePermissionGrant{}, err
	}
	var grant RolePermissionGrant
	err = r.pool.QueryRow(ctx, `INSERT INTO role_permissions (role_id, permission_id, granted_at)
SELECT id, $2, NOW() FROM roles WHERE id = $1
RETURNING role_id, permission_id, granted_at`, roleID, perm.ID).
		Scan(&grant.RoleID, &grant.PermissionID, &grant.GrantedAt)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return RolePermissionGrant{}, fmt.Errorf("%w: role id %d", ErrNotFound, roleID)
		case isUniqueViolation(err):
			return RolePermissionGrant{}, fmt.Errorf("%w: role id %d, permission %s", ErrAlreadyGranted, roleID, name)
		}
		return RolePermissionGrant{}, err
	}
	return grant, nil
}

// RevokePermission deletes the grant; absence of the grant is not an error.
func (r *PGRepository) RevokePermission(ctx context.Context, roleID int64, name PermissionName) error {
	perm, err := r.GetPermissionByName(ctx, name)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, perm.ID)
	return err
}

// RoleHasPermission reports whether the role holds the permission.
func (r *PGRepository) RoleHasPermission(ctx context.Context, roleID int64, name PermissionName) (bool, error) {
	var held bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
	SELECT 1 FROM role_permissions rp
	JOIN permissions p ON p.id = rp.permission_id
	WHERE rp.role_id = $1 AND p.name = $2
)`, roleID, string(name)).Scan(&held)
	return held, err
}

// EffectivePermissions resolves principal -> roles -> grants in one statement.
func (r *PGRepository) EffectivePermissions(ctx context.Context, principalID string) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT p.id, p.name, p.description
FROM user_roles ur
JOIN role_permissions rp ON rp.role_id = ur.role_id
JOIN permissions p ON p.id = rp.permission_id
WHERE ur.principal_id = $1
ORDER BY p.name`, principalID)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

// HasPermission reports whether any held role grants the permission.
func (r *PGRepository) HasPermission(ctx context.Context, principalID string, name PermissionName) (bool, error) {
	return r.HasAnyPermission(ctx, principalID, []PermissionName{name})
}

// HasAnyPermission reports whether any held role grants one of the permissions.
func (r *PGRepository) HasAnyPermission(ctx context.Context, principalID string, names []PermissionName) (bool, error) {
	if len(names) == 0 {
		return false, nil
	}
	var held bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
	SELECT 1 FROM user_roles ur
	JOIN role_permissions rp ON rp.role_id = ur.role_id
	JOIN permissions p ON p.id = rp.permission_id
	WHERE ur.principal_id = $1 AND p.name = ANY($2)
)`, principalID, permissionStrings(names)).Scan(&held)
	return held, err
}

// EnsureCatalog upserts catalog rows and default grants in one transaction.
func (r *PGRepository) EnsureCatalog(ctx context.Context) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, name := range RoleNames() {
			if _, err := tx.Exec(ctx, `INSERT INTO roles (name, description, created_at) VALUES ($1, $2, NOW())
ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description`, string(name), name.Description()); err != nil {
				return fmt.Errorf("rbac: ensure role %s: %w", name, err)
			}
		}
		for _, name := range PermissionNames() {
			if _, err := tx.Exec(ctx, `INSERT INTO permissions (name, description) VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description`, string(name), name.Description()); err != nil {
				return fmt.Errorf("rbac: ensure permission %s: %w", name, err)
			}
		}
		for _, name := range RoleNames() {
			if _, err := tx.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id, granted_at)
SELECT r.id, p.id, NOW()
FROM roles r, permissions p
WHERE r.name = $1 AND p.name = ANY($2)
  AND NOT EXISTS (SELECT 1 FROM role_permissions x WHERE x.role_id = r.id)
ON CONFLICT DO NOTHING`, string(name), permissionStrings(DefaultGrants(name))); err != nil {
				return fmt.Errorf("rbac: default grants for %s: %w", name, err)
			}
		}
		return nil
	})
}

func collectRoles(rows pgx.Rows) ([]Role, error) {
	defer rows.Close()
	roles := make([]Role, 0)
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

func collectPermissions(rows pgx.Rows) ([]Permission, error) {
	defer rows.Close()
	perms := make([]Permission, 0)
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.ID, &perm.Name, &perm.Description); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func roleStrings(names []RoleName) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}

func permissionStrings(names []PermissionName) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}

var _ Store = (*PGRepository)(nil)
