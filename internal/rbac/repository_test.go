package rbac_test

import (
	"context"
	"errors"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusrec/campusrec/internal/rbac"
)

// newPGRepository applies schema.sql to a throwaway schema of the database
// named by PG_DSN. Tests skip when PG_DSN is unset.
func newPGRepository(t *testing.T) *rbac.PGRepository {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set; skipping postgres repository tests")
	}
	ctx := context.Background()

	admin, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	schema := "campusrec_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)

	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Close()
		if _, err := admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE"); err != nil {
			t.Logf("drop schema %s: %v", schema, err)
		}
		admin.Close()
	})

	ddl, err := os.ReadFile("schema.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(ddl))
	require.NoError(t, err)

	repo := rbac.NewRepository(pool)
	require.NoError(t, repo.EnsureCatalog(ctx))
	return repo
}

func roleID(t *testing.T, repo *rbac.PGRepository, name rbac.RoleName) int64 {
	t.Helper()
	role, err := repo.GetRoleByName(context.Background(), name)
	require.NoError(t, err)
	return role.ID
}

func TestPGEnsureCatalogSeedsDefaults(t *testing.T) {
	repo := newPGRepository(t)
	ctx := context.Background()

	roles, err := repo.ListRoles(ctx)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleNames(), rbac.RoleNamesOf(roles))

	perms, err := repo.ListPermissions(ctx)
	require.NoError(t, err)
	assert.Equal(t, rbac.PermissionNames(), rbac.PermissionNamesOf(perms))

	for _, name := range rbac.RoleNames() {
		granted, err := repo.ListPermissionsFor(ctx, roleID(t, repo, name))
		require.NoError(t, err)
		assert.ElementsMatch(t, rbac.DefaultGrants(name), rbac.PermissionNamesOf(granted), name)
	}

	require.NoError(t, repo.EnsureCatalog(ctx), "second run is idempotent")
	roles, err = repo.ListRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, len(rbac.RoleNames()))
}

func TestPGEnsureCatalogOnlySeedsEmptyRoles(t *testing.T) {
	repo := newPGRepository(t)
	ctx := context.Background()
	teacher := roleID(t, repo, rbac.RoleTeacher)
	student := roleID(t, repo, rbac.RoleStudent)

	require.NoError(t, repo.RevokePermission(ctx, teacher, rbac.PermGradeManage))
	for _, perm := range rbac.DefaultGrants(rbac.RoleStudent) {
		require.NoError(t, repo.RevokePermission(ctx, student, perm))
	}

	require.NoError(t, repo.EnsureCatalog(ctx))

	held, err := repo.RoleHasPermission(ctx, teacher, rbac.PermGradeManage)
	require.NoError(t, err)
	assert.False(t, held, "a curated role keeps its revocations")

	granted, err := repo.ListPermissionsFor(ctx, student)
	require.NoError(t, err)
	assert.ElementsMatch(t, rbac.DefaultGrants(rbac.RoleStudent), rbac.PermissionNamesOf(granted), "an emptied role is reseeded")
}

func TestPGAssignRole(t *testing.T) {
	repo := newPGRepository(t)
	ctx := context.Background()

	assignment, err := repo.AssignRole(ctx, "u1", rbac.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, "u1", assignment.PrincipalID)
	assert.Equal(t, roleID(t, repo, rbac.RoleTeacher), assignment.RoleID)
	assert.False(t, assignment.AssignedAt.IsZero())

	_, err = repo.AssignRole(ctx, "u1", rbac.RoleTeacher)
	assert.ErrorIs(t, err, rbac.ErrAlreadyAssigned)
	assert.ErrorIs(t, err, rbac.ErrConflict)

	_, err = repo.AssignRole(ctx, "u1", rbac.RoleName("dean"))
	assert.ErrorIs(t, err, rbac.ErrNotFound)

	roles, err := repo.ListRolesFor(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []rbac.RoleName{rbac.RoleTeacher}, rbac.RoleNamesOf(roles))
}

func TestPGRemoveRole(t *testing.T) {
	repo := newPGRepository(t)
	ctx := context.Background()

	_, err := repo.AssignRole(ctx, "u2", rbac.RoleStudent)
	require.NoError(t, err)
	require.NoError(t, repo.RemoveRole(ctx, "u2", rbac.RoleStudent))
	require.NoError(t, repo.RemoveRole(ctx, "u2", rbac.RoleStudent), "removing an absent assignment succeeds")
	assert.ErrorIs(t, repo.RemoveRole(ctx, "u2", rbac.RoleName("dean")), rbac.ErrNotFound)

	held, err := repo.HasRole(ctx, "u2", rbac.RoleStudent)
	require.NoError(t, err)
	assert.False(t, held)
}

func TestPGGrantAndRevoke(t *testing.T) {
	repo := newPGRepository(t)
	ctx := context.Background()
	student := roleID(t, repo, rbac.RoleStudent)

	grant, err := repo.GrantPermission(ctx, student, rbac.PermReportRead)
	require.NoError(t, err)
	assert.Equal(t, student, grant.RoleID)

	_, err = repo.GrantPermission(ctx, student, rbac.PermReportRead)
	assert.ErrorIs(t, err, rbac.ErrAlreadyGranted)
	assert.ErrorIs(t, err, rbac.ErrConflict)

	_, err = repo.GrantPermission(ctx, 987654, rbac.PermReportRead)
	assert.ErrorIs(t, err, rbac.ErrNotFound)
	_, err = repo.GrantPermission(ctx, student, rbac.PermissionName("FINANCE_POST"))
	assert.ErrorIs(t, err, rbac.ErrNotFound)

	require.NoError(t, repo.RevokePermission(ctx, student, rbac.PermReportRead))
	require.NoError(t, repo.RevokePermission(ctx, student, rbac.PermReportRead), "revoking an absent grant succeeds")
	assert.ErrorIs(t, repo.RevokePermission(ctx, student, rbac.PermissionName("FINANCE_POST")), rbac.ErrNotFound)

	_, err = repo.ListPermissionsFor(ctx, 987654)
	assert.ErrorIs(t, err, rbac.ErrNotFound)
}

func TestPGEffectivePermissionsUnionAcrossRoles(t *testing.T) {
	repo := newPGRepository(t)
	ctx := context.Background()

	for _, role := range []rbac.RoleName{rbac.RoleStudent, rbac.RoleTeacher} {
		_, err := repo.AssignRole(ctx, "u3", role)
		require.NoError(t, err)
	}

	perms, err := repo.EffectivePermissions(ctx, "u3")
	require.NoError(t, err)
	names := rbac.PermissionNamesOf(perms)
	assert.ElementsMatch(t, rbac.DefaultGrants(rbac.RoleTeacher), names, "student grants are a subset of teacher grants")
	assert.True(t, slices.IsSorted(names), "ordered by name: %v", names)

	ok, err := repo.HasAnyPermission(ctx, "u3", []rbac.PermissionName{rbac.PermUserDelete, rbac.PermGradeManage})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.HasPermission(ctx, "u3", rbac.PermUserDelete)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = repo.HasAnyRole(ctx, "u3", []rbac.RoleName{rbac.RoleAdmin, rbac.RoleStudent})
	require.NoError(t, err)
	assert.True(t, ok)

	perms, err = repo.EffectivePermissions(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestPGConcurrentDuplicateAssignHasOneWinner(t *testing.T) {
	repo := newPGRepository(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
		other     []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.AssignRole(ctx, "u4", rbac.RoleAdmin)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, rbac.ErrAlreadyAssigned):
				conflicts++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, other)
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, conflicts)
}
