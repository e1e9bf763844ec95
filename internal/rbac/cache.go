package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Snapshot is the cached authorization view of one principal.
type Snapshot struct {
	Roles       []Role       `json:"roles"`
	Permissions []Permission `json:"permissions"`
}

// PermissionCache stores principal snapshots under a version. Invalidation
// bumps the version so entries written by loads that raced a mutation are
// never read again.
type PermissionCache interface {
	Version(ctx context.Context, principalID string) (string, error)
	Get(ctx context.Context, principalID, version string) (Snapshot, bool, error)
	Set(ctx context.Context, principalID, version string, snap Snapshot) error
	Invalidate(ctx context.Context, principalID string) error
	InvalidateAll(ctx context.Context) error
}

// RedisPermissionCache implements PermissionCache on Redis. The TTL only
// reclaims entries of superseded versions.
type RedisPermissionCache struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

// NewRedisPermissionCache constructs a Redis backed cache.
func NewRedisPermissionCache(client redis.Cmdable, ttl time.Duration) *RedisPermissionCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisPermissionCache{client: client, ttl: ttl, prefix: "rbac:authz"}
}

func (c *RedisPermissionCache) globalGenKey() string { return c.prefix + ":gen" }

func (c *RedisPermissionCache) principalGenKey(principalID string) string {
	return c.prefix + ":gen:" + principalID
}

func (c *RedisPermissionCache) entryKey(principalID, version string) string {
	return c.prefix + ":snap:" + version + ":" + principalID
}

// Version combines the global and per-principal generations.
func (c *RedisPermissionCache) Version(ctx context.Context, principalID string) (string, error) {
	vals, err := c.client.MGet(ctx, c.globalGenKey(), c.principalGenKey(principalID)).Result()
	if err != nil {
		return "", fmt.Errorf("rbac cache: version: %w", err)
	}
	return genString(vals[0]) + "." + genString(vals[1]), nil
}

// Get loads a snapshot stored under version.
func (c *RedisPermissionCache) Get(ctx context.Context, principalID, version string) (Snapshot, bool, error) {
	raw, err := c.client.Get(ctx, c.entryKey(principalID, version)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("rbac cache: get: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("rbac cache: decode: %w", err)
	}
	return snap, true, nil
}

// Set stores a snapshot under version.
func (c *RedisPermissionCache) Set(ctx context.Context, principalID, version string, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("rbac cache: encode: %w", err)
	}
	if err := c.client.Set(ctx, c.entryKey(principalID, version), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("rbac cache: set: %w", err)
	}
	return nil
}

// Invalidate retires every snapshot of one principal.
func (c *RedisPermissionCache) Invalidate(ctx context.Context, principalID string) error {
	if err := c.client.Incr(ctx, c.principalGenKey(principalID)).Err(); err != nil {
		return fmt.Errorf("rbac cache: invalidate %s: %w", principalID, err)
	}
	return nil
}

// InvalidateAll retires every snapshot.
func (c *RedisPermissionCache) InvalidateAll(ctx context.Context) error {
	if err := c.client.Incr(ctx, c.globalGenKey()).Err(); err != nil {
		return fmt.Errorf("rbac cache: invalidate all: %w", err)
	}
	return nil
}

func genString(v any) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return "0"
	}
	return s
}

// CachedStore decorates a Store with a PermissionCache. Principal reads are
// served from snapshots; every mutation invalidates before returning.
type CachedStore struct {
	Store
	cache  PermissionCache
	logger *slog.Logger
	group  singleflight.Group
}

// NewCachedStore wraps store with cache.
func NewCachedStore(store Store, cache PermissionCache, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{Store: store, cache: cache, logger: logger}
}

func (s *CachedStore) snapshot(ctx context.Context, principalID string) (Snapshot, error) {
	version, err := s.cache.Version(ctx, principalID)
	if err != nil {
		s.logger.WarnContext(ctx, "rbac cache unavailable, reading store", slog.Any("error", err))
		return s.load(ctx, principalID)
	}
	snap, hit, err := s.cache.Get(ctx, principalID, version)
	if err != nil {
		s.logger.WarnContext(ctx, "rbac cache get", slog.String("principal_id", principalID), slog.Any("error", err))
	} else if hit {
		return snap, nil
	}

	v, err, _ := s.group.Do(principalID+"@"+version, func() (any, error) {
		snap, err := s.load(ctx, principalID)
		if err != nil {
			return Snapshot{}, err
		}
		if err := s.cache.Set(ctx, principalID, version, snap); err != nil {
			s.logger.WarnContext(ctx, "rbac cache set", slog.String("principal_id", principalID), slog.Any("error", err))
		}
		return snap, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return v.(Snapshot), nil
}

func (s *CachedStore) load(ctx context.Context, principalID string) (Snapshot, error) {
	roles, err := s.Store.ListRolesFor(ctx, principalID)
	if err != nil {
		return Snapshot{}, err
	}
	perms, err := s.Store.EffectivePermissions(ctx, principalID)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Roles: roles, Permissions: perms}, nil
}

// ListRolesFor returns the cached roles of a principal.
func (s *CachedStore) ListRolesFor(ctx context.Context, principalID string) ([]Role, error) {
	snap, err := s.snapshot(ctx, principalID)
	if err != nil {
		return nil, err
	}
	return snap.Roles, nil
}

// HasRole reports whether the principal holds the role.
func (s *CachedStore) HasRole(ctx context.Context, principalID string, name RoleName) (bool, error) {
	return s.HasAnyRole(ctx, principalID, []RoleName{name})
}

// HasAnyRole reports whether the principal holds at least one of the roles.
func (s *CachedStore) HasAnyRole(ctx context.Context, principalID string, names []RoleName) (bool, error) {
	snap, err := s.snapshot(ctx, principalID)
	if err != nil {
		return false, err
	}
	for _, role := range snap.Roles {
		if slices.Contains(names, role.Name) {
			return true, nil
		}
	}
	return false, nil
}

// EffectivePermissions returns the cached effective permissions of a principal.
func (s *CachedStore) EffectivePermissions(ctx context.Context, principalID string) ([]Permission, error) {
	snap, err := s.snapshot(ctx, principalID)
	if err != nil {
		return nil, err
	}
	return snap.Permissions, nil
}

// HasPermission reports whether any held role grants the permission.
func (s *CachedStore) HasPermission(ctx context.Context, principalID string, name PermissionName) (bool, error) {
	return s.HasAnyPermission(ctx, principalID, []PermissionName{name})
}

// HasAnyPermission reports whether any held role grants one of the permissions.
func (s *CachedStore) HasAnyPermission(ctx context.Context, principalID string, names []PermissionName) (bool, error) {
	snap, err := s.snapshot(ctx, principalID)
	if err != nil {
		return false, err
	}
	for _, perm := range snap.Permissions {
		if slices.Contains(names, perm.Name) {
			return true, nil
		}
	}
	return false, nil
}

// AssignRole assigns and retires the principal's snapshots.
func (s *CachedStore) AssignRole(ctx context.Context, principalID string, name RoleName) (RoleAssignment, error) {
	assignment, err := s.Store.AssignRole(ctx, principalID, name)
	if err != nil {
		return RoleAssignment{}, err
	}
	return assignment, s.invalidate(ctx, principalID)
}

// RemoveRole removes and retires the principal's snapshots.
func (s *CachedStore) RemoveRole(ctx context.Context, principalID string, name RoleName) error {
	if err := s.Store.RemoveRole(ctx, principalID, name); err != nil {
		return err
	}
	return s.invalidate(ctx, principalID)
}

// GrantPermission grants and retires every snapshot.
func (s *CachedStore) GrantPermission(ctx context.Context, roleID int64, name PermissionName) (RolePermissionGrant, error) {
	grant, err := s.Store.GrantPermission(ctx, roleID, name)
	if err != nil {
		return RolePermissionGrant{}, err
	}
	return grant, s.invalidateAll(ctx)
}

// RevokePermission revokes and retires every snapshot.
func (s *CachedStore) RevokePermission(ctx context.Context, roleID int64, name PermissionName) error {
	if err := s.Store.RevokePermission(ctx, roleID, name); err != nil {
		return err
	}
	return s.invalidateAll(ctx)
}

// EnsureCatalog syncs the catalog and retires every snapshot.
func (s *CachedStore) EnsureCatalog(ctx context.Context) error {
	if err := s.Store.EnsureCatalog(ctx); err != nil {
		return err
	}
	return s.invalidateAll(ctx)
}

// invalidate falls back to a global flush when the principal entry cannot be retired.
func (s *CachedStore) invalidate(ctx context.Context, principalID string) error {
	err := s.cache.Invalidate(ctx, principalID)
	if err == nil {
		return nil
	}
	s.logger.ErrorContext(ctx, "rbac cache invalidate", slog.String("principal_id", principalID), slog.Any("error", err))
	return s.invalidateAll(ctx)
}

func (s *CachedStore) invalidateAll(ctx context.Context) error {
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.logger.ErrorContext(ctx, "rbac cache invalidate all", slog.Any("error", err))
		return fmt.Errorf("rbac: change saved but cache not invalidated: %w", err)
	}
	return nil
}

var _ Store = (*CachedStore)(nil)
