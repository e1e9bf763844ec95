package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/campusrec/campusrec/internal/audit"
	"github.com/campusrec/campusrec/internal/platform/cache"
	"github.com/campusrec/campusrec/internal/platform/db"
	"github.com/campusrec/campusrec/internal/rbac"
	"github.com/campusrec/campusrec/internal/rbac/memory"
	"github.com/campusrec/campusrec/internal/shared"
)

// Storage bundles the resources backing the authorization stores.
type Storage struct {
	Store    rbac.Store
	Audit    rbac.AuditPort
	Timeline audit.Repository
	Pool     *pgxpool.Pool
	Redis    *redis.Client
}

// OpenStorage connects the configured store driver and, when enabled, wraps
// it with the Redis permission cache.
func OpenStorage(ctx context.Context, cfg *Config, logger *slog.Logger) (*Storage, error) {
	st := &Storage{}
	switch cfg.StoreDriver {
	case StoreDriverMemory:
		trail := audit.NewMemoryLog(logger)
		st.Store = memory.NewStore()
		st.Audit = trail
		st.Timeline = trail
	default:
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{AppName: "campusrec", MaxConns: cfg.PGMaxConns})
		if err != nil {
			return nil, err
		}
		st.Pool = pool
		st.Store = rbac.NewRepository(pool)
		st.Audit = shared.NewAuditLogger(pool)
		st.Timeline = audit.NewRepository(pool)
	}

	if cfg.AuthzCacheEnabled {
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			st.Close(logger)
			return nil, fmt.Errorf("authz cache: %w", err)
		}
		st.Redis = client
		st.Store = rbac.NewCachedStore(st.Store, rbac.NewRedisPermissionCache(client, cfg.AuthzCacheTTL), logger)
	}
	return st, nil
}

// Close releases pooled connections.
func (s *Storage) Close(logger *slog.Logger) {
	if s == nil {
		return
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil && logger != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
}
