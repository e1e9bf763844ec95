package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"

	"github.com/campusrec/campusrec/internal/app"
	"github.com/campusrec/campusrec/internal/audit"
	audithttp "github.com/campusrec/campusrec/internal/audit/http"
	"github.com/campusrec/campusrec/internal/auth"
	"github.com/campusrec/campusrec/internal/observability"
	"github.com/campusrec/campusrec/internal/rbac"
	"github.com/campusrec/campusrec/internal/roles"
	"github.com/campusrec/campusrec/internal/users"
	"github.com/campusrec/campusrec/jobs"
)

func runServer(ctx context.Context) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}

	storage, err := app.OpenStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("open storage", slog.Any("error", err))
		return err
	}
	defer storage.Close(logger)

	metrics := observability.NewMetrics()

	syncJob := jobs.NewCatalogSyncJob(storage.Store, logger, metrics.Jobs())
	if err := syncJob.Run(ctx, "startup"); err != nil {
		logger.Error("initial catalog sync", slog.Any("error", err))
		return err
	}

	resolver, err := auth.NewJWTResolver(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		logger.Error("init token resolver", slog.Any("error", err))
		return err
	}

	engine := rbac.NewEngine(storage.Store, storage.Store, rbac.EngineConfig{
		LookupTimeout:   cfg.AuthzLookupTimeout,
		BreakerFailures: cfg.AuthzBreakerFailures,
		BreakerTimeout:  cfg.AuthzBreakerTimeout,
		Logger:          logger,
		Registerer:      metrics.Registerer(),
	})
	rbacMiddleware := rbac.Middleware{Engine: engine, Logger: logger}
	rbacService := rbac.NewService(storage.Store, storage.Audit, logger)

	rolesHandler := roles.NewHandler(logger, roles.NewService(rbacService), rbacMiddleware)
	usersHandler := users.NewHandler(logger, users.NewService(rbacService), rbacMiddleware)
	permissionsHandler := rbac.NewPermissionsHandler(logger, rbacService, rbacMiddleware)
	auditHandler := audithttp.NewHandler(logger, audit.NewService(storage.Timeline), rbacMiddleware)

	var jobHandler *jobs.Handler
	if cfg.RedisAddr != "" {
		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	} else {
		jobHandler = jobs.NewHandler(nil, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Resolver:           resolver,
		RolesHandler:       rolesHandler,
		UsersHandler:       usersHandler,
		PermissionsHandler: permissionsHandler,
		AuditHandler:       auditHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("http server", slog.Any("error", err))
			return err
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		return err
	}
	return nil
}
