package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/campusrec/campusrec/internal/jobs"
)

// CatalogSyncer is the store operation the sync job drives.
type CatalogSyncer interface {
	EnsureCatalog(ctx context.Context) error
}

// CatalogSyncJob keeps the persisted role and permission catalog aligned
// with the compiled one. A nil Metrics disables instrumentation; long-running
// processes pass the collectors of the registry they serve.
type CatalogSyncJob struct {
	Store   CatalogSyncer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
}

// NewCatalogSyncJob wires dependencies for the sync handler.
func NewCatalogSyncJob(store CatalogSyncer, logger *slog.Logger, metrics *jobmetrics.Metrics) *CatalogSyncJob {
	return &CatalogSyncJob{Store: store, Logger: logger, Metrics: metrics, Timeout: time.Minute}
}

// Handle processes catalog sync tasks.
func (j *CatalogSyncJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("catalog sync: handler not configured")
	}
	var payload CatalogSyncPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	return j.Run(ctx, payload.Reason)
}

// Run performs one sync outside of the queue, e.g. at process start.
func (j *CatalogSyncJob) Run(ctx context.Context, reason string) (resultErr error) {
	tracker := j.Metrics.Track(TaskCatalogSync)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("job", TaskCatalogSync), slog.String("reason", reason))
	start := time.Now()

	timeout := j.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := j.Store.EnsureCatalog(ctx); err != nil {
		logger.Error("catalog sync failed", slog.Any("error", err))
		return err
	}
	logger.Info("catalog sync completed", slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *CatalogSyncJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
