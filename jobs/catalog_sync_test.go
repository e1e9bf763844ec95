package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/campusrec/campusrec/internal/jobs"
	"github.com/campusrec/campusrec/internal/observability"
	"github.com/campusrec/campusrec/internal/rbac"
	"github.com/campusrec/campusrec/internal/rbac/memory"
	_ "github.com/campusrec/campusrec/internal/testing/guard"
)

type stubSyncer struct {
	err      error
	calls    int
	deadline bool
}

func (s *stubSyncer) EnsureCatalog(ctx context.Context) error {
	s.calls++
	_, s.deadline = ctx.Deadline()
	return s.err
}

func TestNewCatalogSyncTask(t *testing.T) {
	at := time.Date(2025, 5, 1, 8, 0, 0, 0, time.FixedZone("WIB", 7*3600))
	task, err := NewCatalogSyncTask("", at)
	require.NoError(t, err)
	assert.Equal(t, TaskCatalogSync, task.Type())

	var payload CatalogSyncPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "scheduled", payload.Reason)
	assert.Equal(t, at.UTC(), payload.RequestedAt)
}

func TestCatalogSyncHandle(t *testing.T) {
	reg := prometheus.NewRegistry()
	syncer := &stubSyncer{}
	job := NewCatalogSyncJob(syncer, nil, jobmetrics.NewMetrics(reg))

	task, err := NewCatalogSyncTask("manual", time.Now())
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 1, syncer.calls)
	assert.True(t, syncer.deadline, "sync runs under a timeout")

	syncer.err = errors.New("relation roles does not exist")
	assert.ErrorIs(t, job.Handle(context.Background(), task), syncer.err)

	expected := `
# HELP campusrec_jobs_failures_total Total failures observed for background jobs.
# TYPE campusrec_jobs_failures_total counter
campusrec_jobs_failures_total{job="rbac:catalog_sync"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "campusrec_jobs_failures_total"))
}

func TestCatalogSyncHandleSkipsRetryOnBadPayload(t *testing.T) {
	syncer := &stubSyncer{}
	job := NewCatalogSyncJob(syncer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := job.Handle(context.Background(), asynq.NewTask(TaskCatalogSync, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Zero(t, syncer.calls)

	var unset *CatalogSyncJob
	assert.Error(t, unset.Handle(context.Background(), asynq.NewTask(TaskCatalogSync, nil)))
}

func TestCatalogSyncRunSeedsMemoryStore(t *testing.T) {
	store := memory.NewStore()
	job := NewCatalogSyncJob(store, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, job.Run(context.Background(), "startup"))

	admin, err := store.GetRoleByName(context.Background(), rbac.RoleAdmin)
	require.NoError(t, err)
	perms, err := store.ListPermissionsFor(context.Background(), admin.ID)
	require.NoError(t, err)
	assert.Len(t, perms, len(rbac.PermissionNames()))
}

func TestJobsHealth(t *testing.T) {
	serve := func(h *Handler) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Route("/jobs", h.MountRoutes)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
		return rr
	}

	rr := serve(NewHandler(nil, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true,"data":{"queue":"default","pending":0,"active":0,"retry":0}}`, rr.Body.String())

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	defer inspector.Close()
	rr = serve(NewHandler(inspector, slog.New(slog.NewTextHandler(io.Discard, nil))))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "job queue unavailable")
}

func TestCatalogSyncFailuresAreScrapeable(t *testing.T) {
	metrics := observability.NewMetrics()
	job := NewCatalogSyncJob(&stubSyncer{err: errors.New("connection refused")}, slog.New(slog.NewTextHandler(io.Discard, nil)), metrics.Jobs())
	require.Error(t, job.Run(context.Background(), "startup"))

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `campusrec_jobs_failures_total{job="rbac:catalog_sync"} 1`)
	assert.Contains(t, rr.Body.String(), `campusrec_jobs_total{job="rbac:catalog_sync",status="failure"} 1`)
}

func TestCatalogSyncWithoutMetricsStillRuns(t *testing.T) {
	syncer := &stubSyncer{}
	job := NewCatalogSyncJob(syncer, nil, nil)
	require.NoError(t, job.Run(context.Background(), "cli"))
	assert.Equal(t, 1, syncer.calls)
}
