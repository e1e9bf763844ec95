package audithttp

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

	"github.com/campusrec/campusrec/internal/audit"
	"github.com/campusrec/campusrec/internal/platform/httpx"
	"github.com/campusrec/campusrec/internal/rbac"
	"github.com/campusrec/campusrec/internal/shared"
)

type stubTimelineService struct {
	result      audit.Result
	exportRows  []audit.TimelineRow
	err         error
	lastFilters audit.TimelineFilters
}

func (s *stubTimelineService) Timeline(_ context.Context, filters audit.TimelineFilters) (audit.Result, error) {
	s.lastFilters = filters
	return s.result, s.err
}

func (s *stubTimelineService) Export(_ context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error) {
	s.lastFilters = filters
	return s.exportRows, s.err
}

// adminOnly allows principals named admin-*.
type adminOnly struct{}

func (adminOnly) Decide(_ context.Context, principalID string, req rbac.Requirement) (rbac.Decision, error) {
	return rbac.Decision{Allowed: strings.HasPrefix(principalID, "admin-"), Requirement: req}, nil
}

func newAuditRouter(service *stubTimelineService) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, service, rbac.Middleware{Engine: adminOnly{}, Logger: logger})
	h.now = func() time.Time { return time.Date(2026, 5, 20, 15, 4, 5, 0, time.UTC) }
	r := chi.NewRouter()
	r.Route("/audit", h.MountRoutes)
	return r
}

func get(t *testing.T, handler http.Handler, path, principal string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if principal != "" {
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), principal))
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestTimelineDefaults(t *testing.T) {
	service := &stubTimelineService{result: audit.Result{
		Rows:   []audit.TimelineRow{{Actor: "admin-1", Action: "rbac:assign_role", Entity: "principal", EntityID: "u1"}},
		Paging: audit.PagingInfo{Page: 1, PageSize: 20},
	}}
	rr := get(t, newAuditRouter(service), "/audit/", "admin-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	want := audit.TimelineFilters{
		From:     time.Date(2026, 5, 13, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2026, 5, 21, 0, 0, 0, 0, time.UTC),
		Page:     1,
		PageSize: defaultPageSize,
	}
	if service.lastFilters != want {
		t.Fatalf("unexpected filters %+v", service.lastFilters)
	}
	var env struct {
		Success bool         `json:"success"`
		Data    audit.Result `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success || len(env.Data.Rows) != 1 || env.Data.Rows[0].EntityID != "u1" {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestTimelineFilters(t *testing.T) {
	service := &stubTimelineService{}
	rr := get(t, newAuditRouter(service), "/audit/?from=2026-04-01&to=2026-04-30&actor=admin-2&entity=role&action=rbac:grant_permission&page=2&page_size=80", "admin-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	got := service.lastFilters
	if !got.From.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)) || !got.To.Equal(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected range %s..%s", got.From, got.To)
	}
	if got.Actor != "admin-2" || got.Entity != "role" || got.Action != "rbac:grant_permission" {
		t.Fatalf("unexpected filters %+v", got)
	}
	if got.Page != 2 || got.PageSize != maxPageSize {
		t.Fatalf("unexpected paging %d/%d", got.Page, got.PageSize)
	}
}

func TestTimelineRejectsBadFilters(t *testing.T) {
	cases := map[string]string{
		"bad to":          "/audit/?to=20-04-2026",
		"bad from":        "/audit/?from=yesterday",
		"inverted range":  "/audit/?from=2026-05-02&to=2026-05-01",
		"range too wide":  "/audit/?from=2025-01-01&to=2026-05-01",
		"zero page":       "/audit/?page=0",
		"bad page size":   "/audit/?page_size=ten",
		"wrapping offset": "/audit/?page=134217729&page_size=32",
		"huge page":       "/audit/?page=9223372036854775807",
	}
	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			rr := get(t, newAuditRouter(&stubTimelineService{}), path, "admin-1")
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
			var env httpx.Envelope
			if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !strings.HasPrefix(env.Error, httpx.ErrValidation.Error()) {
				t.Fatalf("unexpected error %q", env.Error)
			}
		})
	}
}

func TestTimelineRequiresAdmin(t *testing.T) {
	router := newAuditRouter(&stubTimelineService{})
	if rr := get(t, router, "/audit/", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if rr := get(t, router, "/audit/", "student-1"); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if rr := get(t, router, "/audit/export.csv", "student-1"); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 on export, got %d", rr.Code)
	}
}

func TestTimelineHidesStoreErrors(t *testing.T) {
	service := &stubTimelineService{err: errors.New("pq: relation audit_logs does not exist")}
	rr := get(t, newAuditRouter(service), "/audit/", "admin-1")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "pq:") {
		t.Fatalf("store error leaked: %s", rr.Body.String())
	}
}

func TestExportCSV(t *testing.T) {
	service := &stubTimelineService{exportRows: []audit.TimelineRow{{
		At: time.Date(2026, 5, 19, 8, 0, 0, 0, time.UTC), Actor: "admin-1", Action: "rbac:remove_role", Entity: "principal", EntityID: "u7",
	}}}
	rr := get(t, newAuditRouter(service), "/audit/export.csv?actor=admin-1", "admin-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(rr.Body.String(), "2026-05-19T08:00:00Z,admin-1,rbac:remove_role,principal,u7,") {
		t.Fatalf("unexpected csv %q", rr.Body.String())
	}
	if service.lastFilters.Actor != "admin-1" {
		t.Fatalf("expected actor filter, got %+v", service.lastFilters)
	}
}

func TestExportRateLimitedPerPrincipal(t *testing.T) {
	router := newAuditRouter(&stubTimelineService{})
	for i := 0; i < exportLimit; i++ {
		if rr := get(t, router, "/audit/export.csv", "admin-1"); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rr.Code)
		}
	}
	if rr := get(t, router, "/audit/export.csv", "admin-1"); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr := get(t, router, "/audit/export.csv", "admin-2"); rr.Code != http.StatusOK {
		t.Fatalf("other principal should not share the budget, got %d", rr.Code)
	}
}
