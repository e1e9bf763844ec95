package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	metrics := NewMetrics()
	metrics.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	body := scrape(t, metrics)
	if !strings.Contains(body, "campusrec_http_requests_total") {
		t.Fatalf("expected body to contain campusrec_http_requests_total, got: %s", body)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	metricsBody := scrape(t, metrics)
	if !strings.Contains(metricsBody, "campusrec_http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", metricsBody)
	}
	if !strings.Contains(metricsBody, "campusrec_http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", metricsBody)
	}
}

func TestRegistererExposesCustomCollectors(t *testing.T) {
	metrics := NewMetrics()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "campusrec_custom_total", Help: "custom"})
	metrics.Registerer().MustRegister(counter)
	counter.Inc()

	if body := scrape(t, metrics); !strings.Contains(body, "campusrec_custom_total 1") {
		t.Fatalf("expected custom collector in output, got: %s", body)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var metrics *Metrics

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}

	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })
	metrics.Middleware(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Fatal("expected nil middleware to pass through")
	}
}

func TestMiddlewareCountsAccessDenials(t *testing.T) {
	metrics := NewMetrics()
	statuses := map[string]int{"/roles": http.StatusForbidden, "/me": http.StatusUnauthorized, "/healthz": http.StatusOK, "/users": http.StatusInternalServerError}

	for route, status := range statuses {
		handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		routeCtx := chi.NewRouteContext()
		routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, route)
		req := httptest.NewRequest(http.MethodGet, route, nil)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	body := scrape(t, metrics)
	for _, want := range []string{
		`campusrec_http_access_denials_total{reason="forbidden",route="/roles"} 1`,
		`campusrec_http_access_denials_total{reason="unauthenticated",route="/me"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s, got: %s", want, body)
		}
	}
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "campusrec_http_access_denials_total{") &&
			(strings.Contains(line, `route="/healthz"`) || strings.Contains(line, `route="/users"`)) {
			t.Fatalf("non-denial status counted as denial: %s", line)
		}
	}
}

func TestJobsRegisterOnServedRegistry(t *testing.T) {
	metrics := NewMetrics()
	jobs := metrics.Jobs()
	if jobs != metrics.Jobs() {
		t.Fatal("expected Jobs to return the same collectors on repeated calls")
	}
	if err := jobs.Track("rbac:catalog_sync").End(errors.New("boom")); err == nil {
		t.Fatal("expected tracker to return the error")
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, `campusrec_jobs_failures_total{job="rbac:catalog_sync"} 1`) {
		t.Fatalf("expected job failures on /metrics, got: %s", body)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Fatalf("expected runtime collectors on /metrics, got: %s", body)
	}
}
