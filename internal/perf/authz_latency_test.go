package perf

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/campusrec/campusrec/internal/rbac"
	"github.com/campusrec/campusrec/internal/rbac/memory"
)

func seededEngine(tb testing.TB, principals int) *rbac.Engine {
	tb.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	if err := store.EnsureCatalog(ctx); err != nil {
		tb.Fatalf("ensure catalog: %v", err)
	}
	roles := rbac.RoleNames()
	for i := 0; i < principals; i++ {
		if _, err := store.AssignRole(ctx, fmt.Sprintf("u%d", i), roles[i%len(roles)]); err != nil {
			tb.Fatalf("assign: %v", err)
		}
	}
	return rbac.NewEngine(store, store, rbac.EngineConfig{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
}

func TestAuthzDecisionLatencyTarget(t *testing.T) {
	engine := seededEngine(t, 500)
	req := rbac.RequireAnyPermission(rbac.PermGradeManage, rbac.PermUserDelete)

	samples := make([]time.Duration, 0, 1000)
	for i := 0; i < 1000; i++ {
		start := time.Now()
		if _, err := engine.Decide(context.Background(), fmt.Sprintf("u%d", i%500), req); err != nil {
			t.Fatalf("decide: %v", err)
		}
		samples = append(samples, time.Since(start))
	}

	threshold := 5 * time.Millisecond
	if p95 := percentile95(samples); p95 > threshold {
		t.Fatalf("authz latency regression: p95=%s threshold=%s", p95, threshold)
	}
}

func BenchmarkEngineDecide(b *testing.B) {
	engine := seededEngine(b, 500)
	req := rbac.RequirePermission(rbac.PermCourseRead)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Decide(ctx, "u1", req); err != nil {
			b.Fatal(err)
		}
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[int(float64(len(sorted)-1)*0.95)]
}
