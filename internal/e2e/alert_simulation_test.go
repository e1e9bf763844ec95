package e2e

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/campusrec/campusrec/internal/rbac"
	"github.com/campusrec/campusrec/internal/rbac/memory"
	_ "github.com/campusrec/campusrec/testing"
)

type downStore struct {
	*memory.Store
	down bool
}

func (d *downStore) HasAnyPermission(ctx context.Context, principalID string, names []rbac.PermissionName) (bool, error) {
	if d.down {
		return false, errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")
	}
	return d.Store.HasAnyPermission(ctx, principalID, names)
}

type alertScenario struct {
	name    string
	outcome string
	anchor  string
	drive   func(t *testing.T, engine *rbac.Engine, store *downStore)
}

// Each scenario pushes the decision counter that its alert rule watches.
func TestAlertSimulationDrivesWatchedSeries(t *testing.T) {
	scenarios := []alertScenario{
		{
			name:    "AuthzLookupFailures",
			outcome: "lookup_failure",
			anchor:  "lookup-failures",
			drive: func(t *testing.T, engine *rbac.Engine, store *downStore) {
				store.down = true
				defer func() { store.down = false }()
				_, err := engine.Decide(context.Background(), "u1", rbac.RequireAnyPermission(rbac.PermUserRead, rbac.PermRoleRead))
				if !errors.Is(err, rbac.ErrLookupFailure) {
					t.Fatalf("expected lookup failure, got %v", err)
				}
			},
		},
		{
			name:    "AuthzInvalidRequirement",
			outcome: "invalid_requirement",
			anchor:  "invalid-requirement",
			drive: func(t *testing.T, engine *rbac.Engine, _ *downStore) {
				_, err := engine.Decide(context.Background(), "u1", rbac.RequireAnyPermission())
				if !errors.Is(err, rbac.ErrInvalidRequirement) {
					t.Fatalf("expected invalid requirement, got %v", err)
				}
			},
		},
	}

	runbook, err := os.ReadFile(filepath.Join("..", "..", "docs", "runbook-authz.md"))
	if err != nil {
		t.Fatalf("read runbook: %v", err)
	}

	for _, scenario := range scenarios {
		t.Run(scenario.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			store := &downStore{Store: memory.NewStore()}
			engine := rbac.NewEngine(store, store, rbac.EngineConfig{Registerer: reg, BreakerFailures: 100})

			before := outcomeTotal(t, reg, scenario.outcome)
			scenario.drive(t, engine, store)
			if after := outcomeTotal(t, reg, scenario.outcome); after != before+1 {
				t.Fatalf("expected %s to rise by one, got %v -> %v", scenario.outcome, before, after)
			}
			if !strings.Contains(string(runbook), "{#"+scenario.anchor+"}") {
				t.Fatalf("runbook missing anchor %s", scenario.anchor)
			}
		})
	}
}

func outcomeTotal(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var total float64
	for _, fam := range families {
		if fam.GetName() != "campusrec_authz_decisions_total" {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if labelValue(metric, "outcome") == outcome {
				total += metric.GetCounter().GetValue()
			}
		}
	}
	return total
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
