package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
)

// Reason explains why a decision did not allow access.
type Reason string

const (
	ReasonNone                   Reason = ""
	ReasonUnauthenticated        Reason = "unauthenticated"
	ReasonInsufficientRole       Reason = "insufficient_role"
	ReasonInsufficientPermission Reason = "insufficient_permission"
)

// Decision is the outcome of an authorization check. Store faults are
// returned as errors wrapping ErrLookupFailure, never as a Decision.
type Decision struct {
	Allowed     bool
	Reason      Reason
	Requirement Requirement
}

// EngineConfig tunes lookups issued by the Engine.
type EngineConfig struct {
	LookupTimeout   time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	Logger          *slog.Logger
	Registerer      prometheus.Registerer
}

// Engine answers whether a principal satisfies a Requirement.
type Engine struct {
	roles   RoleStore
	perms   PermissionStore
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
	metrics *engineMetrics
}

// NewEngine constructs an Engine over the given stores.
func NewEngine(roles RoleStore, perms PermissionStore, cfg EngineConfig) *Engine {
	timeout := cfg.LookupTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "rbac-store",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation is not a store fault.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("rbac breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return &Engine{
		roles:   roles,
		perms:   perms,
		timeout: timeout,
		breaker: breaker,
		logger:  logger,
		metrics: newEngineMetrics(cfg.Registerer),
	}
}

// Decide evaluates req for principalID. An empty principalID yields an
// unauthenticated decision without touching the stores.
func (e *Engine) Decide(ctx context.Context, principalID string, req Requirement) (Decision, error) {
	start := time.Now()
	decision, err := e.decide(ctx, principalID, req)
	e.metrics.observe(req, decision, err, time.Since(start))

	attrs := []any{
		slog.String("principal_id", principalID),
		slog.String("requirement", req.String()),
	}
	switch {
	case errors.Is(err, ErrInvalidRequirement):
		e.logger.ErrorContext(ctx, "authz requirement misconfigured", append(attrs, slog.String("event", "authz_invalid_requirement"), slog.Any("error", err))...)
	case err != nil:
		e.logger.ErrorContext(ctx, "authz lookup failed", append(attrs, slog.String("event", "authz_lookup_failed"), slog.Any("error", err))...)
	case decision.Allowed:
		e.logger.DebugContext(ctx, "authz allowed", append(attrs, slog.String("event", "authz_allowed"))...)
	default:
		e.logger.InfoContext(ctx, "authz denied", append(attrs, slog.String("event", "authz_denied"), slog.String("reason", string(decision.Reason)))...)
	}
	return decision, err
}

func (e *Engine) decide(ctx context.Context, principalID string, req Requirement) (Decision, error) {
	if principalID == "" {
		return Decision{Reason: ReasonUnauthenticated, Requirement: req}, nil
	}
	if err := req.Validate(); err != nil {
		return Decision{Requirement: req}, err
	}

	var (
		held   bool
		err    error
		denial Reason
	)
	switch req.Kind {
	case KindRole:
		denial = ReasonInsufficientRole
		held, err = e.lookup(ctx, func(ctx context.Context) (bool, error) {
			return e.roles.HasRole(ctx, principalID, req.Roles[0])
		})
	case KindAnyRole:
		denial = ReasonInsufficientRole
		held, err = e.lookup(ctx, func(ctx context.Context) (bool, error) {
			return e.roles.HasAnyRole(ctx, principalID, req.Roles)
		})
	case KindPermission:
		denial = ReasonInsufficientPermission
		held, err = e.lookup(ctx, func(ctx context.Context) (bool, error) {
			return e.perms.HasPermission(ctx, principalID, req.Permissions[0])
		})
	case KindAnyPermission:
		denial = ReasonInsufficientPermission
		held, err = e.lookup(ctx, func(ctx context.Context) (bool, error) {
			return e.perms.HasAnyPermission(ctx, principalID, req.Permissions)
		})
	}
	if err != nil {
		return Decision{Requirement: req}, err
	}
	if !held {
		return Decision{Reason: denial, Requirement: req}, nil
	}
	return Decision{Allowed: true, Requirement: req}, nil
}

func (e *Engine) lookup(ctx context.Context, fn func(context.Context) (bool, error)) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	out, err := e.breaker.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrLookupFailure, err)
	}
	held, _ := out.(bool)
	return held, nil
}

type engineMetrics struct {
	decisions *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

func newEngineMetrics(reg prometheus.Registerer) *engineMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &engineMetrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusrec_authz_decisions_total",
			Help: "Authorization decisions by requirement kind and outcome.",
		}, []string{"kind", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "campusrec_authz_decision_duration_seconds",
			Help:    "Latency of authorization decisions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	reg.MustRegister(m.decisions, m.duration)
	return m
}

func (m *engineMetrics) observe(req Requirement, decision Decision, err error, elapsed time.Duration) {
	kind := req.Kind.String()
	m.decisions.WithLabelValues(kind, outcomeOf(decision, err)).Inc()
	m.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func outcomeOf(decision Decision, err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequirement):
		return "invalid_requirement"
	case err != nil:
		return "lookup_failure"
	case decision.Allowed:
		return "allow"
	case decision.Reason == ReasonUnauthenticated:
		return "unauthenticated"
	default:
		return "deny"
	}
}
