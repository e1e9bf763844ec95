package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/campusrec/campusrec/internal/platform/httpx"
	"github.com/campusrec/campusrec/internal/shared"
)

// Decider is the part of Engine the guards depend on.
type Decider interface {
	Decide(ctx context.Context, principalID string, req Requirement) (Decision, error)
}

// Middleware wires RBAC guards in front of HTTP handlers.
type Middleware struct {
	Engine Decider
	Logger *slog.Logger
}

// RequireRole ensures the current principal holds the role.
func (m Middleware) RequireRole(name RoleName) func(http.Handler) http.Handler {
	return m.Require(RequireRole(name))
}

// RequireAnyRole ensures the current principal holds at least one of the roles.
func (m Middleware) RequireAnyRole(names ...RoleName) func(http.Handler) http.Handler {
	return m.Require(RequireAnyRole(names...))
}

// RequirePermission ensures the current principal holds the permission.
func (m Middleware) RequirePermission(name PermissionName) func(http.Handler) http.Handler {
	return m.Require(RequirePermission(name))
}

// RequireAnyPermission ensures the current principal holds at least one of the permissions.
func (m Middleware) RequireAnyPermission(names ...PermissionName) func(http.Handler) http.Handler {
	return m.Require(RequireAnyPermission(names...))
}

// RequireAuthenticated only demands a resolved principal.
func (m Middleware) RequireAuthenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := shared.PrincipalFromContext(r.Context()); !ok {
				httpx.Fail(w, http.StatusUnauthorized, msgAuthRequired)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Require builds a guard for an arbitrary requirement.
func (m Middleware) Require(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principalID, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.Fail(w, http.StatusUnauthorized, msgAuthRequired)
				return
			}
			decision, err := m.Engine.Decide(r.Context(), principalID, req)
			if err != nil {
				if m.Logger != nil {
					m.Logger.ErrorContext(r.Context(), "rbac guard",
						slog.String("path", r.URL.Path),
						slog.String("requirement", req.String()),
						slog.Any("error", err))
				}
				httpx.Fail(w, http.StatusInternalServerError, lookupFailureMessage(req))
				return
			}
			switch {
			case decision.Allowed:
				next.ServeHTTP(w, r)
			case decision.Reason == ReasonUnauthenticated:
				httpx.Fail(w, http.StatusUnauthorized, msgAuthRequired)
			default:
				httpx.Fail(w, http.StatusForbidden, DenialMessage(req))
			}
		})
	}
}

const msgAuthRequired = "Authentication required"

// DenialMessage renders the client-facing 403 message for req.
func DenialMessage(req Requirement) string {
	names := req.Names()
	switch req.Kind {
	case KindRole:
		return "Access denied. Required role: " + strings.Join(names, ", ")
	case KindAnyRole:
		return "Access denied. Required one of these roles: " + strings.Join(names, ", ")
	case KindPermission:
		return "Access denied. Required permission: " + strings.Join(names, ", ")
	default:
		return "Access denied. Required one of these permissions: " + strings.Join(names, ", ")
	}
}

func lookupFailureMessage(req Requirement) string {
	if req.IsRoleCheck() {
		return "Error checking user roles"
	}
	return "Error checking user permissions"
}
