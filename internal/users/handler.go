package users

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/campusrec/campusrec/internal/platform/httpx"
	"github.com/campusrec/campusrec/internal/rbac"
	"github.com/campusrec/campusrec/internal/shared"
)

// Handler manages user role assignment endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	rbac      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), rbac: rbac}
}

// MountRoutes registers /users routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAnyPermission(rbac.PermUserRead, rbac.PermRoleRead))
		r.Get("/{principalID}/roles", h.listRoles)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAnyPermission(rbac.PermUserRead, rbac.PermPermissionRead))
		r.Get("/{principalID}/permissions", h.listPermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RoleAdmin))
		r.Post("/{principalID}/roles", h.assignRole)
		r.Delete("/{principalID}/roles/{role}", h.removeRole)
	})
}

// MountMe registers /me routes.
func (h *Handler) MountMe(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated())
		r.Get("/permissions", h.me)
	})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.Roles(r.Context(), chi.URLParam(r, "principalID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, roles)
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	access, err := h.service.Permissions(r.Context(), chi.URLParam(r, "principalID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, access)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	principalID, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	access, err := h.service.Me(r.Context(), principalID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, access)
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed request body", httpx.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: role is required", httpx.ErrValidation))
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	principalID := chi.URLParam(r, "principalID")
	assignment, err := h.service.Assign(r.Context(), actor, principalID, req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "role assigned",
		slog.String("actor_id", actor),
		slog.String("principal_id", principalID),
		slog.String("role", req.Role))
	httpx.OK(w, http.StatusCreated, assignment)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	principalID, role := chi.URLParam(r, "principalID"), chi.URLParam(r, "role")
	if err := h.service.Remove(r.Context(), actor, principalID, role); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "role removed",
		slog.String("actor_id", actor),
		slog.String("principal_id", principalID),
		slog.String("role", role))
	httpx.OK(w, http.StatusOK, map[string]string{"principal_id": principalID, "role": role})
}
