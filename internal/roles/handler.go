package roles

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

// Handler manages role management endpoints.
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

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rbac.PermRoleRead))
		r.Get("/", h.listRoles)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rbac.PermPermissionRead))
		r.Get("/{role}/permissions", h.listRolePermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RoleAdmin))
		r.Post("/{role}/permissions", h.grantPermission)
		r.Delete("/{role}/permissions/{permission}", h.revokePermission)
	})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page := shared.PaginationFromRequest(r, len(roles))
	httpx.Page(w, shared.PageOf(roles, page), page)
}

func (h *Handler) listRolePermissions(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.RolePermissions(r.Context(), chi.URLParam(r, "role"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, out)
}

func (h *Handler) grantPermission(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed request body", httpx.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: permission is required", httpx.ErrValidation))
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	grant, err := h.service.Grant(r.Context(), actor, chi.URLParam(r, "role"), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "permission granted",
		slog.String("actor_id", actor),
		slog.String("role", chi.URLParam(r, "role")),
		slog.String("permission", req.Permission))
	httpx.OK(w, http.StatusCreated, grant)
}

func (h *Handler) revokePermission(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	role, perm := chi.URLParam(r, "role"), chi.URLParam(r, "permission")
	if err := h.service.Revoke(r.Context(), actor, role, perm); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "permission revoked",
		slog.String("actor_id", actor),
		slog.String("role", role),
		slog.String("permission", perm))
	httpx.OK(w, http.StatusOK, map[string]string{"role": role, "permission": perm})
}
