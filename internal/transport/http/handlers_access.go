package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"verdant/internal/access"
	id "verdant/pkg/domain"
	dErrors "verdant/pkg/domain-errors"
	"verdant/pkg/platform/httputil"
	"verdant/pkg/requestcontext"
)

// AccessService defines the permission-engine operations the handler exposes.
type AccessService interface {
	CheckPermission(ctx context.Context, userID id.UserID, resource id.ResourceType, action id.Action) (access.Decision, error)
	GetPermissionMatrix(ctx context.Context) (*access.Matrix, error)
	GrantSectionAccess(ctx context.Context, sectionID id.SectionID, userID id.UserID, grantedBy id.UserID, expiresAt *time.Time) (access.SectionAccessGrant, error)
	RevokeSectionAccess(ctx context.Context, sectionID id.SectionID, userID id.UserID) error
	GetAccessibleSections(ctx context.Context, userID id.UserID, periodID id.PeriodID) ([]id.SectionID, error)
	CreateRole(ctx context.Context, name, description string, permissions []string) (*access.Role, error)
	UpdateRole(ctx context.Context, roleID id.RoleID, name, description string, permissions []string) (*access.Role, error)
	DeleteRole(ctx context.Context, roleID id.RoleID) error
}

// AccessHandler serves permission checks, the role matrix, and section
// grants.
type AccessHandler struct {
	service AccessService
	logger  *slog.Logger
}

func NewAccessHandler(service AccessService, logger *slog.Logger) *AccessHandler {
	return &AccessHandler{service: service, logger: logger}
}

func (h *AccessHandler) Register(r chi.Router) {
	r.Post("/permissions/check", h.handleCheck)
	r.Get("/permissions/matrix", h.handleMatrix)

	r.Post("/roles", h.handleCreateRole)
	r.Put("/roles/{roleID}", h.handleUpdateRole)
	r.Delete("/roles/{roleID}", h.handleDeleteRole)

	r.Post("/sections/{sectionID}/grants", h.handleGrant)
	r.Delete("/sections/{sectionID}/grants/{userID}", h.handleRevoke)
	r.Get("/users/{userID}/sections", h.handleAccessibleSections)
}

// handleCheck handles POST /permissions/check. The subject defaults to the
// authenticated caller; passing userId lets administrators probe another
// user's effective access.
func (h *AccessHandler) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CheckPermissionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	subject := requestcontext.UserID(ctx)
	if parsed := req.ParsedUserID(); parsed != nil {
		subject = *parsed
	}

	decision, err := h.service.CheckPermission(ctx, subject, req.ParsedResource(), req.ParsedAction())
	if err != nil {
		h.logger.ErrorContext(ctx, "permission check failed",
			"request_id", requestID, "user_id", subject, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, decision)
}

func (h *AccessHandler) handleMatrix(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	matrix, err := h.service.GetPermissionMatrix(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "permission matrix resolution failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, matrix)
}

func (h *AccessHandler) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RoleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	role, err := h.service.CreateRole(ctx, req.Name, req.Description, req.Permissions)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, role)
}

func (h *AccessHandler) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	roleID, err := id.ParseRoleID(chi.URLParam(r, "roleID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[RoleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	role, err := h.service.UpdateRole(ctx, roleID, req.Name, req.Description, req.Permissions)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, role)
}

func (h *AccessHandler) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := id.ParseRoleID(chi.URLParam(r, "roleID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.DeleteRole(r.Context(), roleID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccessHandler) handleGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	sectionID, err := id.ParseSectionID(chi.URLParam(r, "sectionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[GrantRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	grant, err := h.service.GrantSectionAccess(ctx, sectionID, req.ParsedUserID(), requestcontext.UserID(ctx), req.ParsedExpiresAt())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, grant)
}

func (h *AccessHandler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	sectionID, err := id.ParseSectionID(chi.URLParam(r, "sectionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.RevokeSectionAccess(r.Context(), sectionID, userID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccessHandler) handleAccessibleSections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	periodID, err := id.ParsePeriodID(r.URL.Query().Get("periodId"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "periodId query parameter is required"))
		return
	}
	sections, err := h.service.GetAccessibleSections(ctx, userID, periodID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if sections == nil {
		sections = []id.SectionID{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sections": sections})
}
