package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"verdant/internal/report"
	id "verdant/pkg/domain"
	"verdant/pkg/platform/httputil"
	"verdant/pkg/requestcontext"
)

// WorkflowService defines the approval-workflow operations the handler
// exposes.
type WorkflowService interface {
	SubmitForApproval(ctx context.Context, sectionID id.SectionID, note string) (*report.Section, error)
	Approve(ctx context.Context, sectionID id.SectionID, note string) (*report.Section, error)
	RequestChanges(ctx context.Context, sectionID id.SectionID, note string) (*report.Section, error)
	CreateRevision(ctx context.Context, sectionID id.SectionID) (*report.Section, error)
	CanEditSection(ctx context.Context, sectionID id.SectionID) (bool, string, error)
	ListVersions(ctx context.Context, sectionID id.SectionID) ([]report.SectionVersion, error)
}

// WorkflowHandler serves section approval-workflow transitions.
type WorkflowHandler struct {
	service WorkflowService
	logger  *slog.Logger
}

func NewWorkflowHandler(service WorkflowService, logger *slog.Logger) *WorkflowHandler {
	return &WorkflowHandler{service: service, logger: logger}
}

func (h *WorkflowHandler) Register(r chi.Router) {
	r.Post("/sections/{sectionID}/submit", h.transition(h.service.SubmitForApproval))
	r.Post("/sections/{sectionID}/approve", h.transition(h.service.Approve))
	r.Post("/sections/{sectionID}/request-changes", h.transition(h.service.RequestChanges))
	r.Post("/sections/{sectionID}/revisions", h.handleCreateRevision)
	r.Get("/sections/{sectionID}/can-edit", h.handleCanEdit)
	r.Get("/sections/{sectionID}/versions", h.handleListVersions)
}

// transition wraps the three note-carrying transitions, which share their
// request and response shape.
func (h *WorkflowHandler) transition(apply func(context.Context, id.SectionID, string) (*report.Section, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := requestcontext.RequestID(ctx)

		sectionID, err := id.ParseSectionID(chi.URLParam(r, "sectionID"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		req, ok := httputil.DecodeAndPrepare[TransitionRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}

		section, err := apply(ctx, sectionID, req.Note)
		if err != nil {
			h.logger.WarnContext(ctx, "workflow transition refused",
				"request_id", requestID, "section_id", sectionID, "error", err)
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, section)
	}
}

func (h *WorkflowHandler) handleCreateRevision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sectionID, err := id.ParseSectionID(chi.URLParam(r, "sectionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	section, err := h.service.CreateRevision(ctx, sectionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, section)
}

func (h *WorkflowHandler) handleCanEdit(w http.ResponseWriter, r *http.Request) {
	sectionID, err := id.ParseSectionID(chi.URLParam(r, "sectionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	editable, reason, err := h.service.CanEditSection(r.Context(), sectionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"editable": editable,
		"reason":   reason,
	})
}

func (h *WorkflowHandler) handleListVersions(w http.ResponseWriter, r *http.Request) {
	sectionID, err := id.ParseSectionID(chi.URLParam(r, "sectionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	versions, err := h.service.ListVersions(r.Context(), sectionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if versions == nil {
		versions = []report.SectionVersion{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"versions": versions})
}
