package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"verdant/internal/audit"
	id "verdant/pkg/domain"
	dErrors "verdant/pkg/domain-errors"
	"verdant/pkg/platform/httputil"
)

// AuditService defines the ledger operations the handler exposes.
type AuditService interface {
	Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error)
}

// AuditHandler serves the audit ledger read API.
type AuditHandler struct {
	service AuditService
	logger  *slog.Logger
}

func NewAuditHandler(service AuditService, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{service: service, logger: logger}
}

func (h *AuditHandler) Register(r chi.Router) {
	r.Get("/audit-log", h.handleQuery)
}

// handleQuery handles GET /audit-log with filters passed as query params.
func (h *AuditHandler) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := audit.Filter{
		EntityType:     q.Get("entityType"),
		EntityID:       q.Get("entityId"),
		Action:         audit.Action(q.Get("action")),
		BreakGlassOnly: q.Get("breakGlassOnly") == "true",
	}
	if raw := q.Get("userId"); raw != "" {
		userID, err := id.ParseUserID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.UserID = &userID
	}
	if raw := q.Get("start"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "start must be an RFC 3339 timestamp"))
			return
		}
		filter.Start = &start
	}
	if raw := q.Get("end"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "end must be an RFC 3339 timestamp"))
			return
		}
		filter.End = &end
	}

	entries, err := h.service.Query(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit query failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}
