package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"verdant/internal/breakglass"
	id "verdant/pkg/domain"
	"verdant/pkg/platform/httputil"
	"verdant/pkg/requestcontext"
)

// BreakGlassService defines the emergency-access operations the handler
// exposes.
type BreakGlassService interface {
	Activate(ctx context.Context, userID id.UserID, reason, authMethod string) (*breakglass.Session, error)
	Deactivate(ctx context.Context, sessionID id.SessionID, note string) (*breakglass.Session, error)
	GetActiveSession(ctx context.Context, userID id.UserID) (*breakglass.Session, error)
	GetSessions(ctx context.Context, userID id.UserID, activeOnly bool) ([]*breakglass.Session, error)
}

// BreakGlassHandler serves break-glass session management.
type BreakGlassHandler struct {
	service BreakGlassService
	logger  *slog.Logger
}

func NewBreakGlassHandler(service BreakGlassService, logger *slog.Logger) *BreakGlassHandler {
	return &BreakGlassHandler{service: service, logger: logger}
}

func (h *BreakGlassHandler) Register(r chi.Router) {
	r.Post("/break-glass/activate", h.handleActivate)
	r.Post("/break-glass/{sessionID}/deactivate", h.handleDeactivate)
	r.Get("/break-glass/active", h.handleActive)
	r.Get("/break-glass/sessions", h.handleSessions)
}

// handleActivate opens a break-glass session for the authenticated caller.
// Activation is always for oneself; there is no activating on behalf of
// another user.
func (h *BreakGlassHandler) handleActivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	actor := requestcontext.UserID(ctx)

	req, ok := httputil.DecodeAndPrepare[ActivateBreakGlassRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	session, err := h.service.Activate(ctx, actor, req.Reason, req.AuthenticationMethod)
	if err != nil {
		h.logger.WarnContext(ctx, "break-glass activation refused",
			"request_id", requestID, "user_id", actor, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, session)
}

func (h *BreakGlassHandler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[DeactivateBreakGlassRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	session, err := h.service.Deactivate(ctx, sessionID, req.Note)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

// handleActive returns the caller's active session, or 200 with a null body
// when there is none; absence of an emergency session is not an error.
func (h *BreakGlassHandler) handleActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, err := h.service.GetActiveSession(ctx, requestcontext.UserID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"session": session})
}

func (h *BreakGlassHandler) handleSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := requestcontext.UserID(ctx)
	if raw := r.URL.Query().Get("userId"); raw != "" {
		parsed, err := id.ParseUserID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		subject = parsed
	}

	sessions, err := h.service.GetSessions(ctx, subject, r.URL.Query().Get("activeOnly") == "true")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if sessions == nil {
		sessions = []*breakglass.Session{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}
