package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"verdant/internal/lineage"
	id "verdant/pkg/domain"
	"verdant/pkg/platform/httputil"
)

// LineageService defines the provenance lookups the handler exposes.
type LineageService interface {
	GetCrossPeriodLineage(ctx context.Context, dataPointID id.DataPointID) (*lineage.Lineage, error)
}

// LineageHandler serves cross-period data point provenance.
type LineageHandler struct {
	service LineageService
	logger  *slog.Logger
}

func NewLineageHandler(service LineageService, logger *slog.Logger) *LineageHandler {
	return &LineageHandler{service: service, logger: logger}
}

func (h *LineageHandler) Register(r chi.Router) {
	r.Get("/data-points/{dataPointID}/lineage", h.handleLineage)
}

func (h *LineageHandler) handleLineage(w http.ResponseWriter, r *http.Request) {
	dataPointID, err := id.ParseDataPointID(chi.URLParam(r, "dataPointID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.GetCrossPeriodLineage(r.Context(), dataPointID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
