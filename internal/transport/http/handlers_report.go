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

// ReportService defines the report-content operations the handler exposes.
type ReportService interface {
	CreatePeriod(ctx context.Context, period *report.Period) error
	GetPeriod(ctx context.Context, periodID id.PeriodID) (*report.Period, error)
	ListPeriods(ctx context.Context) ([]*report.Period, error)

	CreateSection(ctx context.Context, periodID id.PeriodID, catalogCode, title, content string, ownerID id.UserID) (*report.Section, error)
	GetSection(ctx context.Context, sectionID id.SectionID) (*report.Section, error)
	ListSections(ctx context.Context, periodID id.PeriodID) ([]*report.Section, error)

	CreateDataPoint(ctx context.Context, sectionID id.SectionID, update report.DataPointUpdate) (*report.DataPoint, error)
	GetDataPoint(ctx context.Context, dataPointID id.DataPointID) (*report.DataPoint, error)
	ListDataPoints(ctx context.Context, sectionID id.SectionID) ([]*report.DataPoint, error)
	UpdateDataPoint(ctx context.Context, dataPointID id.DataPointID, update report.DataPointUpdate, note string) (*report.DataPoint, error)
	RolloverDataPoint(ctx context.Context, sourceID id.DataPointID, targetSectionID id.SectionID) (*report.DataPoint, error)
}

// ReportHandler serves reporting periods, sections and data points.
type ReportHandler struct {
	service ReportService
	logger  *slog.Logger
}

func NewReportHandler(service ReportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{service: service, logger: logger}
}

func (h *ReportHandler) Register(r chi.Router) {
	r.Post("/periods", h.handleCreatePeriod)
	r.Get("/periods", h.handleListPeriods)
	r.Get("/periods/{periodID}", h.handleGetPeriod)
	r.Get("/periods/{periodID}/sections", h.handleListSections)
	r.Post("/periods/{periodID}/sections", h.handleCreateSection)
	r.Get("/sections/{sectionID}", h.handleGetSection)
	r.Get("/sections/{sectionID}/data-points", h.handleListDataPoints)
	r.Post("/sections/{sectionID}/data-points", h.handleCreateDataPoint)
	r.Get("/data-points/{dataPointID}", h.handleGetDataPoint)
	r.Put("/data-points/{dataPointID}", h.handleUpdateDataPoint)
	r.Post("/data-points/{dataPointID}/rollover", h.handleRollover)
}

func (h *ReportHandler) handleCreatePeriod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[PeriodRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	period := &report.Period{
		ID:        id.NewPeriodID(),
		Name:      req.Name,
		StartDate: req.ParsedStartDate(),
		EndDate:   req.ParsedEndDate(),
	}
	if err := h.service.CreatePeriod(ctx, period); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, period)
}

func (h *ReportHandler) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.service.ListPeriods(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if periods == nil {
		periods = []*report.Period{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"periods": periods})
}

func (h *ReportHandler) handleGetPeriod(w http.ResponseWriter, r *http.Request) {
	periodID, err := id.ParsePeriodID(chi.URLParam(r, "periodID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	period, err := h.service.GetPeriod(r.Context(), periodID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, period)
}

func (h *ReportHandler) handleCreateSection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	periodID, err := id.ParsePeriodID(chi.URLParam(r, "periodID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[SectionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	section, err := h.service.CreateSection(ctx, periodID, req.CatalogCode, req.Title, req.Content, requestcontext.UserID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, section)
}

func (h *ReportHandler) handleGetSection(w http.ResponseWriter, r *http.Request) {
	sectionID, err := id.ParseSectionID(chi.URLParam(r, "sectionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	section, err := h.service.GetSection(r.Context(), sectionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, section)
}

func (h *ReportHandler) handleListSections(w http.ResponseWriter, r *http.Request) {
	periodID, err := id.ParsePeriodID(chi.URLParam(r, "periodID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sections, err := h.service.ListSections(r.Context(), periodID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if sections == nil {
		sections = []*report.Section{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sections": sections})
}

func (h *ReportHandler) handleCreateDataPoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	sectionID, err := id.ParseSectionID(chi.URLParam(r, "sectionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[DataPointRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	point, err := h.service.CreateDataPoint(ctx, sectionID, req.Update())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, point)
}

func (h *ReportHandler) handleGetDataPoint(w http.ResponseWriter, r *http.Request) {
	dataPointID, err := id.ParseDataPointID(chi.URLParam(r, "dataPointID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	point, err := h.service.GetDataPoint(r.Context(), dataPointID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, point)
}

func (h *ReportHandler) handleListDataPoints(w http.ResponseWriter, r *http.Request) {
	sectionID, err := id.ParseSectionID(chi.URLParam(r, "sectionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	points, err := h.service.ListDataPoints(r.Context(), sectionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if points == nil {
		points = []*report.DataPoint{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"dataPoints": points})
}

func (h *ReportHandler) handleUpdateDataPoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	dataPointID, err := id.ParseDataPointID(chi.URLParam(r, "dataPointID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateDataPointRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	point, err := h.service.UpdateDataPoint(ctx, dataPointID, req.Update(), req.ChangeNote)
	if err != nil {
		h.logger.WarnContext(ctx, "data point update refused",
			"request_id", requestID, "data_point_id", dataPointID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, point)
}

func (h *ReportHandler) handleRollover(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	sourceID, err := id.ParseDataPointID(chi.URLParam(r, "dataPointID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[RolloverRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	point, err := h.service.RolloverDataPoint(ctx, sourceID, req.ParsedTargetSectionID())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, point)
}
