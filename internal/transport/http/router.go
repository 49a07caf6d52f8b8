// Package httptransport is the REST boundary over the governance core. It
// translates HTTP requests into service calls and coded domain errors into
// 4xx/5xx envelopes; no business rules live here.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"verdant/internal/platform/middleware"
)

// Dependencies carries everything the router mounts.
type Dependencies struct {
	Logger    *slog.Logger
	Validator middleware.TokenValidator

	Audit      *AuditHandler
	Access     *AccessHandler
	BreakGlass *BreakGlassHandler
	Report     *ReportHandler
	Workflow   *WorkflowHandler
	Lineage    *LineageHandler
}

// NewRouter assembles the full API surface. Everything under /api/v1 requires
// a valid bearer token; /healthz and /metrics stay open for probes and
// scrapers.
func NewRouter(deps Dependencies) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.RequireAuth(deps.Validator, deps.Logger))
		deps.Audit.Register(api)
		deps.Access.Register(api)
		deps.BreakGlass.Register(api)
		deps.Report.Register(api)
		deps.Workflow.Register(api)
		deps.Lineage.Register(api)
	})
	return r
}
