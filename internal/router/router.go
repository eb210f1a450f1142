// Package router wires HTTP routes to handlers: a thin pass-through to the
// core operations, not a feature in itself.
package router

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/scmclimited/deep-rag-core/internal/handler"
	"github.com/scmclimited/deep-rag-core/internal/middleware"
)

// Dependencies holds every service the router dispatches to.
type Dependencies struct {
	DB          handler.DBPinger
	FrontendURL string
	Version     string
	Metrics     *middleware.Metrics
	MetricsReg  *prometheus.Registry

	Documents handler.DocumentDeps
	Ingest    handler.IngestDeps
	Ask       handler.AskDeps
	Retrieve  handler.RetrieveDeps
}

const requestTimeout = 30 * time.Second

// New builds the HTTP router: health and metrics outside any timeout, the
// six core operations behind a per-request timeout.
func New(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(deps.FrontendURL))
	if deps.Metrics != nil {
		r.Use(middleware.Monitoring(deps.Metrics))
	}

	r.Get("/healthz", handler.Health(deps.DB, deps.Version))
	if deps.MetricsReg != nil {
		r.Handle("/metrics", middleware.MetricsHandler(deps.MetricsReg))
	}

	timeout := middleware.Timeout(requestTimeout)

	r.With(timeout).Post("/api/ingest", handler.IngestDocument(deps.Ingest))
	r.With(timeout).Post("/api/retrieve", handler.RetrieveChunks(deps.Retrieve))
	r.With(timeout).Post("/api/ask", handler.AskQuestion(deps.Ask))

	r.With(timeout).Get("/api/documents", handler.ListDocuments(deps.Documents))
	r.With(timeout).Get("/api/documents/{id}", handler.InspectDocument(deps.Documents))
	r.With(timeout).Delete("/api/documents/{id}", handler.DeleteDocument(deps.Documents))

	return r
}
