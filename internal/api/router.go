// Package api assembles the HTTP surface of the import service.
package api

import (
	"net/http"
	"time"

	"github.com/alexedwards/flow"
	"github.com/rs/zerolog"

	"github.com/triad3/irpf-import/internal/api/handlers"
	"github.com/triad3/irpf-import/internal/api/middleware"
)

// RouterConfig holds what the router mounts.
type RouterConfig struct {
	Declarations *handlers.DeclarationsHandler
	Jobs         *handlers.JobsHandler

	// Auth guards every /api route.
	Auth func(http.Handler) http.Handler

	// Metrics is served on /metrics when set.
	Metrics http.Handler

	// Telemetry enables OpenTelemetry HTTP server instrumentation.
	Telemetry bool

	Log zerolog.Logger
}

// NewRouter builds the service handler with its middleware chain.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := flow.New()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	}, http.MethodGet)

	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics, http.MethodGet)
	}

	mux.Group(func(mux *flow.Mux) {
		mux.Use(cfg.Auth)

		mux.HandleFunc("/api/declarations", cfg.Declarations.ListDeclarations, http.MethodGet)
		mux.HandleFunc("/api/declarations/import", cfg.Declarations.Import, http.MethodPost)
		mux.HandleFunc("/api/declarations/:id", cfg.Declarations.GetDeclaration, http.MethodGet)
		mux.HandleFunc("/api/declarations/:id/export.xlsx", cfg.Declarations.ExportDeclaration, http.MethodGet)

		mux.HandleFunc("/api/jobs", cfg.Jobs.ListJobs, http.MethodGet)
		mux.HandleFunc("/api/jobs/:id", cfg.Jobs.GetJob, http.MethodGet)
	})

	var handler http.Handler = middleware.Recovery(cfg.Log)(
		middleware.RequestID(
			middleware.Logger(cfg.Log)(
				middleware.CORS(mux),
			),
		),
	)
	if cfg.Telemetry {
		handler = middleware.Telemetry("triad3-api")(handler)
	}
	return handler
}
