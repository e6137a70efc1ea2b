package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RouterConfig collects what NewRouter mounts besides the checkout routes.
type RouterConfig struct {
	Logger      *slog.Logger
	Metrics     *Metrics
	Checks      map[string]Check
	MetricsPath string
	// MetricsHandler serves MetricsPath when set.
	MetricsHandler http.Handler
}

// NewRouter builds the storefront API router.
func NewRouter(handler *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(
		RequestID,
		AccessLog(logger),
		Recoverer(logger),
		WithMetrics(cfg.Metrics),
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{Status: statusFailed, Message: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{Status: statusFailed, Message: "method not allowed"})
	})

	r.Get("/healthz", healthz)
	r.Get("/readyz", readyz(cfg.Checks))
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, cfg.MetricsHandler)
	}

	handler.Register(r)
	return r
}
