package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wandern-app/echo-archiver/api/handlers"
	"github.com/wandern-app/echo-archiver/api/middleware"
	"github.com/wandern-app/echo-archiver/pkg/config"
	"github.com/wandern-app/echo-archiver/pkg/db"
	"github.com/wandern-app/echo-archiver/pkg/logger"
)

// NewRouter wires the HTTP surface: health probes, the upload trigger, and
// metrics.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	runner handlers.Runner,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", handlers.HealthLive(cfg))
		r.Get("/ready", handlers.HealthReady(cfg, logg, dbP))
	})

	r.Route("/v1/uploads", func(r chi.Router) {
		run := handlers.RunUploads(runner, logg)
		r.Get("/run", run)
		r.Post("/run", run)
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return r
}
