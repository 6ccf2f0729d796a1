package handlers

import (
	"net/http"

	"github.com/wandern-app/echo-archiver/api/responses"
	"github.com/wandern-app/echo-archiver/pkg/config"
	"github.com/wandern-app/echo-archiver/pkg/db"
	"github.com/wandern-app/echo-archiver/pkg/logger"
)

// HealthLive reports process liveness only.
func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Wandern-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}

// HealthReady checks the dependencies a run would need.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		status := map[string]string{"db": "ok"}
		healthy := true

		if dbP != nil {
			if err := dbP.Ping(ctx); err != nil {
				status["db"] = "unreachable"
				healthy = false
				logg.Error(ctx, "readiness db ping failed", err)
			}
		} else {
			status["db"] = "not configured"
			healthy = false
		}

		if !healthy {
			responses.WriteRaw(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "checks": status})
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ok", "checks": status})
	}
}
