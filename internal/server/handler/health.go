package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// pingTimeout bounds each dependency check.
const pingTimeout = 2 * time.Second

// PingFunc checks one backing service.
type PingFunc func(ctx context.Context) error

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	checks map[string]PingFunc
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. checks maps a dependency name,
// such as "postgres", to its ping; nil entries are skipped.
func NewHealthHandler(checks map[string]PingFunc, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, logger: logHandler(logger, "health")}
}

// HealthCheck responds with the liveness status and the state of each
// dependency. Any failing dependency turns the status into "degraded" and
// the response code into 503.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	deps := make(map[string]string, len(h.checks))
	healthy := true
	for name, ping := range h.checks {
		if ping == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		err := ping(ctx)
		cancel()
		if err != nil {
			healthy = false
			deps[name] = err.Error()
			h.logger.WarnContext(r.Context(), "dependency unhealthy",
				slog.String("dependency", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		deps[name] = "ok"
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":       status,
		"dependencies": deps,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}
