package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"trustgate/pkg/platform/httputil"
)

// ReadinessCheck probes one dependency. Probes must be cheap; they run on
// every /readyz hit.
type ReadinessCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	checks []ReadinessCheck
	logger *slog.Logger
}

// NewHealth constructs the probe handler.
func NewHealth(logger *slog.Logger, checks ...ReadinessCheck) *HealthHandler {
	return &HealthHandler{checks: checks, logger: logger}
}

// Register mounts the probe endpoints on the router.
func (h *HealthHandler) Register(r chi.Router) {
	r.Get("/healthz", h.HandleHealthz)
	r.Get("/readyz", h.HandleReadyz)
}

// HandleHealthz reports process liveness only.
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReadyz runs every readiness probe and reports per-dependency status.
// Any failing probe makes the whole endpoint return 503 so load balancers
// stop routing here.
func (h *HealthHandler) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for _, check := range h.checks {
		if err := check.Probe(ctx); err != nil {
			h.logger.WarnContext(ctx, "readiness probe failed",
				"check", check.Name,
				"error", err,
			)
			results[check.Name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		results[check.Name] = "ok"
	}

	httputil.WriteJSON(w, status, map[string]any{
		"status": http.StatusText(status),
		"checks": results,
	})
}
