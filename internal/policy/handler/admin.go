package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"trustgate/internal/audit"
	"trustgate/internal/policy"
	dErrors "trustgate/pkg/domainerrors"
	"trustgate/pkg/platform/httputil"
	"trustgate/pkg/requestcontext"
)

// AdminHandler exposes the operational policy surface. It is mounted behind
// the admin-key middleware, never the bearer-token chain.
type AdminHandler struct {
	engine  *policy.Engine
	auditor *audit.Writer
	logger  *slog.Logger
}

// NewAdmin constructs the admin handler.
func NewAdmin(engine *policy.Engine, auditor *audit.Writer, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		engine:  engine,
		auditor: auditor,
		logger:  logger,
	}
}

// Register mounts admin endpoints on the router.
func (h *AdminHandler) Register(r chi.Router) {
	r.Post("/admin/policy/reload", h.HandleReload)
}

// HandleReload handles POST /admin/policy/reload requests.
func (h *AdminHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := requestcontext.CorrelationID(ctx)

	count, err := h.engine.Reload(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "policy reload failed",
			"correlation_id", correlationID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "policy source unavailable"))
		return
	}

	h.auditor.Write(audit.Event{
		ID:            uuid.NewString(),
		Type:          audit.EventPolicyReloaded,
		Timestamp:     requestcontext.Now(ctx),
		CorrelationID: correlationID,
		Resource:      "policy/rules",
		Action:        "reload",
		Result:        audit.ResultOK,
	})

	h.logger.InfoContext(ctx, "policy reloaded",
		"correlation_id", correlationID,
		"rule_count", count,
	)

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":     "reloaded",
		"rule_count": count,
	})
}
