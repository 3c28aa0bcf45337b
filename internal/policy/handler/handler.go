package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"trustgate/internal/policy"
	dErrors "trustgate/pkg/domainerrors"
	"trustgate/pkg/platform/httputil"
	"trustgate/pkg/platform/middleware/auth"
	"trustgate/pkg/requestcontext"
)

// Handler wires authorization endpoints to the policy engine. All routes
// assume the auth middleware has already placed a verified subject in the
// context.
type Handler struct {
	engine *policy.Engine
	logger *slog.Logger
}

// New constructs a policy handler with its dependencies.
func New(engine *policy.Engine, logger *slog.Logger) *Handler {
	return &Handler{
		engine: engine,
		logger: logger,
	}
}

// Register mounts authorization endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/authz/check", h.HandleCheck)
	r.Get("/v1/me", h.HandleMe)
}

// CheckRequest is the transport shape of one authorization question. The
// subject is never part of the request body; it always comes from the
// verified token.
type CheckRequest struct {
	Resource policy.Resource   `json:"resource"`
	Action   string            `json:"action"`
	Context  map[string]string `json:"context,omitempty"`
}

// HandleCheck handles POST /v1/authz/check requests.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := requestcontext.CorrelationID(ctx)
	start := time.Now()

	subject := auth.Subject(ctx)
	if subject == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[CheckRequest](w, r, h.logger, ctx, correlationID)
	if !ok {
		return
	}
	if req.Resource.Type == "" || req.Action == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "resource.type and action are required"))
		return
	}

	result, err := h.engine.Check(ctx, policy.CheckRequest{
		Subject:  subject,
		Resource: req.Resource,
		Action:   req.Action,
		Context:  req.Context,
	})
	if err != nil {
		// Engine failure is an error, not a deny. The caller must know the
		// question was never answered.
		h.logger.ErrorContext(ctx, "policy check failed",
			"correlation_id", correlationID,
			"subject_id", subject.ID,
			"resource_type", req.Resource.Type,
			"action", req.Action,
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "authorization engine unavailable"))
		return
	}

	h.logger.InfoContext(ctx, "policy checked",
		"correlation_id", correlationID,
		"subject_id", subject.ID,
		"resource_type", req.Resource.Type,
		"action", req.Action,
		"decision", string(result.Decision),
		"reason", result.Reason,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleMe handles GET /v1/me requests: it reflects the verified subject so
// callers can inspect what the gateway derived from their token.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	subject := auth.Subject(r.Context())
	if subject == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, subject)
}
