package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"trustgate/internal/audit"
	"trustgate/internal/ingress"
	"trustgate/internal/ingress/idempotency"
	dErrors "trustgate/pkg/domainerrors"
	"trustgate/pkg/platform/httputil"
	"trustgate/pkg/requestcontext"
)

// maxBodyBytes bounds inbound webhook bodies.
const maxBodyBytes = 1 << 20

// Handler wires the webhook ingress endpoint to verification, duplicate
// suppression and the downstream hand-off port.
type Handler struct {
	verifier  *ingress.Verifier
	dedupe    idempotency.Store
	publisher ingress.Publisher
	auditor   *audit.Writer
	metrics   *ingress.Metrics
	logger    *slog.Logger
}

// New constructs the ingress handler with its dependencies.
func New(verifier *ingress.Verifier, dedupe idempotency.Store, publisher ingress.Publisher, auditor *audit.Writer, metrics *ingress.Metrics, logger *slog.Logger) *Handler {
	return &Handler{
		verifier:  verifier,
		dedupe:    dedupe,
		publisher: publisher,
		auditor:   auditor,
		metrics:   metrics,
		logger:    logger,
	}
}

// Register mounts ingress endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/webhooks/{provider}", h.HandleDelivery)
}

// HandleDelivery handles POST /webhooks/{provider}.
func (h *Handler) HandleDelivery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := chi.URLParam(r, "provider")
	correlationID := requestcontext.CorrelationID(ctx)

	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.logger.WarnContext(ctx, "webhook body read failed",
			"provider", provider,
			"error", err,
			"correlation_id", correlationID,
		)
		h.metrics.IncrementVerification(provider, string(ingress.ReasonVerificationError))
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "could not read request body"))
		return
	}

	result := h.verifier.Verify(ctx, provider, r.Header, rawBody)
	if !result.OK {
		h.rejected(w, r, provider, result)
		return
	}
	h.metrics.IncrementVerification(provider, "ok")

	if key := r.Header.Get("idempotency-key"); key != "" {
		fresh, err := h.dedupe.CheckAndStore(ctx, key)
		if err != nil {
			// Neither accept nor drop on a broken dedup store; let the
			// provider retry once it recovers.
			h.logger.ErrorContext(ctx, "idempotency store unavailable",
				"provider", provider,
				"error", err,
				"correlation_id", correlationID,
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "delivery cannot be deduplicated right now"))
			return
		}
		if !fresh {
			h.duplicate(w, r, provider, key)
			return
		}
	}

	if err := h.publisher.Publish(ctx, provider, rawBody); err != nil {
		h.logger.ErrorContext(ctx, "webhook hand-off failed",
			"provider", provider,
			"error", err,
			"correlation_id", correlationID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "hand-off failed"))
		return
	}

	h.audit(r, audit.EventWebhookVerified, audit.ResultOK, provider, "")
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// rejected drops an unverifiable delivery with its reason. All verification
// failures map to 400: the delivery is malformed or unsigned from our point
// of view, and the response body says why without echoing any secret.
func (h *Handler) rejected(w http.ResponseWriter, r *http.Request, provider string, result ingress.Result) {
	ctx := r.Context()
	h.metrics.IncrementVerification(provider, string(result.Reason))
	h.logger.WarnContext(ctx, "webhook rejected",
		"provider", provider,
		"reason", string(result.Reason),
		"correlation_id", requestcontext.CorrelationID(ctx),
	)
	h.audit(r, audit.EventWebhookRejected, audit.ResultRejected, provider, string(result.Reason))
	httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, string(result.Reason)))
}

// duplicate acknowledges a replayed delivery without re-processing it. A 200
// keeps well-behaved providers from retrying.
func (h *Handler) duplicate(w http.ResponseWriter, r *http.Request, provider, key string) {
	ctx := r.Context()
	h.metrics.IncrementDuplicate(provider)
	h.logger.InfoContext(ctx, "duplicate webhook dropped",
		"provider", provider,
		"idempotency_key", key,
		"correlation_id", requestcontext.CorrelationID(ctx),
	)
	h.audit(r, audit.EventWebhookDuplicate, audit.ResultRejected, provider, "duplicate_delivery")
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
}

func (h *Handler) audit(r *http.Request, eventType audit.EventType, result audit.Result, provider, reason string) {
	ctx := r.Context()
	h.auditor.Write(audit.Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Timestamp:     requestcontext.Now(ctx),
		CorrelationID: requestcontext.CorrelationID(ctx),
		Resource:      "webhook/" + provider,
		Action:        "deliver",
		Result:        result,
		Reason:        reason,
	})
}
