package audit

import "time"

// Event is emitted from trust-boundary decisions to capture key outcomes.
// Keep it transport-agnostic so stores and sinks can fan out. Records are
// append-only; no update or delete path exists anywhere in this package.
type Event struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	SubjectID     string    `json:"subject_id,omitempty"`
	TenantID      string    `json:"tenant_id,omitempty"`
	Resource      string    `json:"resource,omitempty"`
	Action        string    `json:"action,omitempty"`
	Result        Result    `json:"result"`
	Reason        string    `json:"reason,omitempty"`
}

// EventType names the boundary outcome being recorded.
type EventType string

const (
	EventTokenVerified    EventType = "token_verified"
	EventTokenRejected    EventType = "token_rejected"
	EventPolicyDecision   EventType = "policy_decision"
	EventWebhookVerified  EventType = "webhook_verified"
	EventWebhookRejected  EventType = "webhook_rejected"
	EventWebhookDuplicate EventType = "webhook_duplicate"
	EventPolicyReloaded   EventType = "policy_reloaded"
)

// Result is the outcome attached to an event.
type Result string

const (
	ResultAllow    Result = "allow"
	ResultDeny     Result = "deny"
	ResultOK       Result = "ok"
	ResultRejected Result = "rejected"
)

// valid reports whether the event carries the minimal required shape.
// Invalid events are dropped by the writer, never partially written.
func (e Event) valid() bool {
	return e.ID != "" && e.Type != "" && !e.Timestamp.IsZero() && e.Result != ""
}
