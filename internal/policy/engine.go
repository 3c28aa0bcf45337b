package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"trustgate/internal/audit"
	"trustgate/internal/token"
	"trustgate/pkg/requestcontext"
)

// Decision is always one of exactly two values. The absence of a matching
// rule is itself a decision (deny), not an error.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

// Deny and allow reasons surfaced to callers and audit records.
const (
	ReasonTenantMismatch   = "tenant_mismatch"
	ReasonNoMatchingPolicy = "no_matching_policy"
	ReasonExplicitDeny     = "explicit_deny"
	ReasonRuleMatched      = "rule_matched"
)

// Resource identifies what the subject wants to act on. OwnerTenant drives
// the isolation gate and is required even when policy data is incomplete.
type Resource struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	OwnerTenant string `json:"owner_tenant"`
}

// CheckRequest is one authorization question.
type CheckRequest struct {
	Subject  *token.SubjectContext
	Resource Resource
	Action   string
	Context  map[string]string
}

// CheckResponse is the engine's answer.
type CheckResponse struct {
	Decision    Decision `json:"decision"`
	Reason      string   `json:"reason,omitempty"`
	RuleID      string   `json:"rule_id,omitempty"`
	Obligations []string `json:"obligations,omitempty"`
}

// Engine makes deny-by-default authorization decisions against a process-wide
// rule set. Construct it once at startup and pass it by reference into
// request handling; the first load is deferred to first use.
type Engine struct {
	store   RuleStore
	auditor *audit.Writer
	metrics *Metrics
	logger  *slog.Logger

	mu     sync.RWMutex
	rules  []Rule
	loaded bool
}

// NewEngine wires the engine to its rule store and audit writer.
func NewEngine(store RuleStore, auditor *audit.Writer, metrics *Metrics, logger *slog.Logger) *Engine {
	return &Engine{
		store:   store,
		auditor: auditor,
		metrics: metrics,
		logger:  logger,
	}
}

// Initialize loads the rule set once. Concurrent initializers collapse into a
// single load; later calls are no-ops. A failed load is returned to the
// caller and retried on the next call rather than being cached forever.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.RLock()
	loaded := e.loaded
	e.mu.RUnlock()
	if loaded {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded {
		return nil
	}
	rules, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load policy rules: %w", err)
	}
	e.rules = rules
	e.loaded = true
	return nil
}

// Reload re-reads the rule set in place, replacing the active rules
// atomically. Used by the admin surface after policy data changes.
func (e *Engine) Reload(ctx context.Context) (int, error) {
	rules, err := e.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("reload policy rules: %w", err)
	}
	e.mu.Lock()
	e.rules = rules
	e.loaded = true
	e.mu.Unlock()
	return len(rules), nil
}

// Ready reports whether the rule set has been loaded.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loaded
}

// Check answers one authorization question. Evaluation order:
//
//  1. hard tenant-isolation gate — a subject from another tenant without a
//     cross-tenant capability is denied unconditionally, regardless of rules;
//  2. rule evaluation by specificity;
//  3. no matching rule is a deny with reason no_matching_policy.
//
// Exactly one audit event is emitted per call, before returning. An engine
// failure (rule store unreachable) propagates as an error and is never
// silently coerced into a deny.
func (e *Engine) Check(ctx context.Context, req CheckRequest) (CheckResponse, error) {
	start := time.Now()

	if err := e.Initialize(ctx); err != nil {
		// Infrastructure failure, not a decision. No audit decision record
		// is written for a question the engine never answered.
		return CheckResponse{}, err
	}

	response := e.decide(req)

	e.metrics.IncrementDecision(string(response.Decision), response.Reason)
	e.metrics.ObserveCheckLatency(time.Since(start))
	e.emitDecision(ctx, req, response)

	return response, nil
}

func (e *Engine) decide(req CheckRequest) CheckResponse {
	if req.Subject.TenantID != req.Resource.OwnerTenant && !hasCrossTenantCapability(req.Subject) {
		return CheckResponse{Decision: DecisionDeny, Reason: ReasonTenantMismatch}
	}

	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	return evaluate(rules, req.Subject, req.Resource, req.Action)
}

// hasCrossTenantCapability reports whether the subject may cross the tenant
// boundary at all. Absent either marker the gate denies before any rule is
// consulted.
func hasCrossTenantCapability(subject *token.SubjectContext) bool {
	return subject.HasRole(RoleCrossTenant) || subject.HasScope(ScopeCrossTenant)
}

func (e *Engine) emitDecision(ctx context.Context, req CheckRequest, res CheckResponse) {
	result := audit.ResultDeny
	if res.Decision == DecisionAllow {
		result = audit.ResultAllow
	}
	e.auditor.Write(audit.Event{
		ID:            uuid.NewString(),
		Type:          audit.EventPolicyDecision,
		Timestamp:     requestcontext.Now(ctx),
		CorrelationID: requestcontext.CorrelationID(ctx),
		SubjectID:     req.Subject.ID,
		TenantID:      req.Subject.TenantID,
		Resource:      req.Resource.Type + "/" + req.Resource.ID,
		Action:        req.Action,
		Result:        result,
		Reason:        res.Reason,
	})
}
