package policy

import "trustgate/internal/token"

// Effect is what a rule grants when it matches.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Wildcard matches any resource ID or action.
const Wildcard = "*"

// Capabilities that exempt a subject from the tenant-isolation gate. Both are
// deliberately narrow: ordinary tenant roles can never imply them.
const (
	RoleCrossTenant  = "platform:cross-tenant"
	ScopeCrossTenant = "tenant:cross"
)

// Rule is one entry of the authorization rule set. An empty ResourceID (or
// the wildcard) makes the rule type-level; a concrete ResourceID makes it
// exact and therefore more specific than any type-level rule.
type Rule struct {
	ID           string   `json:"id"`
	Effect       Effect   `json:"effect"`
	ResourceType string   `json:"resource_type"`
	ResourceID   string   `json:"resource_id,omitempty"`
	Action       string   `json:"action"`
	Roles        []string `json:"roles,omitempty"`
	Obligations  []string `json:"obligations,omitempty"`
}

// exact reports whether the rule names a concrete resource instance.
func (r Rule) exact() bool {
	return r.ResourceID != "" && r.ResourceID != Wildcard
}

// matches reports whether the rule applies to this subject/resource/action
// triple. Role constraints are any-of; a rule without roles applies to every
// subject.
func (r Rule) matches(subject *token.SubjectContext, resource Resource, action string) bool {
	if r.ResourceType != resource.Type {
		return false
	}
	if r.Action != Wildcard && r.Action != action {
		return false
	}
	if r.exact() && r.ResourceID != resource.ID {
		return false
	}
	if len(r.Roles) > 0 {
		holds := false
		for _, role := range r.Roles {
			if subject.HasRole(role) {
				holds = true
				break
			}
		}
		if !holds {
			return false
		}
	}
	return true
}

// evaluate applies the rule set to a request that already passed the tenant
// gate. Rules are ranked by specificity: exact resource-id matches beat
// type-level wildcards, and within a specificity tier an explicit deny beats
// an explicit allow. No matching rule is itself a decision: deny.
//
// The function is pure; identical inputs always yield the identical decision.
func evaluate(rules []Rule, subject *token.SubjectContext, resource Resource, action string) CheckResponse {
	var (
		exactAllow, exactDeny *Rule
		typeAllow, typeDeny   *Rule
	)
	for i := range rules {
		rule := &rules[i]
		if !rule.matches(subject, resource, action) {
			continue
		}
		switch {
		case rule.exact() && rule.Effect == EffectDeny && exactDeny == nil:
			exactDeny = rule
		case rule.exact() && rule.Effect == EffectAllow && exactAllow == nil:
			exactAllow = rule
		case !rule.exact() && rule.Effect == EffectDeny && typeDeny == nil:
			typeDeny = rule
		case !rule.exact() && rule.Effect == EffectAllow && typeAllow == nil:
			typeAllow = rule
		}
	}

	switch {
	case exactDeny != nil:
		return CheckResponse{Decision: DecisionDeny, Reason: ReasonExplicitDeny, RuleID: exactDeny.ID}
	case exactAllow != nil:
		return CheckResponse{Decision: DecisionAllow, Reason: ReasonRuleMatched, RuleID: exactAllow.ID, Obligations: exactAllow.Obligations}
	case typeDeny != nil:
		return CheckResponse{Decision: DecisionDeny, Reason: ReasonExplicitDeny, RuleID: typeDeny.ID}
	case typeAllow != nil:
		return CheckResponse{Decision: DecisionAllow, Reason: ReasonRuleMatched, RuleID: typeAllow.ID, Obligations: typeAllow.Obligations}
	default:
		return CheckResponse{Decision: DecisionDeny, Reason: ReasonNoMatchingPolicy}
	}
}
