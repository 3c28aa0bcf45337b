package audit

import "regexp"

// Placeholder substituted for every secret-shaped string leaf.
const Placeholder = "[REDACTED]"

// Secret-shaped patterns. A leaf matching any of them is replaced wholesale:
// partial masking risks leaving enough of a credential to be useful.
var secretPatterns = []*regexp.Regexp{
	// Compact three-segment tokens (header.payload.signature).
	regexp.MustCompile(`[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}`),
	// Long high-entropy key-like strings (API keys, HMAC secrets). Dashes are
	// deliberately excluded so UUIDs keep their traceability value.
	regexp.MustCompile(`\b[A-Za-z0-9+/_=]{32,}\b`),
	// Email addresses.
	regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
}

// RedactString returns the placeholder when s looks secret-shaped, otherwise
// s unchanged.
func RedactString(s string) string {
	for _, p := range secretPatterns {
		if p.MatchString(s) {
			return Placeholder
		}
	}
	return s
}

// RedactObject recursively masks secret-shaped string leaves in maps, slices
// and strings. The input is never mutated; a redacted copy is returned.
func RedactObject(v any) any {
	switch val := v.(type) {
	case string:
		return RedactString(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = RedactObject(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = RedactObject(inner)
		}
		return out
	default:
		return v
	}
}

// redactEvent masks every free-text field of an event before it reaches any
// sink. Identifiers produced by this process (event ID, correlation ID) are
// left alone so traceability survives.
func redactEvent(e Event) Event {
	e.SubjectID = RedactString(e.SubjectID)
	e.TenantID = RedactString(e.TenantID)
	e.Resource = RedactString(e.Resource)
	e.Action = RedactString(e.Action)
	e.Reason = RedactString(e.Reason)
	return e
}
