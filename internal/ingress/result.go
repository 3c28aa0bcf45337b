package ingress

// Reason enumerates every way webhook verification can conclude short of
// success. Values are wire-stable: they appear in responses, logs and audit
// records.
type Reason string

const (
	ReasonMissingSignature    Reason = "missing_signature"
	ReasonSecretNotConfigured Reason = "webhook_secret_not_configured"
	ReasonInvalidFormat       Reason = "invalid_signature_format"
	ReasonTimestampSkew       Reason = "timestamp_skew"
	ReasonSignatureMismatch   Reason = "signature_mismatch"
	ReasonInvalidPayload      Reason = "invalid_payload"
	ReasonNotImplemented      Reason = "not_implemented"
	ReasonUnsupportedProvider Reason = "unsupported_provider"
	ReasonVerificationError   Reason = "verification_error"
)

// Result is the outcome of verifying one delivery. Verification never
// panics; every failure is a Result with OK=false and a reason.
type Result struct {
	OK     bool   `json:"ok"`
	Reason Reason `json:"reason,omitempty"`
}

func ok() Result {
	return Result{OK: true}
}

func failed(reason Reason) Result {
	return Result{OK: false, Reason: reason}
}
