package audit

import "context"

// Store persists audit events. Implementations are append-only; swapping the
// sink must never change writer semantics.
type Store interface {
	Append(ctx context.Context, event Event) error
}
