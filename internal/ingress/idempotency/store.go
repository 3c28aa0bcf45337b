// Package idempotency suppresses duplicate webhook deliveries within a
// bounded time window. This is a bounded-time guarantee, not permanent
// deduplication: a key reused after its window has elapsed is new again.
package idempotency

import "context"

// Store is the duplicate-delivery gate. CheckAndStore must be atomic for a
// single key: two concurrent deliveries of the same key must not both
// observe "absent".
type Store interface {
	// CheckAndStore returns true when the key is first seen within the
	// current window (proceed) and false when it is a duplicate (drop).
	CheckAndStore(ctx context.Context, key string) (bool, error)
}
