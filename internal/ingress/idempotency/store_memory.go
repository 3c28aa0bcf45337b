package idempotency

import (
	"context"
	"sync"
	"time"
)

// record tracks one seen delivery key.
type record struct {
	seenAt    time.Time
	expiresAt time.Time
}

// InMemoryStore is the single-instance implementation. Expired records are
// purged lazily at the start of every call — never by a background timer —
// so the map stays bounded by the delivery rate within one window.
//
// This store is correct only for a single running instance; a horizontally
// scaled deployment needs the Redis store.
type InMemoryStore struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]record
	clock  func() time.Time
}

// Option configures an InMemoryStore.
type Option func(*InMemoryStore)

// WithClock injects a fake clock for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *InMemoryStore) { s.clock = clock }
}

// NewInMemoryStore builds a store with the given replay window.
func NewInMemoryStore(window time.Duration, opts ...Option) *InMemoryStore {
	s := &InMemoryStore{
		window: window,
		seen:   make(map[string]record),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckAndStore purges expired records, then performs the check-and-insert
// under one lock so concurrent deliveries of the same key serialize.
func (s *InMemoryStore) CheckAndStore(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	for k, rec := range s.seen {
		if !rec.expiresAt.After(now) {
			delete(s.seen, k)
		}
	}

	if _, duplicate := s.seen[key]; duplicate {
		return false, nil
	}
	s.seen[key] = record{seenAt: now, expiresAt: now.Add(s.window)}
	return true, nil
}

// Len reports the live record count (tests).
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
