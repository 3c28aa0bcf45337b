package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileStore appends newline-delimited JSON records to an append-only file.
// Each record carries a SHA-256 chain hash over the previous record's hash
// and the current payload, so truncation or in-place edits are detectable
// offline by replaying the chain.
type FileStore struct {
	mu    sync.Mutex
	f     *os.File
	chain string
}

// chainedRecord is the persisted line format.
type chainedRecord struct {
	Event
	Chain string `json:"chain"`
}

// NewFileStore opens (or creates) the audit file in append-only mode.
func NewFileStore(path string) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	return &FileStore{f: f}, nil
}

func (s *FileStore) Append(_ context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sum := sha256.Sum256(append([]byte(s.chain), payload...))
	next := hex.EncodeToString(sum[:])

	line, err := json.Marshal(chainedRecord{Event: event, Chain: next})
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	if _, err := s.f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	s.chain = next
	return nil
}

// Close releases the underlying file handle.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
