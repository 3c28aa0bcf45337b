package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// RuleStore loads the authorization rule set. Load errors are engine
// failures, never deny decisions.
type RuleStore interface {
	Load(ctx context.Context) ([]Rule, error)
}

// FileStore reads rules from a JSON document on disk.
type FileStore struct {
	path string
}

// NewFileStore points the store at a rules file.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// ruleDocument is the on-disk format.
type ruleDocument struct {
	Rules []Rule `json:"rules"`
}

func (s *FileStore) Load(_ context.Context) ([]Rule, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var doc ruleDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	for i, rule := range doc.Rules {
		if rule.Effect != EffectAllow && rule.Effect != EffectDeny {
			return nil, fmt.Errorf("rule %d (%s): effect must be allow or deny", i, rule.ID)
		}
		if rule.ResourceType == "" || rule.Action == "" {
			return nil, fmt.Errorf("rule %d (%s): resource_type and action are required", i, rule.ID)
		}
	}
	return doc.Rules, nil
}

// InMemoryStore serves a fixed rule set for tests and development.
type InMemoryStore struct {
	mu    sync.RWMutex
	rules []Rule
	err   error
}

// NewInMemoryStore seeds the store with rules.
func NewInMemoryStore(rules []Rule) *InMemoryStore {
	return &InMemoryStore{rules: rules}
}

func (s *InMemoryStore) Load(_ context.Context) ([]Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]Rule{}, s.rules...), nil
}

// SetRules replaces the rule set (tests exercising Reload).
func (s *InMemoryStore) SetRules(rules []Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = rules
}

// FailWith makes subsequent loads fail (tests exercising engine failures).
func (s *InMemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
