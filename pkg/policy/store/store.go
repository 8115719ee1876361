package store

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"arbiter-hq/arbiter/pkg/apl/ast"
)

// Store holds parsed policies keyed by id. Mutations are copy-on-write:
// each one builds a fresh Snapshot and swaps it in atomically.
type Store struct {
	mu     sync.Mutex // serializes writers
	snap   atomic.Pointer[Snapshot]
	logger *slog.Logger
}

// NewStore creates an empty policy store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		logger: logger.With("component", "policy.store"),
	}
	s.snap.Store(newSnapshot(map[string]*ast.Policy{}))
	return s
}

// Snapshot returns the current immutable snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Create stores a parsed, schema-validated policy and returns its id.
// A policy without an id (no @id annotation) is assigned a uuid. Creating a
// policy whose id already exists fails with a DuplicateError; Replace is the
// path for full replacement.
func (s *Store) Create(policy *ast.Policy) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if policy.ID == "" {
		policy.ID = uuid.NewString()
	}
	if policy.Status == "" {
		policy.Status = ast.StatusActive
	}
	policy.Created = time.Now()

	current := s.snap.Load()
	if _, exists := current.byID[policy.ID]; exists {
		return "", &DuplicateError{PolicyID: policy.ID}
	}

	s.swap(current, func(next map[string]*ast.Policy) {
		next[policy.ID] = policy
	})

	s.logger.Info("policy created",
		"policy_id", policy.ID,
		"effect", policy.Effect,
		"action_scope", policy.ActionScope.Actions,
	)
	return policy.ID, nil
}

// Get returns the policy with the given id, any status.
func (s *Store) Get(id string) (*ast.Policy, bool) {
	return s.snap.Load().Get(id)
}

// SetStatus toggles a policy between active and inactive.
func (s *Store) SetStatus(id string, status ast.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.snap.Load()
	existing, ok := current.byID[id]
	if !ok {
		return &NotFoundError{PolicyID: id, Operation: "set_status"}
	}
	if existing.Status == status {
		return nil
	}

	updated := *existing
	updated.Status = status

	s.swap(current, func(next map[string]*ast.Policy) {
		next[id] = &updated
	})

	s.logger.Info("policy status changed", "policy_id", id, "status", status)
	return nil
}

// Replace swaps in a full replacement for an existing policy, keeping its id.
func (s *Store) Replace(id string, policy *ast.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.snap.Load()
	existing, ok := current.byID[id]
	if !ok {
		return &NotFoundError{PolicyID: id, Operation: "replace"}
	}

	replacement := *policy
	replacement.ID = id
	replacement.Created = existing.Created
	if replacement.Status == "" {
		replacement.Status = existing.Status
	}

	s.swap(current, func(next map[string]*ast.Policy) {
		next[id] = &replacement
	})

	s.logger.Info("policy replaced", "policy_id", id)
	return nil
}

// Delete removes a policy from the store.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.snap.Load()
	if _, ok := current.byID[id]; !ok {
		return &NotFoundError{PolicyID: id, Operation: "delete"}
	}

	s.swap(current, func(next map[string]*ast.Policy) {
		delete(next, id)
	})

	s.logger.Info("policy deleted", "policy_id", id)
	return nil
}

// ReplaceAll atomically replaces the entire policy set. Used by the file
// source on reload; ids missing from the new set are assigned uuids.
func (s *Store) ReplaceAll(policies []*ast.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]*ast.Policy, len(policies))
	for _, policy := range policies {
		if policy.ID == "" {
			policy.ID = uuid.NewString()
		}
		if policy.Status == "" {
			policy.Status = ast.StatusActive
		}
		if _, dup := next[policy.ID]; dup {
			return &DuplicateError{PolicyID: policy.ID}
		}
		next[policy.ID] = policy
	}

	s.snap.Store(newSnapshot(next))

	s.logger.Info("policy set replaced", "policy_count", len(policies))
	return nil
}

// swap builds the successor snapshot from the current one. Callers hold mu.
func (s *Store) swap(current *Snapshot, mutate func(map[string]*ast.Policy)) {
	next := make(map[string]*ast.Policy, len(current.byID)+1)
	for id, policy := range current.byID {
		next[id] = policy
	}
	mutate(next)
	s.snap.Store(newSnapshot(next))
}
