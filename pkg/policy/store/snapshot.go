package store

import (
	"sort"

	"arbiter-hq/arbiter/pkg/apl/ast"
)

// Snapshot is an immutable view of the store at one point in time. It is
// what the evaluation engine reads; mutations never touch an existing
// snapshot.
type Snapshot struct {
	byID      map[string]*ast.Policy
	byAction  map[string][]*ast.Policy // ACTIVE policies with specific scopes
	anyScoped []*ast.Policy            // ACTIVE policies scoped to any action
}

// newSnapshot builds a snapshot, indexing ACTIVE policies by action id.
func newSnapshot(policies map[string]*ast.Policy) *Snapshot {
	snap := &Snapshot{
		byID:     policies,
		byAction: make(map[string][]*ast.Policy),
	}

	// Deterministic index order keeps decision records stable across
	// identical snapshots (idempotent re-evaluation).
	ids := make([]string, 0, len(policies))
	for id := range policies {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		policy := policies[id]
		if policy.Status != ast.StatusActive {
			continue
		}
		if policy.ActionScope.IsAny() {
			snap.anyScoped = append(snap.anyScoped, policy)
			continue
		}
		for _, actionID := range policy.ActionScope.Actions {
			snap.byAction[actionID] = append(snap.byAction[actionID], policy)
		}
	}

	return snap
}

// ActiveFor returns the ACTIVE policies whose action scope covers the given
// action id: specific scopes first, then the "any"-scoped fallbacks.
func (s *Snapshot) ActiveFor(actionID string) []*ast.Policy {
	specific := s.byAction[actionID]
	if len(s.anyScoped) == 0 {
		return specific
	}
	out := make([]*ast.Policy, 0, len(specific)+len(s.anyScoped))
	out = append(out, specific...)
	out = append(out, s.anyScoped...)
	return out
}

// Get returns the policy with the given id, regardless of status.
func (s *Snapshot) Get(id string) (*ast.Policy, bool) {
	policy, ok := s.byID[id]
	return policy, ok
}

// Policies returns every stored policy, sorted by id.
func (s *Snapshot) Policies() []*ast.Policy {
	ids := make([]string, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*ast.Policy, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id])
	}
	return out
}

// Len returns the number of stored policies, any status.
func (s *Snapshot) Len() int {
	return len(s.byID)
}
