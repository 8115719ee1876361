package source

import (
	"context"

	"arbiter-hq/arbiter/pkg/apl/ast"
)

// MemorySource is an in-memory policy source for testing.
type MemorySource struct {
	policies []*ast.Policy
}

// NewMemorySource creates a new in-memory policy source.
func NewMemorySource(policies ...*ast.Policy) *MemorySource {
	return &MemorySource{policies: policies}
}

// Load returns a copy of the policies stored in memory.
func (s *MemorySource) Load(ctx context.Context) ([]*ast.Policy, error) {
	policies := make([]*ast.Policy, len(s.policies))
	copy(policies, s.policies)
	return policies, nil
}

// SetPolicies updates the policies in memory.
func (s *MemorySource) SetPolicies(policies []*ast.Policy) {
	s.policies = policies
}
