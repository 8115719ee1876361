package ast

import (
	"strconv"
	"strings"
	"time"
)

// Effect represents whether a policy grants or denies access.
type Effect string

const (
	EffectPermit Effect = "permit"
	EffectForbid Effect = "forbid"
)

// Status represents the lifecycle status of a policy.
// Inactive policies are never selected during evaluation.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// ActionScope describes which actions a policy applies to.
// An empty Actions slice means the policy applies to any action.
type ActionScope struct {
	Actions []string // Canonical action ids (<TargetName>___<method>)
}

// IsAny returns true if the scope covers every action.
func (s ActionScope) IsAny() bool {
	return len(s.Actions) == 0
}

// Covers returns true if the scope applies to the given action id.
func (s ActionScope) Covers(actionID string) bool {
	if s.IsAny() {
		return true
	}
	for _, a := range s.Actions {
		if a == actionID {
			return true
		}
	}
	return false
}

// ResourceScope describes which resources a policy applies to.
// An empty Resource means the policy applies to any resource.
type ResourceScope struct {
	Resource string // Exact ARN-like resource identifier
}

// IsAny returns true if the scope covers every resource.
func (s ResourceScope) IsAny() bool {
	return s.Resource == ""
}

// Covers returns true if the scope applies to the given resource.
func (s ResourceScope) Covers(resource string) bool {
	return s.IsAny() || s.Resource == resource
}

// Policy represents the root AST node for an APL policy.
type Policy struct {
	// ID is the policy identifier. Set from an @id("...") annotation if
	// present, otherwise assigned by the store at creation time.
	ID string

	// Effect is permit or forbid.
	Effect Effect

	// Status is active or inactive. Newly parsed policies default to active.
	Status Status

	// ActionScope restricts the policy to specific action ids.
	ActionScope ActionScope

	// ResourceScope restricts the policy to a specific gateway resource.
	ResourceScope ResourceScope

	// Condition is the when-clause expression tree. Nil means the policy
	// matches unconditionally within its scope.
	Condition *ExprNode

	// Source tracking
	SourceFile string    // Path to the policy file, if file-loaded
	SourceText string    // Original policy text as submitted
	Created    time.Time // Creation timestamp, set by the store
	Location   Location  // Source location of the policy head
}

// HasCondition returns true if the policy carries a when clause.
func (p *Policy) HasCondition() bool {
	return p.Condition != nil
}

// Equal reports structural equality of two policies.
// ID, status, and source tracking fields are ignored: the round-trip law
// compares what the policy text expresses, not store-assigned metadata.
func (p *Policy) Equal(other *Policy) bool {
	if p == nil || other == nil {
		return p == other
	}
	if p.Effect != other.Effect {
		return false
	}
	if len(p.ActionScope.Actions) != len(other.ActionScope.Actions) {
		return false
	}
	for i := range p.ActionScope.Actions {
		if p.ActionScope.Actions[i] != other.ActionScope.Actions[i] {
			return false
		}
	}
	if p.ResourceScope.Resource != other.ResourceScope.Resource {
		return false
	}
	return p.Condition.Equal(other.Condition)
}

// Serialize renders the policy as canonical APL text.
// The output parses back to a structurally equal policy.
func (p *Policy) Serialize() string {
	var sb strings.Builder

	if p.ID != "" {
		sb.WriteString("@id(")
		sb.WriteString(strconv.Quote(p.ID))
		sb.WriteString(")\n")
	}

	sb.WriteString(string(p.Effect))
	sb.WriteString("(principal, ")

	switch {
	case p.ActionScope.IsAny():
		sb.WriteString("action")
	case len(p.ActionScope.Actions) == 1:
		sb.WriteString("action == ")
		sb.WriteString(p.ActionScope.Actions[0])
	default:
		sb.WriteString("action in [")
		sb.WriteString(strings.Join(p.ActionScope.Actions, ", "))
		sb.WriteString("]")
	}

	sb.WriteString(", ")
	if p.ResourceScope.IsAny() {
		sb.WriteString("resource")
	} else {
		sb.WriteString("resource == ")
		sb.WriteString(strconv.Quote(p.ResourceScope.Resource))
	}
	sb.WriteString(")")

	if p.Condition != nil {
		sb.WriteString(" when { ")
		sb.WriteString(p.Condition.String())
		sb.WriteString(" }")
	}

	sb.WriteString(";")
	return sb.String()
}
