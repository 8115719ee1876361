package engine

import (
	"time"

	"arbiter-hq/arbiter/pkg/apl/ast"
)

// Mode controls whether a computed denial actually blocks the call.
// The mode is engine-wide configuration carried into each evaluation call,
// not per-policy and not process-global state.
type Mode string

const (
	// ModeEnforce blocks calls that are denied.
	ModeEnforce Mode = "enforce"

	// ModeLogOnly computes and records the same decision but instructs the
	// gateway to proceed regardless of the outcome.
	ModeLogOnly Mode = "log_only"
)

// Valid returns true for a recognized mode.
func (m Mode) Valid() bool {
	return m == ModeEnforce || m == ModeLogOnly
}

// Request is a single tool-invocation authorization request, constructed by
// the gateway entirely from upstream-validated data. The engine never
// validates tokens; PrincipalTags are the claims of an already-authenticated
// principal.
type Request struct {
	// PrincipalTags are the string-valued claims of the caller.
	PrincipalTags map[string]string

	// ActionID is the invoked tool method (<TargetName>___<method_name>).
	ActionID string

	// Resource is the ARN-like identifier of the gateway instance.
	Resource string

	// ContextInput holds the call's input parameters, keyed by the names
	// declared in the schema for ActionID.
	ContextInput map[string]ast.Value
}

// NewRequest builds a Request, converting raw JSON-decoded input values into
// the tagged Value representation. Unconvertible values are dropped with an
// error so a malformed gateway payload cannot reach the evaluator.
func NewRequest(tags map[string]string, actionID, resource string, input map[string]interface{}) (Request, error) {
	converted := make(map[string]ast.Value, len(input))
	for name, raw := range input {
		v, err := ast.FromGo(raw)
		if err != nil {
			return Request{}, &EvaluationError{
				Kind:   ErrorKindTypeMismatch,
				Detail: "context.input." + name + ": " + err.Error(),
			}
		}
		converted[name] = v
	}
	return Request{
		PrincipalTags: tags,
		ActionID:      actionID,
		Resource:      resource,
		ContextInput:  converted,
	}, nil
}

// PolicyError records an evaluation error scoped to one policy's condition.
// The offending policy is treated as not matching; the error is preserved on
// the decision for audit.
type PolicyError struct {
	PolicyID string
	Err      *EvaluationError
}

// Decision is the result of evaluating one request against a policy snapshot.
type Decision struct {
	// Allowed is the raw authorization outcome.
	Allowed bool

	// MatchedForbidIDs lists every forbid policy whose condition held.
	MatchedForbidIDs []string

	// MatchedPermitIDs lists every permit policy whose condition held.
	// Populated even when a forbid overrides, for audit completeness.
	MatchedPermitIDs []string

	// PolicyErrors lists per-policy condition evaluation failures.
	PolicyErrors []PolicyError

	// ModeApplied is the engine mode in effect for this decision.
	ModeApplied Mode

	// CandidateCount is how many active, in-scope policies were evaluated.
	CandidateCount int

	// EvaluationTime is the wall time spent computing the decision.
	EvaluationTime time.Duration
}

// ShouldBlock tells the gateway caller whether to block the invocation.
// In log_only mode a denial is recorded but never blocks.
func (d Decision) ShouldBlock() bool {
	return !d.Allowed && d.ModeApplied == ModeEnforce
}

// Denied returns true when the raw outcome is a denial, regardless of mode.
func (d Decision) Denied() bool {
	return !d.Allowed
}
