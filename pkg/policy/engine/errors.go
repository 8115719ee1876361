package engine

import "fmt"

// ErrorKind categorizes condition evaluation errors.
type ErrorKind string

const (
	// ErrorKindMissingTag is getTag on a tag absent from the principal.
	// Callers must guard with hasTag first; an unguarded access is an error,
	// never false.
	ErrorKindMissingTag ErrorKind = "missing_tag"

	// ErrorKindMissingField is a direct comparison on a context.input field
	// absent from the request. Existence checks use has() instead.
	ErrorKindMissingField ErrorKind = "missing_field"

	// ErrorKindTypeMismatch is an operator applied to a value of the wrong
	// runtime type (for example an ordering comparison on a string).
	ErrorKindTypeMismatch ErrorKind = "type_mismatch"

	// ErrorKindInvalidExpression is a structurally invalid expression node.
	// Parse-time validation makes this unreachable for stored policies.
	ErrorKindInvalidExpression ErrorKind = "invalid_expression"
)

// EvaluationError is a condition evaluation failure. It is always scoped to a
// single policy: the engine treats the policy as not matching and the overall
// evaluation completes.
type EvaluationError struct {
	Kind   ErrorKind
	Detail string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation error (%s): %s", e.Kind, e.Detail)
}

func evalErrorf(kind ErrorKind, format string, args ...interface{}) *EvaluationError {
	return &EvaluationError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
