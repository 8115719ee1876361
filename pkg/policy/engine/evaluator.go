package engine

import (
	"strings"

	"arbiter-hq/arbiter/pkg/apl/ast"
)

// EvaluateCondition evaluates a condition expression against the principal's
// tags and the request context. It is a pure recursive descent with
// short-circuit boolean operators: a false hasTag guard prevents the guarded
// getTag from ever being evaluated.
//
// A nil condition always holds (the policy matches unconditionally within
// its scope).
func EvaluateCondition(expr *ast.ExprNode, tags map[string]string, input map[string]ast.Value) (bool, *EvaluationError) {
	if expr == nil {
		return true, nil
	}
	e := evaluator{tags: tags, input: input}
	return e.evalBool(expr)
}

// evaluator carries the read-only request state through the recursion.
type evaluator struct {
	tags  map[string]string
	input map[string]ast.Value
}

// evalBool evaluates an expression in boolean position.
func (e *evaluator) evalBool(expr *ast.ExprNode) (bool, *EvaluationError) {
	switch expr.Kind {
	case ast.ExprKindLiteral:
		if expr.Value.Type != ast.ValueTypeBoolean {
			return false, evalErrorf(ErrorKindTypeMismatch, "literal %s used as a condition", expr.Value)
		}
		return expr.Value.Bool, nil

	case ast.ExprKindAnd:
		for _, child := range expr.Children {
			ok, err := e.evalBool(child)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case ast.ExprKindOr:
		for _, child := range expr.Children {
			ok, err := e.evalBool(child)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case ast.ExprKindNot:
		ok, err := e.evalBool(expr.Children[0])
		if err != nil {
			return false, err
		}
		return !ok, nil

	case ast.ExprKindHasTag:
		_, present := e.tags[expr.Tag]
		return present, nil

	case ast.ExprKindHas:
		_, present := e.input[expr.Field]
		return present, nil

	case ast.ExprKindCompare:
		return e.evalCompare(expr)

	case ast.ExprKindIn:
		return e.evalIn(expr)

	case ast.ExprKindLike:
		return e.evalLike(expr)

	default:
		return false, evalErrorf(ErrorKindInvalidExpression, "%s node in boolean position", expr.Kind)
	}
}

// evalValue evaluates an expression in operand position.
// Boolean sub-expressions wrap their outcome as a boolean value.
func (e *evaluator) evalValue(expr *ast.ExprNode) (ast.Value, *EvaluationError) {
	switch expr.Kind {
	case ast.ExprKindLiteral:
		return expr.Value, nil

	case ast.ExprKindField:
		v, present := e.input[expr.Field]
		if !present {
			return ast.Value{}, evalErrorf(ErrorKindMissingField,
				"context.input.%s is absent from the request; guard with has(context.input.%s)",
				expr.Field, expr.Field)
		}
		return v, nil

	case ast.ExprKindGetTag:
		v, present := e.tags[expr.Tag]
		if !present {
			return ast.Value{}, evalErrorf(ErrorKindMissingTag,
				"principal has no tag %q; guard with principal.hasTag(%q)", expr.Tag, expr.Tag)
		}
		return ast.StringValue(v), nil

	default:
		ok, err := e.evalBool(expr)
		if err != nil {
			return ast.Value{}, err
		}
		return ast.BoolValue(ok), nil
	}
}

func (e *evaluator) evalCompare(expr *ast.ExprNode) (bool, *EvaluationError) {
	left, err := e.evalValue(expr.Left)
	if err != nil {
		return false, err
	}
	right, err := e.evalValue(expr.Right)
	if err != nil {
		return false, err
	}

	switch expr.Op {
	case ast.OperatorEqual:
		return left.Equal(right), nil
	case ast.OperatorNotEqual:
		return !left.Equal(right), nil
	}

	// Ordering operators require numbers on both sides; no coercion.
	if left.Type != ast.ValueTypeNumber {
		return false, evalErrorf(ErrorKindTypeMismatch,
			"operator %q requires a number, found %s value", expr.Op, left.Type)
	}
	if right.Type != ast.ValueTypeNumber {
		return false, evalErrorf(ErrorKindTypeMismatch,
			"operator %q requires a number, found %s value", expr.Op, right.Type)
	}

	switch expr.Op {
	case ast.OperatorLessThan:
		return left.Num < right.Num, nil
	case ast.OperatorLessEqual:
		return left.Num <= right.Num, nil
	case ast.OperatorGreaterThan:
		return left.Num > right.Num, nil
	case ast.OperatorGreaterEqual:
		return left.Num >= right.Num, nil
	default:
		return false, evalErrorf(ErrorKindInvalidExpression, "unknown operator %q", expr.Op)
	}
}

func (e *evaluator) evalIn(expr *ast.ExprNode) (bool, *EvaluationError) {
	left, err := e.evalValue(expr.Left)
	if err != nil {
		return false, err
	}
	for _, elem := range expr.Set {
		if left.Equal(elem) {
			return true, nil
		}
	}
	return false, nil
}

func (e *evaluator) evalLike(expr *ast.ExprNode) (bool, *EvaluationError) {
	left, err := e.evalValue(expr.Left)
	if err != nil {
		return false, err
	}
	if left.Type != ast.ValueTypeString {
		return false, evalErrorf(ErrorKindTypeMismatch,
			"operator %q requires a string, found %s value", "like", left.Type)
	}
	return likeMatch(left.Str, expr.Pattern), nil
}

// likeMatch performs case-sensitive wildcard matching. "*" matches any run of
// characters (including none) and may appear anywhere in the pattern;
// "*value*" is the common substring form.
func likeMatch(s, pattern string) bool {
	segments := strings.Split(pattern, "*")

	// No wildcard: exact match.
	if len(segments) == 1 {
		return s == pattern
	}

	// Anchored prefix.
	if first := segments[0]; first != "" {
		if !strings.HasPrefix(s, first) {
			return false
		}
		s = s[len(first):]
	}

	// Anchored suffix.
	last := segments[len(segments)-1]
	if last != "" {
		if !strings.HasSuffix(s, last) {
			return false
		}
		s = s[:len(s)-len(last)]
	}

	// Interior segments must appear in order.
	for _, seg := range segments[1 : len(segments)-1] {
		if seg == "" {
			continue
		}
		idx := strings.Index(s, seg)
		if idx < 0 {
			return false
		}
		s = s[idx+len(seg):]
	}
	return true
}
