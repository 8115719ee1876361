package validator

import (
	"fmt"

	"arbiter-hq/arbiter/pkg/apl/ast"
	aplErrors "arbiter-hq/arbiter/pkg/apl/errors"
	"arbiter-hq/arbiter/pkg/schema"
)

// Validator binds parsed policies against a schema snapshot.
type Validator struct {
	schema *schema.Snapshot
}

// NewValidator creates a validator bound to one schema snapshot.
func NewValidator(snap *schema.Snapshot) *Validator {
	return &Validator{schema: snap}
}

// Validate checks the policy's action scope and condition against the schema.
// All problems are accumulated and returned as a single *errors.ErrorList.
func (v *Validator) Validate(policy *ast.Policy) error {
	errs := aplErrors.NewErrorList()

	for _, actionID := range policy.ActionScope.Actions {
		if _, ok := v.schema.Lookup(actionID); !ok {
			errs.Add(&aplErrors.Error{
				Type:       aplErrors.ErrorTypeUnknownAction,
				Message:    fmt.Sprintf("unknown action %q", actionID),
				Location:   policy.Location,
				Suggestion: "declare the action in the schema catalogue before referencing it",
			})
		}
	}

	// Field binding needs a concrete action set; any-scoped policies skip it.
	if policy.Condition != nil && !policy.ActionScope.IsAny() && !errs.HasErrors() {
		v.checkExpr(policy.Condition, policy.ActionScope.Actions, errs)
	}

	return errs.ToError()
}

// paramType resolves the declared type of a field across every action in
// scope. The field must be declared for each action, with one common type.
func (v *Validator) paramType(field string, actions []string, loc ast.Location, errs *aplErrors.ErrorList) (schema.ParamType, bool) {
	var common schema.ParamType
	for i, actionID := range actions {
		spec, ok := v.schema.Lookup(actionID)
		if !ok {
			continue // already reported as unknown action
		}
		pt, declared := spec.ParamType(field)
		if !declared {
			errs.Add(&aplErrors.Error{
				Type:     aplErrors.ErrorTypeUnknownParam,
				Message:  fmt.Sprintf("parameter %q is not declared for action %q", field, actionID),
				Location: loc,
				Clause:   "context.input." + field,
			})
			return "", false
		}
		if i == 0 {
			common = pt
		} else if pt != common {
			errs.Add(&aplErrors.Error{
				Type:     aplErrors.ErrorTypeTypeMismatch,
				Message:  fmt.Sprintf("parameter %q has type %s for action %q but %s for earlier actions in scope", field, pt, actionID, common),
				Location: loc,
			})
			return "", false
		}
	}
	return common, common != ""
}

func (v *Validator) checkExpr(expr *ast.ExprNode, actions []string, errs *aplErrors.ErrorList) {
	if expr == nil {
		return
	}

	switch expr.Kind {
	case ast.ExprKindAnd, ast.ExprKindOr, ast.ExprKindNot:
		for _, child := range expr.Children {
			v.checkExpr(child, actions, errs)
		}

	case ast.ExprKindCompare:
		v.checkCompare(expr, actions, errs)

	case ast.ExprKindIn:
		v.checkIn(expr, actions, errs)

	case ast.ExprKindLike:
		v.checkLike(expr, actions, errs)

	case ast.ExprKindField, ast.ExprKindHas:
		// Bare existence/field reference: only declaration matters.
		v.paramType(expr.Field, actions, expr.Location, errs)

	case ast.ExprKindLiteral, ast.ExprKindGetTag, ast.ExprKindHasTag:
		// Nothing to bind.
	}
}

// operandType determines the static type of a comparison operand, consulting
// the schema for fields. Returns ok=false when the type is unknown (for
// example a parenthesized boolean sub-expression).
func (v *Validator) operandType(expr *ast.ExprNode, actions []string, errs *aplErrors.ErrorList) (schema.ParamType, bool) {
	switch expr.Kind {
	case ast.ExprKindField:
		return v.paramType(expr.Field, actions, expr.Location, errs)
	case ast.ExprKindGetTag:
		return schema.TypeString, true // tags are string claims
	case ast.ExprKindLiteral:
		switch expr.Value.Type {
		case ast.ValueTypeString:
			return schema.TypeString, true
		case ast.ValueTypeNumber:
			return schema.TypeNumber, true
		case ast.ValueTypeBoolean:
			return schema.TypeBoolean, true
		case ast.ValueTypeList:
			return schema.TypeList, true
		}
	}
	return "", false
}

func (v *Validator) checkCompare(expr *ast.ExprNode, actions []string, errs *aplErrors.ErrorList) {
	before := errs.Count()
	leftType, leftOK := v.operandType(expr.Left, actions, errs)
	rightType, rightOK := v.operandType(expr.Right, actions, errs)
	if errs.Count() > before {
		return // undeclared field already reported
	}

	if !expr.Left.IsLeaf() {
		v.checkExpr(expr.Left, actions, errs)
	}
	if !expr.Right.IsLeaf() {
		v.checkExpr(expr.Right, actions, errs)
	}

	if expr.Op.IsOrdering() {
		for _, side := range []struct {
			t  schema.ParamType
			ok bool
		}{{leftType, leftOK}, {rightType, rightOK}} {
			if side.ok && side.t != schema.TypeNumber {
				errs.Add(&aplErrors.Error{
					Type:       aplErrors.ErrorTypeTypeMismatch,
					Message:    fmt.Sprintf("operator %q requires number operands, found %s", expr.Op, side.t),
					Location:   expr.Location,
					Suggestion: "ordering comparisons apply only to number parameters",
				})
				return
			}
		}
		return
	}

	// Equality across two statically known, different types can never hold.
	if leftOK && rightOK && leftType != rightType {
		errs.Add(&aplErrors.Error{
			Type:     aplErrors.ErrorTypeTypeMismatch,
			Message:  fmt.Sprintf("operator %q compares %s with %s", expr.Op, leftType, rightType),
			Location: expr.Location,
		})
	}
}

func (v *Validator) checkIn(expr *ast.ExprNode, actions []string, errs *aplErrors.ErrorList) {
	before := errs.Count()
	leftType, leftOK := v.operandType(expr.Left, actions, errs)
	if errs.Count() > before {
		return
	}
	if !expr.Left.IsLeaf() {
		v.checkExpr(expr.Left, actions, errs)
	}
	if !leftOK {
		return
	}

	for _, elem := range expr.Set {
		var elemType schema.ParamType
		switch elem.Type {
		case ast.ValueTypeString:
			elemType = schema.TypeString
		case ast.ValueTypeNumber:
			elemType = schema.TypeNumber
		case ast.ValueTypeBoolean:
			elemType = schema.TypeBoolean
		default:
			elemType = schema.TypeList
		}
		if elemType != leftType {
			errs.Add(&aplErrors.Error{
				Type:     aplErrors.ErrorTypeTypeMismatch,
				Message:  fmt.Sprintf("in-set element %s does not match operand type %s", elem, leftType),
				Location: expr.Location,
			})
			return
		}
	}
}

func (v *Validator) checkLike(expr *ast.ExprNode, actions []string, errs *aplErrors.ErrorList) {
	before := errs.Count()
	leftType, leftOK := v.operandType(expr.Left, actions, errs)
	if errs.Count() > before {
		return
	}
	if !expr.Left.IsLeaf() {
		v.checkExpr(expr.Left, actions, errs)
	}

	if leftOK && leftType != schema.TypeString {
		errs.Add(&aplErrors.Error{
			Type:       aplErrors.ErrorTypeTypeMismatch,
			Message:    fmt.Sprintf("operator %q requires a string operand, found %s", "like", leftType),
			Location:   expr.Location,
			Suggestion: "like patterns apply only to string parameters",
		})
	}
}
