// Package apl provides parsing, validation, and serialization for the
// Arbiter Policy Language (APL).
//
// APL is a Cedar-like declarative language for authorizing tool invocations
// made through a gateway. A policy permits or forbids a principal invoking an
// action on a resource, optionally guarded by a condition over the
// principal's tags and the call's input parameters.
//
// The package is organized into subpackages:
//
//   - ast: Abstract Syntax Tree definitions and canonical serialization
//   - parser: lexing and parsing of APL text
//   - validator: schema binding (unknown/mistyped parameter rejection)
//   - errors: rich error types with location and suggestions
//
// ParseAndValidate is the path every policy takes into the store, whether
// hand-written or generated by the NL compiler.
package apl

import (
	"arbiter-hq/arbiter/pkg/apl/ast"
	"arbiter-hq/arbiter/pkg/apl/parser"
	"arbiter-hq/arbiter/pkg/apl/validator"
	"arbiter-hq/arbiter/pkg/schema"
)

// ParseAndValidate parses policy text and binds it against the schema.
// It returns the AST if successful, or a *errors.Error / *errors.ErrorList
// describing the offending clause. No policy that fails here is ever stored.
func ParseAndValidate(text, file string, snap *schema.Snapshot) (*ast.Policy, error) {
	p := parser.NewParser()
	policy, err := p.Parse(text, file)
	if err != nil {
		return nil, err
	}

	v := validator.NewValidator(snap)
	if err := v.Validate(policy); err != nil {
		return nil, err
	}

	policy.SourceText = text
	return policy, nil
}

// ParseAndValidateAll parses a multi-policy document (for example one .apl
// file) and validates every policy in it.
func ParseAndValidateAll(text, file string, snap *schema.Snapshot) ([]*ast.Policy, error) {
	p := parser.NewParser()
	policies, err := p.ParseAll(text, file)
	if err != nil {
		return nil, err
	}

	v := validator.NewValidator(snap)
	for _, policy := range policies {
		if err := v.Validate(policy); err != nil {
			return nil, err
		}
		policy.SourceText = policy.Serialize()
	}
	return policies, nil
}

// Parse parses policy text without schema binding.
// Use this to inspect the AST before validation.
func Parse(text, file string) (*ast.Policy, error) {
	return parser.NewParser().Parse(text, file)
}

// Validate binds a parsed policy against the schema.
func Validate(policy *ast.Policy, snap *schema.Snapshot) error {
	return validator.NewValidator(snap).Validate(policy)
}
