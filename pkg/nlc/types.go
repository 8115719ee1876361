package nlc

import (
	"fmt"

	"arbiter-hq/arbiter/pkg/apl/ast"
)

// Intent is a resolved, structured authorization intent for one statement.
type Intent struct {
	// Effect is permit or forbid.
	Effect ast.Effect

	// ActionIDs are the canonical action ids the intent applies to.
	ActionIDs []string

	// Condition is the synthesized condition tree; nil for unconditional
	// intents.
	Condition *ast.ExprNode
}

// GeneratedPolicy is one compiled policy together with its canonical text.
// The text has already been re-parsed successfully; submitting it through
// the policy CRUD path cannot fail on syntax.
type GeneratedPolicy struct {
	Policy *ast.Policy
	Text   string
}

// Warning reports a statement that could not be compiled. Warnings are not
// errors: compilation of the remaining statements proceeds.
type Warning struct {
	// StatementIndex is the zero-based index of the source statement.
	StatementIndex int

	// Statement is the source statement text.
	Statement string

	// Reason explains why the statement was not compiled.
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("statement %d (%q): %s", w.StatementIndex, w.Statement, w.Reason)
}
