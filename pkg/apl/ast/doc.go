// Package ast provides Abstract Syntax Tree (AST) definitions for the Arbiter Policy Language (APL).
//
// The AST represents the parsed structure of an APL policy, enabling validation,
// serialization, and evaluation. All AST nodes preserve source location information
// for precise error reporting.
//
// # Core Types
//
// Policy: Root AST node with effect, status, scopes, and condition
//
// ExprNode: Condition expression (literal, field, tag access, comparison, logical)
//
// Value: Tagged variant value (string, number, boolean, list)
//
// Location: Source location (file, line, column)
//
// # AST Structure
//
// The AST mirrors the APL concrete syntax:
//
//	Policy
//	├── Effect (permit | forbid)
//	├── Status (active | inactive)
//	├── ActionScope (any | single action id | set of action ids)
//	├── ResourceScope (any | exact resource string)
//	└── Condition (*ExprNode)
//	    ├── Logical (and/or/not with children)
//	    ├── Comparison (left op right)
//	    ├── Set membership (left in [literals])
//	    ├── Wildcard match (left like "pattern")
//	    ├── Existence (has(context.input.x), principal.hasTag("x"))
//	    └── Leaves (literal, context.input field, principal.getTag("x"))
//
// # Canonical Serialization
//
// Policy.Serialize and ExprNode.String render canonical APL text. Parsing the
// serialized form of any policy yields a structurally equal AST, which is the
// round-trip guarantee the NL compiler relies on.
//
// # Immutability
//
// AST nodes should be treated as immutable after construction. The parser
// builds the AST once and the evaluator inspects it without modification.
package ast
