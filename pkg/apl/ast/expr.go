package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// ExprKind represents the kind of condition expression node in APL.
type ExprKind string

const (
	ExprKindLiteral ExprKind = "literal" // Literal value
	ExprKindField   ExprKind = "field"   // context.input.<name> access
	ExprKindGetTag  ExprKind = "get_tag" // principal.getTag("name")
	ExprKindHasTag  ExprKind = "has_tag" // principal.hasTag("name")
	ExprKindHas     ExprKind = "has"     // has(context.input.<name>)
	ExprKindCompare ExprKind = "compare" // left op right
	ExprKindIn      ExprKind = "in"      // left in [literals]
	ExprKindLike    ExprKind = "like"    // left like "pattern"
	ExprKindAnd     ExprKind = "and"     // AND of children
	ExprKindOr      ExprKind = "or"      // OR of children
	ExprKindNot     ExprKind = "not"     // NOT of single child
)

// Operator represents a comparison operator in APL conditions.
type Operator string

const (
	OperatorEqual        Operator = "=="
	OperatorNotEqual     Operator = "!="
	OperatorLessThan     Operator = "<"
	OperatorLessEqual    Operator = "<="
	OperatorGreaterThan  Operator = ">"
	OperatorGreaterEqual Operator = ">="
)

// IsOrdering returns true for operators that require numeric operands.
func (op Operator) IsOrdering() bool {
	switch op {
	case OperatorLessThan, OperatorLessEqual, OperatorGreaterThan, OperatorGreaterEqual:
		return true
	default:
		return false
	}
}

// ExprNode represents a condition expression in the AST.
// The fields used depend on Kind:
//
//   - Literal:        Value
//   - Field, Has:     Field (the context.input parameter name)
//   - GetTag, HasTag: Tag
//   - Compare:        Op, Left, Right
//   - In:             Left, Set
//   - Like:           Left, Pattern
//   - And, Or:        Children (two or more)
//   - Not:            Children (exactly one)
type ExprNode struct {
	Kind     ExprKind
	Op       Operator
	Left     *ExprNode
	Right    *ExprNode
	Children []*ExprNode
	Field    string
	Tag      string
	Value    Value
	Set      []Value
	Pattern  string
	Location Location
}

// Literal constructs a literal expression node.
func Literal(v Value) *ExprNode {
	return &ExprNode{Kind: ExprKindLiteral, Value: v}
}

// Field constructs a context.input field access node.
func Field(name string) *ExprNode {
	return &ExprNode{Kind: ExprKindField, Field: name}
}

// GetTag constructs a principal.getTag access node.
func GetTag(name string) *ExprNode {
	return &ExprNode{Kind: ExprKindGetTag, Tag: name}
}

// HasTag constructs a principal.hasTag check node.
func HasTag(name string) *ExprNode {
	return &ExprNode{Kind: ExprKindHasTag, Tag: name}
}

// Has constructs a has(context.input.<name>) existence check node.
func Has(field string) *ExprNode {
	return &ExprNode{Kind: ExprKindHas, Field: field}
}

// Compare constructs a comparison node.
func Compare(op Operator, left, right *ExprNode) *ExprNode {
	return &ExprNode{Kind: ExprKindCompare, Op: op, Left: left, Right: right}
}

// In constructs a set membership node.
func In(left *ExprNode, set []Value) *ExprNode {
	return &ExprNode{Kind: ExprKindIn, Left: left, Set: set}
}

// Like constructs a wildcard match node.
func Like(left *ExprNode, pattern string) *ExprNode {
	return &ExprNode{Kind: ExprKindLike, Left: left, Pattern: pattern}
}

// And constructs a conjunction of two or more children.
func And(children ...*ExprNode) *ExprNode {
	return &ExprNode{Kind: ExprKindAnd, Children: children}
}

// Or constructs a disjunction of two or more children.
func Or(children ...*ExprNode) *ExprNode {
	return &ExprNode{Kind: ExprKindOr, Children: children}
}

// Not constructs a negation of a single child.
func Not(child *ExprNode) *ExprNode {
	return &ExprNode{Kind: ExprKindNot, Children: []*ExprNode{child}}
}

// IsLeaf returns true for nodes with no sub-expressions.
func (e *ExprNode) IsLeaf() bool {
	switch e.Kind {
	case ExprKindLiteral, ExprKindField, ExprKindGetTag, ExprKindHasTag, ExprKindHas:
		return true
	default:
		return false
	}
}

// Fields returns every context.input parameter name the expression references,
// in first-appearance order without duplicates. The parser uses this to bind
// field references against the schema at policy-creation time.
func (e *ExprNode) Fields() []string {
	var out []string
	seen := make(map[string]bool)
	e.walkFields(func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	})
	return out
}

func (e *ExprNode) walkFields(fn func(string)) {
	if e == nil {
		return
	}
	switch e.Kind {
	case ExprKindField, ExprKindHas:
		fn(e.Field)
	}
	e.Left.walkFields(fn)
	e.Right.walkFields(fn)
	for _, child := range e.Children {
		child.walkFields(fn)
	}
}

// Equal reports structural equality of two expression trees.
// Locations are ignored; the round-trip law is stated in terms of this method.
func (e *ExprNode) Equal(other *ExprNode) bool {
	if e == nil || other == nil {
		return e == other
	}
	if e.Kind != other.Kind || e.Op != other.Op ||
		e.Field != other.Field || e.Tag != other.Tag || e.Pattern != other.Pattern {
		return false
	}
	if !e.Value.Equal(other.Value) {
		return false
	}
	if len(e.Set) != len(other.Set) {
		return false
	}
	for i := range e.Set {
		if !e.Set[i].Equal(other.Set[i]) {
			return false
		}
	}
	if !e.Left.Equal(other.Left) || !e.Right.Equal(other.Right) {
		return false
	}
	if len(e.Children) != len(other.Children) {
		return false
	}
	for i := range e.Children {
		if !e.Children[i].Equal(other.Children[i]) {
			return false
		}
	}
	return true
}

// String renders the expression as canonical APL text.
// Nested logical operators are parenthesized so the output re-parses to a
// structurally equal tree.
func (e *ExprNode) String() string {
	var sb strings.Builder
	e.write(&sb)
	return sb.String()
}

func (e *ExprNode) write(sb *strings.Builder) {
	switch e.Kind {
	case ExprKindLiteral:
		sb.WriteString(e.Value.String())

	case ExprKindField:
		sb.WriteString("context.input.")
		sb.WriteString(e.Field)

	case ExprKindGetTag:
		fmt.Fprintf(sb, "principal.getTag(%s)", strconv.Quote(e.Tag))

	case ExprKindHasTag:
		fmt.Fprintf(sb, "principal.hasTag(%s)", strconv.Quote(e.Tag))

	case ExprKindHas:
		fmt.Fprintf(sb, "has(context.input.%s)", e.Field)

	case ExprKindCompare:
		e.writeOperand(sb, e.Left)
		fmt.Fprintf(sb, " %s ", e.Op)
		e.writeOperand(sb, e.Right)

	case ExprKindIn:
		e.writeOperand(sb, e.Left)
		sb.WriteString(" in [")
		for i, v := range e.Set {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(v.String())
		}
		sb.WriteString("]")

	case ExprKindLike:
		e.writeOperand(sb, e.Left)
		fmt.Fprintf(sb, " like %s", strconv.Quote(e.Pattern))

	case ExprKindAnd:
		e.writeLogical(sb, "&&")

	case ExprKindOr:
		e.writeLogical(sb, "||")

	case ExprKindNot:
		sb.WriteString("!(")
		e.Children[0].write(sb)
		sb.WriteString(")")

	default:
		fmt.Fprintf(sb, "<invalid expr kind %q>", e.Kind)
	}
}

// writeOperand writes a comparison operand, parenthesizing non-leaf operands.
func (e *ExprNode) writeOperand(sb *strings.Builder, operand *ExprNode) {
	if operand.IsLeaf() {
		operand.write(sb)
		return
	}
	sb.WriteString("(")
	operand.write(sb)
	sb.WriteString(")")
}

func (e *ExprNode) writeLogical(sb *strings.Builder, op string) {
	for i, child := range e.Children {
		if i > 0 {
			sb.WriteString(" ")
			sb.WriteString(op)
			sb.WriteString(" ")
		}
		needsParens := child.Kind == ExprKindAnd || child.Kind == ExprKindOr
		if needsParens {
			sb.WriteString("(")
		}
		child.write(sb)
		if needsParens {
			sb.WriteString(")")
		}
	}
}
