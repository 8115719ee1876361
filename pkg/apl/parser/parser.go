package parser

import (
	"fmt"
	"strings"

	"arbiter-hq/arbiter/pkg/apl/ast"
	aplErrors "arbiter-hq/arbiter/pkg/apl/errors"
)

// Parser parses APL policy text into Abstract Syntax Trees.
// It performs syntactic analysis only; schema binding (unknown or mistyped
// parameter rejection) is the validator's job.
type Parser struct {
	maxDepth int // Maximum condition nesting depth
}

// NewParser creates a new parser with default configuration.
func NewParser() *Parser {
	return &Parser{
		maxDepth: 16,
	}
}

// WithMaxDepth sets the maximum condition nesting depth.
func (p *Parser) WithMaxDepth(depth int) *Parser {
	p.maxDepth = depth
	return p
}

// Parse parses a single policy from the given text.
// Trailing input after the policy's terminating semicolon is an error.
func (p *Parser) Parse(text, file string) (*ast.Policy, error) {
	policies, err := p.ParseAll(text, file)
	if err != nil {
		return nil, err
	}
	if len(policies) != 1 {
		return nil, &aplErrors.Error{
			Type:    aplErrors.ErrorTypeSyntax,
			Message: fmt.Sprintf("expected exactly one policy, found %d", len(policies)),
			Location: ast.Location{
				File: file,
				Line: 1, Column: 1,
			},
		}
	}
	return policies[0], nil
}

// ParseAll parses zero or more semicolon-terminated policies from the text.
// Used by the file source, where one .apl file may hold several policies.
func (p *Parser) ParseAll(text, file string) ([]*ast.Policy, error) {
	lex := newLexer(text, file)
	tokens, err := lex.tokenize()
	if err != nil {
		return nil, err
	}

	state := &parseState{tokens: tokens, maxDepth: p.maxDepth, source: text}

	var policies []*ast.Policy
	for !state.peek().is(";") && state.peek().kind != tokenEOF {
		policy, err := state.parsePolicy()
		if err != nil {
			return nil, err
		}
		policy.SourceFile = file
		policies = append(policies, policy)
	}

	if tok := state.peek(); tok.kind != tokenEOF {
		return nil, state.errorf(tok, "unexpected %s after policy", tok.describe())
	}

	return policies, nil
}

// parseState tracks position in the token stream during a parse.
type parseState struct {
	tokens   []token
	pos      int
	maxDepth int
	source   string
}

func (s *parseState) peek() token {
	return s.tokens[s.pos]
}

func (s *parseState) take() token {
	tok := s.tokens[s.pos]
	if tok.kind != tokenEOF {
		s.pos++
	}
	return tok
}

// expect consumes the next token if it matches text, otherwise errors.
func (s *parseState) expect(text string) (token, error) {
	tok := s.peek()
	if !tok.is(text) {
		return token{}, s.errorf(tok, "expected %q, found %s", text, tok.describe())
	}
	return s.take(), nil
}

func (s *parseState) errorf(tok token, format string, args ...interface{}) error {
	return &aplErrors.Error{
		Type:     aplErrors.ErrorTypeSyntax,
		Message:  fmt.Sprintf(format, args...),
		Location: tok.loc,
		Clause:   s.clauseAt(tok.loc),
	}
}

// clauseAt returns the source line containing the location, trimmed.
func (s *parseState) clauseAt(loc ast.Location) string {
	if loc.Line <= 0 {
		return ""
	}
	lines := strings.Split(s.source, "\n")
	if loc.Line > len(lines) {
		return ""
	}
	return strings.TrimSpace(lines[loc.Line-1])
}

// parsePolicy parses one [@id(...)] permit|forbid (...) [when {...}] ; clause.
func (s *parseState) parsePolicy() (*ast.Policy, error) {
	policy := &ast.Policy{
		Status:   ast.StatusActive,
		Location: s.peek().loc,
	}

	if s.peek().is("@") {
		id, err := s.parseIDAnnotation()
		if err != nil {
			return nil, err
		}
		policy.ID = id
	}

	head := s.take()
	switch {
	case head.is(string(ast.EffectPermit)):
		policy.Effect = ast.EffectPermit
	case head.is(string(ast.EffectForbid)):
		policy.Effect = ast.EffectForbid
	default:
		return nil, s.errorf(head, "expected %q or %q, found %s", "permit", "forbid", head.describe())
	}

	if _, err := s.expect("("); err != nil {
		return nil, err
	}
	if _, err := s.expect("principal"); err != nil {
		return nil, err
	}
	if _, err := s.expect(","); err != nil {
		return nil, err
	}

	actionScope, err := s.parseActionScope()
	if err != nil {
		return nil, err
	}
	policy.ActionScope = actionScope

	if _, err := s.expect(","); err != nil {
		return nil, err
	}

	resourceScope, err := s.parseResourceScope()
	if err != nil {
		return nil, err
	}
	policy.ResourceScope = resourceScope

	if _, err := s.expect(")"); err != nil {
		return nil, err
	}

	if s.peek().is("when") {
		s.take()
		if _, err := s.expect("{"); err != nil {
			return nil, err
		}
		cond, err := s.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if _, err := s.expect("}"); err != nil {
			return nil, err
		}
		policy.Condition = cond
	}

	if _, err := s.expect(";"); err != nil {
		return nil, err
	}

	return policy, nil
}

func (s *parseState) parseIDAnnotation() (string, error) {
	s.take() // @
	name := s.take()
	if !name.is("id") {
		return "", s.errorf(name, "unknown annotation %q, only @id is supported", name.text)
	}
	if _, err := s.expect("("); err != nil {
		return "", err
	}
	idTok := s.take()
	if idTok.kind != tokenString || idTok.text == "" {
		return "", s.errorf(idTok, "@id requires a non-empty string argument, found %s", idTok.describe())
	}
	if _, err := s.expect(")"); err != nil {
		return "", err
	}
	return idTok.text, nil
}

// parseActionScope parses: action | action == Id | action in [Id, ...]
func (s *parseState) parseActionScope() (ast.ActionScope, error) {
	if _, err := s.expect("action"); err != nil {
		return ast.ActionScope{}, err
	}

	switch {
	case s.peek().is("=="):
		s.take()
		id, err := s.parseActionID()
		if err != nil {
			return ast.ActionScope{}, err
		}
		return ast.ActionScope{Actions: []string{id}}, nil

	case s.peek().is("in"):
		s.take()
		if _, err := s.expect("["); err != nil {
			return ast.ActionScope{}, err
		}
		var ids []string
		for {
			id, err := s.parseActionID()
			if err != nil {
				return ast.ActionScope{}, err
			}
			ids = append(ids, id)
			if s.peek().is(",") {
				s.take()
				continue
			}
			break
		}
		if _, err := s.expect("]"); err != nil {
			return ast.ActionScope{}, err
		}
		return ast.ActionScope{Actions: ids}, nil

	default:
		return ast.ActionScope{}, nil // bare "action" scopes to any
	}
}

// parseActionID parses and validates a <TargetName>___<method> identifier.
func (s *parseState) parseActionID() (string, error) {
	tok := s.take()
	if tok.kind != tokenIdent {
		return "", s.errorf(tok, "expected action id, found %s", tok.describe())
	}
	if !ValidActionID(tok.text) {
		return "", &aplErrors.Error{
			Type:       aplErrors.ErrorTypeSyntax,
			Message:    fmt.Sprintf("malformed action id %q", tok.text),
			Location:   tok.loc,
			Clause:     s.clauseAt(tok.loc),
			Suggestion: "action ids follow the convention <TargetName>___<method_name>",
		}
	}
	return tok.text, nil
}

// ValidActionID reports whether id follows the <TargetName>___<method_name>
// convention: exactly one "___" separator with non-empty sides.
func ValidActionID(id string) bool {
	parts := strings.Split(id, "___")
	return len(parts) == 2 && parts[0] != "" && parts[1] != ""
}

// parseResourceScope parses: resource | resource == "arn"
func (s *parseState) parseResourceScope() (ast.ResourceScope, error) {
	if _, err := s.expect("resource"); err != nil {
		return ast.ResourceScope{}, err
	}

	if !s.peek().is("==") {
		return ast.ResourceScope{}, nil // bare "resource" scopes to any
	}
	s.take()

	tok := s.take()
	if tok.kind != tokenString {
		return ast.ResourceScope{}, s.errorf(tok, "expected resource string, found %s", tok.describe())
	}
	return ast.ResourceScope{Resource: tok.text}, nil
}

// parseExpr parses a full boolean expression (|| level).
func (s *parseState) parseExpr(depth int) (*ast.ExprNode, error) {
	if depth > s.maxDepth {
		return nil, s.errorf(s.peek(), "condition nesting exceeds maximum depth %d", s.maxDepth)
	}

	first, err := s.parseAnd(depth)
	if err != nil {
		return nil, err
	}

	children := []*ast.ExprNode{first}
	for s.peek().is("||") {
		s.take()
		next, err := s.parseAnd(depth)
		if err != nil {
			return nil, err
		}
		children = append(children, next)
	}

	if len(children) == 1 {
		return first, nil
	}
	node := ast.Or(children...)
	node.Location = first.Location
	return node, nil
}

// parseAnd parses the && level.
func (s *parseState) parseAnd(depth int) (*ast.ExprNode, error) {
	first, err := s.parseUnary(depth)
	if err != nil {
		return nil, err
	}

	children := []*ast.ExprNode{first}
	for s.peek().is("&&") {
		s.take()
		next, err := s.parseUnary(depth)
		if err != nil {
			return nil, err
		}
		children = append(children, next)
	}

	if len(children) == 1 {
		return first, nil
	}
	node := ast.And(children...)
	node.Location = first.Location
	return node, nil
}

// parseUnary parses ! prefixes and comparisons.
func (s *parseState) parseUnary(depth int) (*ast.ExprNode, error) {
	if s.peek().is("!") {
		loc := s.take().loc
		child, err := s.parseUnary(depth + 1)
		if err != nil {
			return nil, err
		}
		node := ast.Not(child)
		node.Location = loc
		return node, nil
	}
	return s.parseComparison(depth)
}

// parseComparison parses: operand [op operand | in [literals] | like "pattern"]
func (s *parseState) parseComparison(depth int) (*ast.ExprNode, error) {
	left, err := s.parseOperand(depth)
	if err != nil {
		return nil, err
	}

	tok := s.peek()
	switch {
	case tok.is("=="), tok.is("!="), tok.is("<"), tok.is("<="), tok.is(">"), tok.is(">="):
		s.take()
		right, err := s.parseOperand(depth)
		if err != nil {
			return nil, err
		}
		node := ast.Compare(ast.Operator(tok.text), left, right)
		node.Location = left.Location
		return node, nil

	case tok.is("in"):
		s.take()
		set, err := s.parseLiteralSet()
		if err != nil {
			return nil, err
		}
		node := ast.In(left, set)
		node.Location = left.Location
		return node, nil

	case tok.is("like"):
		s.take()
		patTok := s.take()
		if patTok.kind != tokenString {
			return nil, s.errorf(patTok, "like requires a string pattern, found %s", patTok.describe())
		}
		node := ast.Like(left, patTok.text)
		node.Location = left.Location
		return node, nil

	default:
		return left, nil
	}
}

// parseLiteralSet parses: [ literal { , literal } ]
func (s *parseState) parseLiteralSet() ([]ast.Value, error) {
	if _, err := s.expect("["); err != nil {
		return nil, err
	}

	var set []ast.Value
	for {
		v, err := s.parseLiteralValue()
		if err != nil {
			return nil, err
		}
		set = append(set, v)
		if s.peek().is(",") {
			s.take()
			continue
		}
		break
	}

	if _, err := s.expect("]"); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *parseState) parseLiteralValue() (ast.Value, error) {
	tok := s.take()
	switch {
	case tok.kind == tokenString:
		return ast.StringValue(tok.text), nil
	case tok.kind == tokenNumber:
		return ast.NumberValue(tok.num), nil
	case tok.is("true"):
		return ast.BoolValue(true), nil
	case tok.is("false"):
		return ast.BoolValue(false), nil
	default:
		return ast.Value{}, s.errorf(tok, "expected literal, found %s", tok.describe())
	}
}

// parseOperand parses a comparison operand: literal, field access, tag
// accessor, has() check, or a parenthesized expression.
func (s *parseState) parseOperand(depth int) (*ast.ExprNode, error) {
	tok := s.peek()

	switch {
	case tok.is("("):
		s.take()
		inner, err := s.parseExpr(depth + 1)
		if err != nil {
			return nil, err
		}
		if _, err := s.expect(")"); err != nil {
			return nil, err
		}
		return inner, nil

	case tok.is("context"):
		return s.parseFieldAccess()

	case tok.is("principal"):
		return s.parseTagAccessor()

	case tok.is("has"):
		return s.parseHas()

	case tok.kind == tokenString, tok.kind == tokenNumber, tok.is("true"), tok.is("false"):
		loc := tok.loc
		v, err := s.parseLiteralValue()
		if err != nil {
			return nil, err
		}
		node := ast.Literal(v)
		node.Location = loc
		return node, nil

	default:
		return nil, s.errorf(tok, "expected expression, found %s", tok.describe())
	}
}

// parseFieldAccess parses context.input.<name>.
func (s *parseState) parseFieldAccess() (*ast.ExprNode, error) {
	loc := s.take().loc // context
	if _, err := s.expect("."); err != nil {
		return nil, err
	}
	if _, err := s.expect("input"); err != nil {
		return nil, err
	}
	if _, err := s.expect("."); err != nil {
		return nil, err
	}
	name := s.take()
	if name.kind != tokenIdent {
		return nil, s.errorf(name, "expected parameter name after context.input., found %s", name.describe())
	}
	node := ast.Field(name.text)
	node.Location = loc
	return node, nil
}

// parseTagAccessor parses principal.hasTag("x") or principal.getTag("x").
func (s *parseState) parseTagAccessor() (*ast.ExprNode, error) {
	loc := s.take().loc // principal
	if _, err := s.expect("."); err != nil {
		return nil, err
	}
	method := s.take()
	if method.kind != tokenIdent || (method.text != "hasTag" && method.text != "getTag") {
		return nil, s.errorf(method, "expected hasTag or getTag, found %s", method.describe())
	}
	if _, err := s.expect("("); err != nil {
		return nil, err
	}
	name := s.take()
	if name.kind != tokenString || name.text == "" {
		return nil, s.errorf(name, "%s requires a non-empty string tag name, found %s", method.text, name.describe())
	}
	if _, err := s.expect(")"); err != nil {
		return nil, err
	}

	var node *ast.ExprNode
	if method.text == "hasTag" {
		node = ast.HasTag(name.text)
	} else {
		node = ast.GetTag(name.text)
	}
	node.Location = loc
	return node, nil
}

// parseHas parses has(context.input.<name>).
func (s *parseState) parseHas() (*ast.ExprNode, error) {
	loc := s.take().loc // has
	if _, err := s.expect("("); err != nil {
		return nil, err
	}
	field, err := s.parseFieldAccess()
	if err != nil {
		return nil, err
	}
	if _, err := s.expect(")"); err != nil {
		return nil, err
	}
	node := ast.Has(field.Field)
	node.Location = loc
	return node, nil
}
