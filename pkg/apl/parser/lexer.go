package parser

import (
	"fmt"
	"strconv"
	"strings"

	"arbiter-hq/arbiter/pkg/apl/ast"
	aplErrors "arbiter-hq/arbiter/pkg/apl/errors"
)

// tokenKind identifies the lexical class of a token.
type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenString
	tokenNumber
	tokenPunct // operators and delimiters
)

// token is a single lexical token with its source location.
type token struct {
	kind tokenKind
	text string  // raw text for idents/puncts, decoded value for strings
	num  float64 // decoded value for numbers
	loc  ast.Location
}

func (t token) is(text string) bool {
	return (t.kind == tokenIdent || t.kind == tokenPunct) && t.text == text
}

func (t token) describe() string {
	switch t.kind {
	case tokenEOF:
		return "end of input"
	case tokenString:
		return fmt.Sprintf("string %q", t.text)
	case tokenNumber:
		return fmt.Sprintf("number %s", strconv.FormatFloat(t.num, 'f', -1, 64))
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

// multi-character punctuation, longest match first
var punctuation = []string{"==", "!=", "<=", ">=", "&&", "||", "<", ">", "!", "(", ")", "[", "]", "{", "}", ",", ";", ".", "@"}

// lexer turns APL source text into a token stream.
// // line comments are skipped.
type lexer struct {
	src  string
	file string
	pos  int
	line int
	col  int
}

func newLexer(src, file string) *lexer {
	return &lexer{src: src, file: file, line: 1, col: 1}
}

func (l *lexer) location() ast.Location {
	return ast.Location{File: l.file, Line: l.line, Column: l.col}
}

func (l *lexer) syntaxError(msg string) *aplErrors.Error {
	return &aplErrors.Error{
		Type:     aplErrors.ErrorTypeSyntax,
		Message:  msg,
		Location: l.location(),
	}
}

// tokenize lexes the whole input.
func (l *lexer) tokenize() ([]token, error) {
	var tokens []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.kind == tokenEOF {
			return tokens, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpaceAndComments()

	loc := l.location()
	if l.pos >= len(l.src) {
		return token{kind: tokenEOF, loc: loc}, nil
	}

	ch := l.src[l.pos]

	switch {
	case ch == '"':
		return l.lexString(loc)
	case ch >= '0' && ch <= '9':
		return l.lexNumber(loc)
	case ch == '-' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1]):
		return l.lexNumber(loc)
	case isIdentStart(ch):
		return l.lexIdent(loc), nil
	}

	for _, p := range punctuation {
		if strings.HasPrefix(l.src[l.pos:], p) {
			l.advance(len(p))
			return token{kind: tokenPunct, text: p, loc: loc}, nil
		}
	}

	return token{}, l.syntaxError(fmt.Sprintf("unexpected character %q", ch))
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			l.advance(1)
		case strings.HasPrefix(l.src[l.pos:], "//"):
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance(1)
			}
		default:
			return
		}
	}
}

func (l *lexer) lexString(loc ast.Location) (token, error) {
	l.advance(1) // opening quote
	var sb strings.Builder
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		switch ch {
		case '"':
			l.advance(1)
			return token{kind: tokenString, text: sb.String(), loc: loc}, nil
		case '\\':
			if l.pos+1 >= len(l.src) {
				return token{}, l.syntaxError("unterminated string escape")
			}
			esc := l.src[l.pos+1]
			switch esc {
			case '"', '\\':
				sb.WriteByte(esc)
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				return token{}, l.syntaxError(fmt.Sprintf("unsupported escape \\%c", esc))
			}
			l.advance(2)
		case '\n':
			return token{}, l.syntaxError("unterminated string literal")
		default:
			sb.WriteByte(ch)
			l.advance(1)
		}
	}
	return token{}, l.syntaxError("unterminated string literal")
}

func (l *lexer) lexNumber(loc ast.Location) (token, error) {
	start := l.pos
	if l.src[l.pos] == '-' {
		l.advance(1)
	}
	for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == '.') {
		// A dot only continues a number if a digit follows; otherwise it is
		// the field-access dot (e.g. in "context.input.x").
		if l.src[l.pos] == '.' && (l.pos+1 >= len(l.src) || !isDigit(l.src[l.pos+1])) {
			break
		}
		l.advance(1)
	}
	text := l.src[start:l.pos]
	num, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return token{}, l.syntaxError(fmt.Sprintf("invalid number literal %q", text))
	}
	return token{kind: tokenNumber, text: text, num: num, loc: loc}, nil
}

func (l *lexer) lexIdent(loc ast.Location) token {
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
		l.advance(1)
	}
	return token{kind: tokenIdent, text: l.src[start:l.pos], loc: loc}
}

func (l *lexer) advance(n int) {
	for i := 0; i < n && l.pos < len(l.src); i++ {
		if l.src[l.pos] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.pos++
	}
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
