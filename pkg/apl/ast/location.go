package ast

import "fmt"

// Location represents the source location of an AST node in the original policy text.
// It enables precise error reporting with file, line, and column information.
type Location struct {
	File   string // Path to the policy file ("<input>" for API-submitted text)
	Line   int    // Line number (1-based)
	Column int    // Column number (1-based)
}

// String returns a human-readable representation of the location.
// Format: "file:line:column"
func (l Location) String() string {
	if l.File == "" && l.Line == 0 {
		return "<unknown>"
	}
	file := l.File
	if file == "" {
		file = "<input>"
	}
	return fmt.Sprintf("%s:%d:%d", file, l.Line, l.Column)
}

// IsValid returns true if the location has valid line information.
func (l Location) IsValid() bool {
	return l.Line > 0
}
