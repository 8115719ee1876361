package errors

import (
	"fmt"
	"strings"

	"arbiter-hq/arbiter/pkg/apl/ast"
)

// ErrorType categorizes the type of error encountered during parsing or validation.
type ErrorType string

const (
	ErrorTypeSyntax        ErrorType = "syntax"            // Malformed policy text
	ErrorTypeUnknownAction ErrorType = "unknown_action"    // Action id not in the schema
	ErrorTypeUnknownParam  ErrorType = "unknown_parameter" // context.input field not declared for the action
	ErrorTypeTypeMismatch  ErrorType = "type_mismatch"     // Operator applied to an incompatible parameter type
)

// Error represents a policy parse or validation error with location,
// offending clause, and an optional suggestion.
type Error struct {
	Type       ErrorType    // Category of error
	Message    string       // Error message
	Location   ast.Location // Source location (file, line, column)
	Clause     string       // The offending clause text, if available
	Suggestion string       // Suggested fix (optional)
}

// Error implements the error interface.
// It returns a formatted message with location, clause, and suggestion.
func (e *Error) Error() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "[%s] %s", e.Type, e.Message)

	if e.Location.IsValid() {
		fmt.Fprintf(&sb, "\n  --> %s", e.Location)
	}

	if e.Clause != "" {
		fmt.Fprintf(&sb, "\n  | %s", e.Clause)
	}

	if e.Suggestion != "" {
		fmt.Fprintf(&sb, "\n  = suggestion: %s", e.Suggestion)
	}

	return sb.String()
}

// ErrorList accumulates multiple errors encountered during parsing/validation.
type ErrorList struct {
	Errors []*Error
}

// NewErrorList creates a new empty error list.
func NewErrorList() *ErrorList {
	return &ErrorList{}
}

// Add appends an error to the list.
func (el *ErrorList) Add(err *Error) {
	el.Errors = append(el.Errors, err)
}

// AddError creates and adds a new error with the given parameters.
func (el *ErrorList) AddError(errType ErrorType, message string, location ast.Location) {
	el.Add(&Error{
		Type:     errType,
		Message:  message,
		Location: location,
	})
}

// HasErrors returns true if the error list contains any errors.
func (el *ErrorList) HasErrors() bool {
	return len(el.Errors) > 0
}

// Count returns the number of errors in the list.
func (el *ErrorList) Count() int {
	return len(el.Errors)
}

// HasErrorType returns true if the list contains at least one error of the given type.
func (el *ErrorList) HasErrorType(errType ErrorType) bool {
	for _, err := range el.Errors {
		if err.Type == errType {
			return true
		}
	}
	return false
}

// Error implements the error interface.
func (el *ErrorList) Error() string {
	if !el.HasErrors() {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "found %d error(s):\n", el.Count())

	for i, err := range el.Errors {
		fmt.Fprintf(&sb, "\nerror %d:\n%s\n", i+1, err.Error())
	}

	return sb.String()
}

// ToError returns nil if the error list is empty, otherwise the list itself.
func (el *ErrorList) ToError() error {
	if !el.HasErrors() {
		return nil
	}
	return el
}
