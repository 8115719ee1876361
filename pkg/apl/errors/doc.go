// Package errors provides rich error types for APL parsing and validation.
//
// Errors carry a category, a source location, and an optional suggestion so
// that policy authors can pinpoint and fix the offending clause. Parse errors
// are never silently repaired: a policy that fails to parse or validate is
// rejected before it can be stored.
//
// ErrorList accumulates multiple errors so validation can report everything
// wrong with a policy in a single pass instead of failing on the first issue.
package errors
