package store

import "fmt"

// NotFoundError is returned when an operation references a policy id that is
// not in the store.
type NotFoundError struct {
	PolicyID  string
	Operation string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("policy %q not found (%s)", e.PolicyID, e.Operation)
}

// DuplicateError is returned when creating a policy whose id already exists.
type DuplicateError struct {
	PolicyID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("policy %q already exists", e.PolicyID)
}
