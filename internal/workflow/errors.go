package workflow

import "fmt"

// ValidationError reports malformed input: empty zone set, invalid date
// range, unknown role or hazard. Never retried automatically.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ViolationError reports an illegal workflow transition: wrong actor role,
// invalid from-state, or an alert outside the status the operation requires.
// The attempted operation causes no mutation and no audit entry.
type ViolationError struct {
	Reason string
}

func (e *ViolationError) Error() string {
	return "workflow violation: " + e.Reason
}

// Violationf builds a ViolationError from a format string.
func Violationf(format string, args ...any) error {
	return &ViolationError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an unknown alert id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return "alert not found: " + e.ID
}

// StorageError wraps a persistence failure. It is always surfaced; a failed
// commit must leave the in-memory state unchanged.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
