package services

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the referenced entity does not exist or is not
// visible to the caller.
var ErrNotFound = errors.New("not found")

// ValidationError means a lifecycle or business guard rejected the operation
// (wrong status, duplicate response, chat window closed). The reason always
// explains which guard failed; guards are never silently skipped.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// PermissionError means the caller is not allowed to perform the operation at
// all (wrong role, not a participant), as opposed to "not allowed right now".
type PermissionError struct {
	Reason string
}

func (e *PermissionError) Error() string { return e.Reason }

func NewPermissionError(format string, args ...interface{}) error {
	return &PermissionError{Reason: fmt.Sprintf(format, args...)}
}

// ConflictError means the operation lost a race on the same entity (e.g. two
// concurrent accepts). The caller should re-read and decide again.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

func NewConflictError(format string, args ...interface{}) error {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a guard violation.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsPermission reports whether err is an authorization failure.
func IsPermission(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

// IsConflict reports whether err is a lost race.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
