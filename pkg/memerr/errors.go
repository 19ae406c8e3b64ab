// Package memerr defines the typed error kinds the memory core surfaces
// to its callers: sentinel errors, field-carrying error structs, and
// errors.As-based predicates.
package memerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for kinds that carry no extra fields.
var (
	// ErrBackend indicates the durable store was unavailable or a query timed out.
	ErrBackend = errors.New("backend unavailable")
	// ErrRateLimited indicates an external provider (embedding, LLM) rejected the
	// call due to rate limiting.
	ErrRateLimited = errors.New("rate limited")
	// ErrTimeout indicates an external provider call exceeded its bound.
	ErrTimeout = errors.New("timed out")
)

// ValidationError reports a missing required field, an illegal enum value, or
// a malformed identifier.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %q: %s", e.Field, e.Message)
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFoundError reports that an amend/forget/link target was absent under the
// caller's scope.
type NotFoundError struct {
	Kind string // "fragment", "session", ...
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewNotFound constructs a NotFoundError.
func NewNotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// ConflictError reports that remember matched an existing content_hash
// (Created=false) or amend's new content collided with a different row
// (Merged=true, ExistingID set).
type ConflictError struct {
	Merged     bool
	ExistingID string
}

func (e *ConflictError) Error() string {
	if e.Merged {
		return fmt.Sprintf("content collides with existing fragment %s", e.ExistingID)
	}
	return fmt.Sprintf("duplicate of existing fragment %s", e.ExistingID)
}

// NewConflict constructs a ConflictError.
func NewConflict(existingID string, merged bool) error {
	return &ConflictError{Merged: merged, ExistingID: existingID}
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// PermissionError reports a forget on a permanent-tier row without force.
type PermissionError struct {
	Reason string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s", e.Reason)
}

// NewPermission constructs a PermissionError.
func NewPermission(reason string) error {
	return &PermissionError{Reason: reason}
}

// IsPermission reports whether err is (or wraps) a PermissionError.
func IsPermission(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

// BackendError wraps a durable-store failure with the operation that failed.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error during %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// NewBackend constructs a BackendError wrapping ErrBackend.
func NewBackend(op string, err error) error {
	return &BackendError{Op: op, Err: err}
}

// IsBackend reports whether err is (or wraps) a BackendError.
func IsBackend(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

// Facade converts any error into the {success:false, error:<message>}
// shape returned at the facade boundary: validation and
// permission errors surface their full detail, everything else collapses to
// a generic message so internal detail (DSNs, stack traces) never leaks to
// an agent caller.
func Facade(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case IsValidation(err), IsPermission(err), IsNotFound(err), IsConflict(err):
		return err.Error()
	default:
		return "internal error processing request"
	}
}
