package config

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError reports a single invalid configuration field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates one or more FieldErrors raised during Validate.
type ValidationErrors struct {
	Errors []*FieldError
}

func (e *ValidationErrors) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Error()
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

// Add appends a field error if message is non-empty.
func (e *ValidationErrors) Add(field, message string) {
	if message == "" {
		return
	}
	e.Errors = append(e.Errors, &FieldError{Field: field, Message: message})
}

// ErrIfAny returns e as an error if any field errors were collected, else nil.
func (e *ValidationErrors) ErrIfAny() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// IsValidationErrors reports whether err is a *ValidationErrors.
func IsValidationErrors(err error) bool {
	var ve *ValidationErrors
	return errors.As(err, &ve)
}
