package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Workflow error taxonomy. Every error returned by the core wraps one of these.
var (
	ErrAuthenticationRequired  = errors.New("authentication required")
	ErrPermissionDenied        = errors.New("permission denied")
	ErrInvalidStateTransition  = errors.New("invalid state transition")
	ErrMissingRequiredDocument = errors.New("missing required document")
	ErrValidation              = errors.New("validation error")
	ErrNotFound                = errors.New("resource not found")
	ErrStorageFailure          = errors.New("storage failure")
)

// TransitionError describes a rejected state change.
type TransitionError struct {
	Action string
	From   Status
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot %s application in status %q: %s", e.Action, e.From, e.Reason)
	}
	return fmt.Sprintf("cannot %s application in status %q", e.Action, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidStateTransition }

// MissingDocumentsError lists required document types absent at submission.
type MissingDocumentsError struct {
	Missing []DocumentType
}

func (e *MissingDocumentsError) Error() string {
	names := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		names[i] = string(m)
	}
	sort.Strings(names)
	return "missing required documents: " + strings.Join(names, ", ")
}

func (e *MissingDocumentsError) Unwrap() error { return ErrMissingRequiredDocument }

// ValidationError reports a malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StorageError wraps an infrastructure failure from the database or file store.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err, returning nil when err is nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Is(target error) bool { return target == ErrStorageFailure }

func (e *StorageError) Unwrap() error { return e.Err }
