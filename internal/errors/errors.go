// Package errors provides structured error types for the context manager.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrDuplicateSession = errors.New("session already exists")
	ErrNoActiveSession  = errors.New("no active session")
	ErrSessionEnded     = errors.New("session has ended")
)

// ValidationError reports a malformed input with field-level detail.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Message)
}

// NewValidationError creates a validation error for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// StorageError wraps an underlying persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err as a storage failure for the given operation.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// RestoreError reports a snapshot payload that could not be restored.
// The session is left unchanged when this is returned.
type RestoreError struct {
	CommitHash string
	Err        error
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("restore of snapshot %s failed: %v", e.CommitHash, e.Err)
}

func (e *RestoreError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a session or snapshot lookup miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSnapshotNotFound)
}

// TransientError marks a failure worth retrying, such as a network timeout or
// a 5xx from the embedding endpoint.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// MarkTransient wraps err as retryable. Nil stays nil.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is marked retryable.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}
