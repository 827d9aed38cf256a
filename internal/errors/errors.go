// LOCATION: internal/errors/errors.go
//
// This file provides:
// - Sentinel errors for every failure kind of the partitioned store
// - Error category checking functions
// - Constructors that attach context to a sentinel

package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Not found errors
	ErrPathNotFound      = errors.New("path not found")
	ErrIndexNotFound     = errors.New("index not found")
	ErrPartitionNotFound = errors.New("partition not found")
	ErrColumnNotFound    = errors.New("column not found")

	// Index errors
	ErrIndexShapeConflict = errors.New("index shape conflict")
	ErrMalformedIndex     = errors.New("malformed index")

	// I/O errors
	ErrSerialization   = errors.New("serialization error")
	ErrDirectoryCreate = errors.New("directory create error")
	ErrLockTimeout     = errors.New("lock timeout")

	// Result errors
	ErrEmptyResult = errors.New("empty result")

	// Validation errors
	ErrInvalidPartition = errors.New("invalid partition")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// IsNotFound returns true if err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPathNotFound) ||
		errors.Is(err, ErrIndexNotFound) ||
		errors.Is(err, ErrPartitionNotFound) ||
		errors.Is(err, ErrColumnNotFound)
}

// IsIndexError returns true if the index itself is unusable.
func IsIndexError(err error) bool {
	return errors.Is(err, ErrIndexShapeConflict) ||
		errors.Is(err, ErrMalformedIndex)
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidPartition) ||
		errors.Is(err, ErrInvalidConfig)
}

// IsRetriable returns true if the error is potentially retriable.
// Only lock acquisition timeouts qualify; everything else aborts the call.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewPathNotFound creates a path-not-found error.
func NewPathNotFound(path string) error {
	return fmt.Errorf("%s: %w", path, ErrPathNotFound)
}

// NewPartitionNotFound creates a partition-not-found error naming the label
// that was missing and the path that led to it.
func NewPartitionNotFound(label, under string) error {
	if under == "" {
		return fmt.Errorf("label '%s' at index root: %w", label, ErrPartitionNotFound)
	}
	return fmt.Errorf("label '%s' under '%s': %w", label, under, ErrPartitionNotFound)
}

// NewShapeConflict creates an index shape conflict error.
func NewShapeConflict(path, reason string) error {
	return fmt.Errorf("%s: %s: %w", path, reason, ErrIndexShapeConflict)
}

// NewSerialization wraps a codec failure.
func NewSerialization(what string, err error) error {
	return fmt.Errorf("%s: %w: %v", what, ErrSerialization, err)
}

// NewDirectoryCreate wraps a mkdir failure.
func NewDirectoryCreate(dir string, err error) error {
	return fmt.Errorf("%s: %w: %v", dir, ErrDirectoryCreate, err)
}

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewInvalidPartition creates an invalid-partition error.
func NewInvalidPartition(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrInvalidPartition)
}
