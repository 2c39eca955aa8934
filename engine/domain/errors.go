// Package domain holds the shared types, sentinel errors, and validation
// rules for the legal retrieval engine.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for ingestion and retrieval failures.
var (
	// ErrUnreadableDocument means a source file could not be opened or parsed.
	ErrUnreadableDocument = errors.New("unreadable document")
	// ErrNoContent means ingestion produced nothing to index.
	ErrNoContent = errors.New("no content")
	// ErrRemoteFetch means a remote search or detail call failed outright.
	ErrRemoteFetch = errors.New("remote fetch failed")
	// ErrDimensionMismatch means an embedding's length conflicts with the
	// collection it targets.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrCollectionNotFound means a search was issued against a collection
	// that was never created.
	ErrCollectionNotFound = errors.New("collection not found")
)

// Sentinel errors for question validation.
var (
	ErrQueryTooShort  = errors.New("query too short")
	ErrQueryInjection = errors.New("query contains suspicious content")
	ErrInvalidMode    = errors.New("invalid research mode")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
