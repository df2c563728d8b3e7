package model

import (
	"context"
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	ErrNotLoaded        = errors.New("knowledge base not loaded")
	ErrEntityNotFound   = errors.New("entity not found")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrCancelled        = errors.New("operation cancelled")
	ErrMalformedBundle  = errors.New("malformed bundle")
	ErrPartialData      = errors.New("partial data")
)

// ErrorKind is the caller-facing classification of an error
type ErrorKind string

const (
	KindNotLoaded        ErrorKind = "NotLoaded"
	KindEntityNotFound   ErrorKind = "EntityNotFound"
	KindInvalidParameter ErrorKind = "InvalidParameter"
	KindCancelled        ErrorKind = "Cancelled"
	KindInternal         ErrorKind = "Internal"
)

// ErrorKindOf classifies err. Context cancellation counts as Cancelled even when
// it was not wrapped in ErrCancelled.
func ErrorKindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotLoaded):
		return KindNotLoaded
	case errors.Is(err, ErrEntityNotFound):
		return KindEntityNotFound
	case errors.Is(err, ErrInvalidParameter):
		return KindInvalidParameter
	case errors.Is(err, ErrCancelled),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	default:
		return KindInternal
	}
}

// QueryError provides structured error information for knowledge-base operations.
type QueryError struct {
	Op      string // Operation that failed (e.g., "get_technique", "load")
	Entity  Kind   // Entity kind (if applicable)
	ID      string // Entity ID (if applicable)
	Field   string // Parameter name (for validation failures)
	Cause   error  // Underlying error
	Context string // Additional context
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	var msg string
	switch {
	case e.ID != "":
		msg = fmt.Sprintf("%s %s %s: %v", e.Op, e.Entity, e.ID, e.Cause)
	case e.Field != "":
		msg = fmt.Sprintf("%s (field %s): %v", e.Op, e.Field, e.Cause)
	default:
		msg = fmt.Sprintf("%s: %v", e.Op, e.Cause)
	}
	if e.Context != "" {
		msg += " (" + e.Context + ")"
	}
	return msg
}

// Unwrap returns the underlying cause for error chain support.
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target error matches this error's cause.
func (e *QueryError) Is(target error) bool {
	if target == nil {
		return false
	}
	return errors.Is(e.Cause, target)
}

// ErrorBuilder provides a fluent interface for building QueryErrors.
type ErrorBuilder struct {
	err QueryError
}

// NewError creates a new error builder with the given operation.
func NewError(op string) *ErrorBuilder {
	return &ErrorBuilder{err: QueryError{Op: op}}
}

// Technique sets the entity to a technique id.
func (b *ErrorBuilder) Technique(id string) *ErrorBuilder {
	b.err.Entity = KindTechnique
	b.err.ID = id
	return b
}

// Tactic sets the entity to a tactic id.
func (b *ErrorBuilder) Tactic(id string) *ErrorBuilder {
	b.err.Entity = KindTactic
	b.err.ID = id
	return b
}

// Group sets the entity to a group id.
func (b *ErrorBuilder) Group(id string) *ErrorBuilder {
	b.err.Entity = KindGroup
	b.err.ID = id
	return b
}

// Mitigation sets the entity to a mitigation id.
func (b *ErrorBuilder) Mitigation(id string) *ErrorBuilder {
	b.err.Entity = KindMitigation
	b.err.ID = id
	return b
}

// Entity sets an arbitrary kind and id.
func (b *ErrorBuilder) Entity(kind Kind, id string) *ErrorBuilder {
	b.err.Entity = kind
	b.err.ID = id
	return b
}

// Field sets the offending parameter name.
func (b *ErrorBuilder) Field(name string) *ErrorBuilder {
	b.err.Field = name
	return b
}

// Context sets additional context information.
func (b *ErrorBuilder) Context(ctx string) *ErrorBuilder {
	b.err.Context = ctx
	return b
}

// Cause sets the underlying error cause.
func (b *ErrorBuilder) Cause(err error) *ErrorBuilder {
	b.err.Cause = err
	return b
}

// Build returns the constructed QueryError.
func (b *ErrorBuilder) Build() *QueryError {
	return &b.err
}

// Err returns the error as an error interface.
func (b *ErrorBuilder) Err() error {
	return &b.err
}

// Convenience functions for common error patterns

// NotFoundError creates an entity-not-found error for the given kind.
func NotFoundError(op string, kind Kind, id string) error {
	return NewError(op).Entity(kind, id).Cause(ErrEntityNotFound).Err()
}

// InvalidParameterError creates a validation error for a named parameter.
func InvalidParameterError(op, field, reason string) error {
	return NewError(op).Field(field).Cause(fmt.Errorf("%w: %s", ErrInvalidParameter, reason)).Err()
}

// CancelledError wraps a context error so it classifies as Cancelled.
func CancelledError(op string, cause error) error {
	return NewError(op).Cause(fmt.Errorf("%w: %w", ErrCancelled, cause)).Err()
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound)
}

// IsNotLoaded returns true if no snapshot was available.
func IsNotLoaded(err error) bool {
	return errors.Is(err, ErrNotLoaded)
}
