// Package domain defines core types, interfaces, and errors for the catalog gateway.
package domain

import (
	"errors"
	"fmt"
)

// ErrManagerClosed is returned by the handle cache once it has been shut down.
var ErrManagerClosed = errors.New("catalog handle manager is closed")

// ErrHandleClosed is returned by a catalog handle used after Close.
var ErrHandleClosed = errors.New("catalog handle is closed")

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., duplicate resource).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ConfigurationError indicates an invalid gateway configuration: an unknown
// provider, a malformed catalog prefix, or a catalog name that collides with
// the reserved default catalog.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// ConstructionError indicates that a provider failed to build a catalog
// handle. It is never cached; the next request retries construction.
type ConstructionError struct {
	Catalog string
	Err     error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("build catalog handle %q: %v", e.Catalog, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// RefreshError indicates that a cached handle could not renew its
// credentials. The handle stays cached and the next request retries.
type RefreshError struct {
	Catalog string
	Err     error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("refresh credentials for catalog %q: %v", e.Catalog, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// UnsupportedTypeError indicates a type node with no counterpart in the target
// type model. Path locates the node, e.g. "struct.b.list.element".
type UnsupportedTypeError struct {
	Path string
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	path := e.Path
	if path == "" {
		path = "<root>"
	}
	return fmt.Sprintf("unsupported type %s at %s", e.Type, path)
}

// CloseError reports a catalog handle that failed to close cleanly. It is
// logged by the cache and never fails an eviction.
type CloseError struct {
	Catalog string
	Err     error
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("close catalog handle %q: %v", e.Catalog, e.Err)
}

func (e *CloseError) Unwrap() error { return e.Err }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrConfiguration creates a ConfigurationError with a formatted message.
func ErrConfiguration(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}
