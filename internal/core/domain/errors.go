package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrConfiguration indicates a missing credential, missing connection
	// info or an invalid parameter. Never retried automatically.
	ErrConfiguration = errors.New("configuration error")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown provider, backend or file type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrEmptyDocument indicates a document yielded no extractable text.
	ErrEmptyDocument = errors.New("document has no extractable text")

	// ErrEmptyCollection indicates a question was asked before anything was ingested.
	ErrEmptyCollection = errors.New("no documents indexed")

	// ErrAmbiguousSource indicates a short name matches more than one source.
	ErrAmbiguousSource = errors.New("ambiguous source name")

	// ErrSourceConflict indicates another indexed source already uses the
	// same file name. Chunk ids are derived from the file name, so the two
	// cannot share a collection.
	ErrSourceConflict = errors.New("file name already indexed from another path")

	// Backend Errors.

	// ErrBackendConnectivity indicates the vector store or a provider could not be reached
	// or rejected the credentials.
	ErrBackendConnectivity = errors.New("backend unreachable")

	// ErrSchemaMissing indicates the vector store tables have not been created yet.
	// Expected on fresh installs before the first ingestion.
	ErrSchemaMissing = errors.New("vector store schema not initialised")

	// ErrGenerationUnavailable indicates the generation provider failed.
	// The answer pipeline falls back to showing retrieved context.
	ErrGenerationUnavailable = errors.New("generation service unavailable")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)

// ConfigError describes an invalid or missing configuration value.
type ConfigError struct {
	// Param is the parameter or credential name.
	Param string

	// Value is the rejected value. Nil when the value is missing.
	Value any

	// Reason explains the constraint that was violated.
	Reason string
}

// NewConfigError returns a ConfigError for param.
func NewConfigError(param string, value any, reason string) error {
	return &ConfigError{Param: param, Value: value, Reason: reason}
}

// Error implements error.
func (e *ConfigError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("configuration error: %s %s", e.Param, e.Reason)
	}
	return fmt.Sprintf("configuration error: %s=%v %s", e.Param, e.Value, e.Reason)
}

// Unwrap makes errors.Is(err, ErrConfiguration) hold.
func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// NotFoundError reports a missing file, source or history entry.
type NotFoundError struct {
	// Kind is what was looked up, e.g. "file" or "source".
	Kind string

	// Name is the identifier that was not found.
	Name string
}

// NewNotFoundError returns a NotFoundError.
func NewNotFoundError(kind, name string) error {
	return &NotFoundError{Kind: kind, Name: name}
}

// Error implements error.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

// Unwrap makes errors.Is(err, ErrNotFound) hold.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}
