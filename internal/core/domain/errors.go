package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown backend type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrSourceDisabled indicates the source is disabled and cannot be checked.
	ErrSourceDisabled = errors.New("source disabled")

	// ErrNotInteractive indicates the backend does not accept direct uploads.
	ErrNotInteractive = errors.New("source is not interactive")

	// ErrNotPeriodic indicates the backend cannot be checked on a schedule.
	ErrNotPeriodic = errors.New("source is not periodic")

	// ErrUnknownAction indicates the backend does not declare the named action.
	ErrUnknownAction = errors.New("unknown action")

	// ErrEmptyFile indicates a zero-length candidate was rejected.
	ErrEmptyFile = errors.New("empty file")

	// ErrCheckInProgress indicates a check is already running for the source.
	ErrCheckInProgress = errors.New("check in progress")
)

// SourceError wraps a failure contacting a source's external medium
// (mailbox, directory, scanner). Protocol detail is stripped; the message
// is what lands in the source log.
type SourceError struct {
	SourceID string
	Message  string
	Err      error
}

// NewSourceError builds a SourceError for the given source.
func NewSourceError(sourceID, message string, err error) *SourceError {
	return &SourceError{SourceID: sourceID, Message: message, Err: err}
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("source %s: %s: %v", e.SourceID, e.Message, e.Err)
	}
	return fmt.Sprintf("source %s: %s", e.SourceID, e.Message)
}

// Unwrap returns the underlying cause.
func (e *SourceError) Unwrap() error {
	return e.Err
}

// LogMessage returns the human-readable message for the source log.
func (e *SourceError) LogMessage() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// ValidationError carries per-field configuration failures.
// It is raised by Clean paths and surfaces to the form/API layer,
// never to background workers.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError with a single field message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a field failure and returns the receiver for chaining.
func (e *ValidationError) Add(field, message string) *ValidationError {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
	return e
}

// AsValidationError extracts a ValidationError from an error chain.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
