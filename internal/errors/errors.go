// Package errors defines the typed error values used across an indexing run.
package errors

import (
	"fmt"

	"github.com/symdex/symdex/internal/types"
)

// ErrorType classifies errors for diagnostics
type ErrorType string

const (
	ErrorTypeConfig    ErrorType = "config"
	ErrorTypeFile      ErrorType = "file"
	ErrorTypeFrontend  ErrorType = "frontend"
	ErrorTypeCollision ErrorType = "collision"
	ErrorTypeInternal  ErrorType = "internal"
)

// ConfigError reports a malformed or missing setting. Configuration errors
// are fatal and abort the run before any indexing work begins.
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{Field: field, Value: value, Underlying: err}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
	}
	return fmt.Sprintf("config error for field %s: %v", e.Field, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// FileError reports a per-file front-end failure. These are recoverable: the
// file is logged and skipped, and the run continues.
type FileError struct {
	Path       string
	Stage      string
	Underlying error
}

// NewFileError creates a new per-file error with stage context
func NewFileError(stage, path string, err error) *FileError {
	return &FileError{Path: path, Stage: stage, Underlying: err}
}

// Error implements the error interface
func (e *FileError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Stage, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *FileError) Unwrap() error {
	return e.Underlying
}

// CollisionError reports two structurally different entities hashing to the
// same identity key. This is a resolver defect that would silently corrupt
// the index, so it is fatal and never swallowed.
type CollisionError struct {
	Key               types.IdentityKey
	ExistingSignature string
	NewSignature      string
}

// Error implements the error interface
func (e *CollisionError) Error() string {
	return fmt.Sprintf("identity collision on key %s: %q vs %q",
		e.Key, e.ExistingSignature, e.NewSignature)
}

// TotalFailureError reports that every work item in a run failed. Partial
// failures never raise this; only exhaustion of all work items does.
type TotalFailureError struct {
	Attempted int
	Errors    []error
}

// Error implements the error interface
func (e *TotalFailureError) Error() string {
	return fmt.Sprintf("all %d work items failed to index", e.Attempted)
}

// Unwrap returns all per-file errors for errors.Is/As
func (e *TotalFailureError) Unwrap() []error {
	return e.Errors
}
