// Package errors defines the error taxonomy shared by the viewpack pipeline.
//
// Every failure surfaced by the watcher, the compiler, or the artifact writer
// is a *ViewError carrying an ErrorType. The type decides how the failure
// propagates: read failures are isolated to a single fragment, while watch
// and write failures stop the watch subsystem.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	// ErrorTypeConfig marks a ConfigurationError, e.g. a missing views directory.
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeWatch marks a WatchFailure of the underlying OS watch mechanism.
	ErrorTypeWatch ErrorType = "watch"
	// ErrorTypeRead marks a ReadFailure of a single fragment file.
	ErrorTypeRead ErrorType = "read"
	// ErrorTypeWrite marks a WriteFailure of the generated artifact.
	ErrorTypeWrite ErrorType = "write"
	// ErrorTypeValidation marks invalid user input such as configuration values.
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeInternal marks programming errors.
	ErrorTypeInternal ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeDirMissing     = "ERR_DIR_MISSING"
	ErrCodeNotADirectory  = "ERR_NOT_A_DIRECTORY"
	ErrCodeWatchBackend   = "ERR_WATCH_BACKEND"
	ErrCodeWatchLost      = "ERR_WATCH_LOST"
	ErrCodeReadFragment   = "ERR_READ_FRAGMENT"
	ErrCodeWriteArtifact  = "ERR_WRITE_ARTIFACT"
	ErrCodeArtifactFormat = "ERR_ARTIFACT_FORMAT"
	ErrCodeConfigInvalid  = "ERR_CONFIG_INVALID"
	ErrCodeInternal       = "ERR_INTERNAL"
)

// ViewError is a structured error type with context.
type ViewError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Path        string
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface.
func (e *ViewError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Path != "" {
		parts = append(parts, e.Path)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *ViewError) Unwrap() error {
	return e.Cause
}

// Is reports a match when target is a *ViewError with the same type and code.
func (e *ViewError) Is(target error) bool {
	var t *ViewError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *ViewError) WithContext(key string, value interface{}) *ViewError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithPath records the file or directory the error refers to.
func (e *ViewError) WithPath(path string) *ViewError {
	e.Path = path

	return e
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string, cause error) *ViewError {
	return &ViewError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewWatchError creates a watch failure. Watch failures stop the watch subsystem.
func NewWatchError(code, message string, cause error) *ViewError {
	return &ViewError{
		Type:        ErrorTypeWatch,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewReadError creates a fragment read failure. The affected fragment is
// skipped and the surrounding regeneration continues.
func NewReadError(code, message string, cause error) *ViewError {
	return &ViewError{
		Type:        ErrorTypeRead,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewWriteError creates an artifact write failure.
func NewWriteError(code, message string, cause error) *ViewError {
	return &ViewError{
		Type:        ErrorTypeWrite,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *ViewError {
	return &ViewError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *ViewError {
	return &ViewError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// IsType reports whether err is a *ViewError of the given type.
func IsType(err error, errType ErrorType) bool {
	var ve *ViewError
	if errors.As(err, &ve) {
		return ve.Type == errType
	}

	return false
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var ve *ViewError
	if errors.As(err, &ve) {
		return ve.Recoverable
	}

	return false
}

// IsFatal reports whether err must stop the watch subsystem.
func IsFatal(err error) bool {
	return IsType(err, ErrorTypeWatch) || IsType(err, ErrorTypeWrite)
}
