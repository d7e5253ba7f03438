// Package errors provides structured error handling for nmaptrace operations.
// It defines error codes, error types, and utilities for creating and
// inspecting errors with context and structured information.
package errors

import (
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCanceled      ErrorCode = "CANCELED"

	// Tool invocation errors.
	CodeToolNotFound    ErrorCode = "TOOL_NOT_FOUND"
	CodeExecutionFailed ErrorCode = "EXECUTION_FAILED"

	// Scanning errors.
	CodeScanFailed    ErrorCode = "SCAN_FAILED"
	CodeTargetInvalid ErrorCode = "TARGET_INVALID"

	// File system errors.
	CodeFileNotFound    ErrorCode = "FILE_NOT_FOUND"
	CodeFilePermission  ErrorCode = "FILE_PERMISSION"
	CodeDirectoryCreate ErrorCode = "DIRECTORY_CREATE"
)

// ScanError represents an error that occurred during scanning operations.
type ScanError struct {
	Code      ErrorCode
	Message   string
	Target    string
	Operation string
	Cause     error
	Context   map[string]interface{}
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("[%s] %s (target: %s)", e.Code, e.Message, e.Target)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *ScanError) WithContext(key string, value interface{}) *ScanError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewScanError creates a new scan error with the specified code and message.
func NewScanError(code ErrorCode, message string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// NewScanErrorWithTarget creates a scan error for a specific target.
func NewScanErrorWithTarget(code ErrorCode, message, target string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Target:  target,
		Context: make(map[string]interface{}),
	}
}

// WrapScanError wraps an existing error as a scan error.
func WrapScanError(code ErrorCode, message string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// WrapScanErrorWithTarget wraps an error with target information.
func WrapScanErrorWithTarget(code ErrorCode, message, target string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Target:  target,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// ExecError represents errors from invoking the external nmap binary.
type ExecError struct {
	Code     ErrorCode
	Message  string
	Command  string
	ExitCode int
	Cause    error
	Context  map[string]interface{}
}

// Error implements the error interface.
func (e *ExecError) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("[%s] %s (command: %s)", e.Code, e.Message, e.Command)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ExecError) Unwrap() error {
	return e.Cause
}

// WithCommand records the command line that produced the error.
func (e *ExecError) WithCommand(command string) *ExecError {
	e.Command = command
	return e
}

// NewExecError creates a new execution error.
func NewExecError(code ErrorCode, message string) *ExecError {
	return &ExecError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// WrapExecError wraps an existing error as an execution error.
func WrapExecError(code ErrorCode, message string, err error) *ExecError {
	return &ExecError{
		Code:    code,
		Message: message,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new configuration error.
func NewConfigError(code ErrorCode, message string) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
	}
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Field:   field,
		Value:   value,
	}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, err error) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Utility functions for common error operations

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	switch e := err.(type) {
	case *ScanError:
		return e.Code == code
	case *ExecError:
		return e.Code == code
	case *ConfigError:
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error if it has one.
func GetCode(err error) ErrorCode {
	switch e := err.(type) {
	case *ScanError:
		return e.Code
	case *ExecError:
		return e.Code
	case *ConfigError:
		return e.Code
	}
	return CodeUnknown
}

// IsRetryable determines if an error indicates a retryable condition.
func IsRetryable(err error) bool {
	switch GetCode(err) {
	case CodeTimeout, CodeExecutionFailed:
		return true
	default:
		return false
	}
}

// IsFatal determines if an error indicates a fatal condition that should stop execution.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case CodeConfiguration, CodeToolNotFound, CodeFilePermission:
		return true
	default:
		return false
	}
}

// Common error creation functions

// ErrInvalidTarget creates an error for invalid scan targets.
func ErrInvalidTarget(target string) *ScanError {
	return NewScanErrorWithTarget(CodeTargetInvalid, "Invalid target specification", target)
}

// ErrScanTimeout creates an error for scan timeouts.
func ErrScanTimeout(target string) *ScanError {
	return NewScanErrorWithTarget(CodeTimeout, "Scan operation timed out", target)
}

// ErrToolNotFound creates an error for a missing nmap binary.
func ErrToolNotFound() *ExecError {
	return NewExecError(CodeToolNotFound,
		"nmap binary not found in PATH or known install locations")
}

// ErrExecTimeout creates an error for external command timeouts.
func ErrExecTimeout(command string) *ExecError {
	return NewExecError(CodeTimeout, "Command execution timed out").WithCommand(command)
}

// ErrConfigInvalid creates an error for invalid configuration.
func ErrConfigInvalid(field string, value interface{}) *ConfigError {
	return NewConfigFieldError(CodeValidation, "Invalid configuration value", field, value)
}

// ErrConfigMissing creates an error for missing required configuration.
func ErrConfigMissing(field string) *ConfigError {
	return NewConfigFieldError(CodeConfiguration, "Required configuration field missing", field, nil)
}
