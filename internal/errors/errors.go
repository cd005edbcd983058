// Package errors provides centralized error definitions and error handling utilities
// for tandem. It defines domain-specific errors, semantic error types, error
// constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent failures from specific subsystems:
//   - ConfigurationError: a pipeline cannot be configured (e.g. the preview
//     provider is missing); fatal to that pipeline's startup
//   - SourceIntrospectionError: exported-symbol discovery failed while the shim
//     generator was loading its virtual module
//   - ProcessError: a supervised child process failed to spawn or had to be
//     force-killed after ignoring its termination signal
//   - BuildError: the bundler reported errors for a pipeline
//
// Semantic errors represent common error conditions:
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
//	err := errors.NewConfigurationError("renderer preview server not found", errors.ErrProviderNotFound).
//		WithPipeline("main")
//
//	if errors.Is(err, errors.ErrProviderNotFound) { ... }
//
//	var cfgErr *errors.ConfigurationError
//	if errors.As(err, &cfgErr) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Configuration sentinel errors
var (
	// ErrProviderNotFound indicates that no preview provider capability was
	// present in a pipeline's plugin list.
	ErrProviderNotFound = New("preview provider not found")
	// ErrInvalidConfig indicates that a configuration value is unusable.
	ErrInvalidConfig = New("invalid configuration")
	// ErrNoResolvedURL indicates that the preview server has no local URL.
	ErrNoResolvedURL = New("preview server has no resolved local url")
)

// Source sentinel errors
var (
	// ErrExportResolution indicates that the export names of a module could
	// not be determined.
	ErrExportResolution = New("cannot resolve module exports")
)

// Process sentinel errors
var (
	// ErrSpawnFailed indicates that a child process could not be started.
	ErrSpawnFailed = New("child process failed to start")
	// ErrKillForced indicates that a child ignored its termination signal and
	// had to be killed.
	ErrKillForced = New("child process ignored termination signal")
	// ErrSupervisorClosed indicates an operation on a stopped supervisor.
	ErrSupervisorClosed = New("supervisor closed")
)

// Build sentinel errors
var (
	// ErrBuildFailed indicates that the bundler reported errors.
	ErrBuildFailed = New("build failed")
	// ErrServerClosed indicates an operation on a closed preview server.
	ErrServerClosed = New("preview server closed")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// TandemError is the base interface for all tandem errors.
type TandemError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// format renders "<kind> [k=v, ...]: message: cause".
func (e *baseError) format(kind string, parts []string) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ConfigurationError is raised during a pipeline's configuration phase. It is
// fatal to that pipeline and is returned before any file is watched.
//
// Example:
//
//	err := errors.NewConfigurationError("renderer preview server not found", errors.ErrProviderNotFound)
//	err = err.WithPipeline("preload").WithPlugin("tandem/preload-hot-reload")
//	fmt.Println(err) // "configuration error [pipeline=preload, plugin=...]: renderer preview server not found: preview provider not found"
type ConfigurationError struct {
	baseError
	Pipeline string
	Plugin   string
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(message string, cause error) *ConfigurationError {
	return &ConfigurationError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityCritical,
			userFacing: true,
		},
	}
}

// WithPipeline adds the pipeline name to the error context.
func (e *ConfigurationError) WithPipeline(name string) *ConfigurationError {
	e.Pipeline = name
	return e
}

// WithPlugin adds the plugin name to the error context.
func (e *ConfigurationError) WithPlugin(name string) *ConfigurationError {
	e.Plugin = name
	return e
}

// Error returns the formatted error message.
func (e *ConfigurationError) Error() string {
	var parts []string
	if e.Pipeline != "" {
		parts = append(parts, fmt.Sprintf("pipeline=%s", e.Pipeline))
	}
	if e.Plugin != "" {
		parts = append(parts, fmt.Sprintf("plugin=%s", e.Plugin))
	}
	return e.format("configuration error", parts)
}

// Is checks if this error matches the target.
func (e *ConfigurationError) Is(target error) bool {
	if _, ok := target.(*ConfigurationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// SourceIntrospectionError is raised when the export names of a module cannot be
// discovered. It fails the single virtual-module load that needed them.
type SourceIntrospectionError struct {
	baseError
	Entry string
}

// NewSourceIntrospectionError creates a new SourceIntrospectionError.
func NewSourceIntrospectionError(message string, cause error) *SourceIntrospectionError {
	return &SourceIntrospectionError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithEntry adds the introspected entry path to the error context.
func (e *SourceIntrospectionError) WithEntry(path string) *SourceIntrospectionError {
	e.Entry = path
	return e
}

// Error returns the formatted error message.
func (e *SourceIntrospectionError) Error() string {
	var parts []string
	if e.Entry != "" {
		parts = append(parts, fmt.Sprintf("entry=%s", e.Entry))
	}
	return e.format("source introspection error", parts)
}

// Is checks if this error matches the target.
func (e *SourceIntrospectionError) Is(target error) bool {
	if _, ok := target.(*SourceIntrospectionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ProcessError represents a child process lifecycle failure.
//
// Example:
//
//	err := errors.NewProcessError("terminate previous child", errors.ErrKillForced).
//		WithPID(4242).WithCommand("electron")
type ProcessError struct {
	baseError
	PID     int
	Command string
}

// NewProcessError creates a new ProcessError.
func NewProcessError(message string, cause error) *ProcessError {
	return &ProcessError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithPID adds a process ID to the error context.
func (e *ProcessError) WithPID(pid int) *ProcessError {
	e.PID = pid
	return e
}

// WithCommand adds the command name to the error context.
func (e *ProcessError) WithCommand(command string) *ProcessError {
	e.Command = command
	return e
}

// WithSeverity sets the error severity.
func (e *ProcessError) WithSeverity(s Severity) *ProcessError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *ProcessError) Error() string {
	var parts []string
	if e.PID > 0 {
		parts = append(parts, fmt.Sprintf("pid=%d", e.PID))
	}
	if e.Command != "" {
		parts = append(parts, fmt.Sprintf("command=%s", e.Command))
	}
	return e.format("process error", parts)
}

// Is checks if this error matches the target.
func (e *ProcessError) Is(target error) bool {
	if _, ok := target.(*ProcessError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// BuildError represents bundler failures for a pipeline. Messages holds the
// bundler's own diagnostics, one per entry.
type BuildError struct {
	baseError
	Pipeline string
	Messages []string
}

// NewBuildError creates a new BuildError.
func NewBuildError(pipeline string, messages []string) *BuildError {
	return &BuildError{
		baseError: baseError{
			message:    fmt.Sprintf("%d error(s)", len(messages)),
			cause:      ErrBuildFailed,
			severity:   SeverityError,
			retryable:  true,
			userFacing: true,
		},
		Pipeline: pipeline,
		Messages: messages,
	}
}

// Error returns the formatted error message.
func (e *BuildError) Error() string {
	var parts []string
	if e.Pipeline != "" {
		parts = append(parts, fmt.Sprintf("pipeline=%s", e.Pipeline))
	}
	msg := e.format("build error", parts)
	if len(e.Messages) > 0 {
		msg += "\n  " + strings.Join(e.Messages, "\n  ")
	}
	return msg
}

// Is checks if this error matches the target.
func (e *BuildError) Is(target error) bool {
	if _, ok := target.(*BuildError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			cause:      ErrInvalidInput,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds the offending field name.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithCause records a further sentinel the error matches, such as
// ErrInvalidConfig for a rejected pipeline definition.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = Join(e.cause, cause)
	return e
}

// WithValue adds the offending value.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		if e.Value != nil {
			return fmt.Sprintf("validation error: %s: %s (got: %v)", e.Field, e.message, e.Value)
		}
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.message)
	}
	return fmt.Sprintf("validation error: %s", e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that did not finish in time.
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    fmt.Sprintf("%s timed out after %v", operation, duration),
			cause:      ErrTimeout,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %v", e.Operation, e.Duration)
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var tandemErr TandemError
	if As(err, &tandemErr) {
		return tandemErr.IsRetryable()
	}
	return Is(err, ErrTimeout)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var tandemErr TandemError
	if As(err, &tandemErr) {
		return tandemErr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement TandemError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var tandemErr TandemError
	if As(err, &tandemErr) {
		return tandemErr.Severity()
	}
	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
