// Package errors provides centralized error definitions and error handling utilities
// for drawbridge. It defines domain-specific errors, semantic error types,
// error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - ServerError: asset server start/stop failures
//   - DecodeError: a diagram container that could not be decoded
//   - PersistError: create/write/trash failures on diagram files
//   - SessionError: errors related to editing sessions
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - AlreadyExistsError: resource already exists
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
//	err := errors.NewServerError("listen failed", errors.ErrPortInUse).WithPort(1717)
//	if errors.Is(err, errors.ErrPortInUse) { ... }
//
//	var decodeErr *errors.DecodeError
//	if errors.As(err, &decodeErr) { ... }
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: transient errors that may succeed on retry (a busy port, a timeout)
//   - UserFacing: errors safe to display in a notice
//   - Severity: Debug, Info, Warning, Error, Critical
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

// Asset server sentinel errors
var (
	// ErrPortInUse indicates the configured port is already bound by another process.
	ErrPortInUse = New("port already in use")
	// ErrRootMissing indicates the editor bundle directory does not exist.
	ErrRootMissing = New("root directory missing")
	// ErrBindFailed indicates a listener could not be created for a reason other than a busy port.
	ErrBindFailed = New("bind failed")
	// ErrServerNotRunning indicates an operation that requires a running server.
	ErrServerNotRunning = New("server not running")
)

// Codec sentinel errors
var (
	// ErrDecode indicates a diagram container could not be decoded into a model.
	ErrDecode = New("diagram decode failed")
	// ErrUnknownFormat indicates a path whose extension maps to no diagram format.
	ErrUnknownFormat = New("unknown diagram format")
)

// Persistence sentinel errors
var (
	// ErrFolderCreate indicates the destination folder could not be created.
	ErrFolderCreate = New("folder creation failed")
	// ErrWrite indicates a diagram or document could not be written.
	ErrWrite = New("write failed")
	// ErrRead indicates a diagram or document could not be read.
	ErrRead = New("read failed")
	// ErrTrash indicates a diagram could not be moved to the trash.
	ErrTrash = New("trash failed")
)

// Session sentinel errors
var (
	// ErrSessionNotFound indicates that a session could not be found.
	ErrSessionNotFound = New("session not found")
	// ErrSessionClosed indicates an operation on a session that already closed.
	ErrSessionClosed = New("session is closed")
	// ErrTargetClaimed indicates a diagram path already bound to another session.
	ErrTargetClaimed = New("target already bound to another session")
	// ErrAlreadyAttached indicates a second editor connection for one session.
	ErrAlreadyAttached = New("editor already attached")
)

// Protocol sentinel errors
var (
	// ErrMalformed indicates a message body that is not a valid protocol envelope.
	ErrMalformed = New("malformed message")
	// ErrUnknownEvent indicates an envelope carrying an event name outside the protocol.
	ErrUnknownEvent = New("unknown event")
	// ErrInvalidPayload indicates a known event whose payload fails validation.
	ErrInvalidPayload = New("invalid payload")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrOperationFailed indicates a general operation failure.
	ErrOperationFailed = New("operation failed")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// DrawbridgeError is the base interface for all drawbridge errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type DrawbridgeError interface {
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

// baseError provides common functionality for all error types.
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

// formatWithContext renders "prefix [k=v, ...]: message: cause".
func formatWithContext(prefix string, parts []string, message string, cause error) string {
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", prefix, strings.Join(parts, ", "))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ServerError represents a failure to start or stop the asset server.
// A busy port is retryable (the user may pick another port); any other
// bind failure is not.
//
// Example:
//
//	err := errors.NewServerError("listen failed", errors.ErrPortInUse).WithPort(1717)
//	fmt.Println(err) // "server error [port=1717]: listen failed: port already in use"
type ServerError struct {
	baseError
	Port    int
	RootDir string
}

// NewServerError creates a new ServerError.
func NewServerError(message string, cause error) *ServerError {
	return &ServerError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  errors.Is(cause, ErrPortInUse),
			userFacing: true,
		},
	}
}

// WithPort adds the port to the error context.
func (e *ServerError) WithPort(port int) *ServerError {
	e.Port = port
	return e
}

// WithRootDir adds the bundle root to the error context.
func (e *ServerError) WithRootDir(dir string) *ServerError {
	e.RootDir = dir
	return e
}

// Error returns the formatted error message.
func (e *ServerError) Error() string {
	var parts []string
	if e.Port != 0 {
		parts = append(parts, fmt.Sprintf("port=%d", e.Port))
	}
	if e.RootDir != "" {
		parts = append(parts, fmt.Sprintf("root=%s", e.RootDir))
	}
	return formatWithContext("server error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ServerError) Is(target error) bool {
	if _, ok := target.(*ServerError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// DecodeError represents a diagram container that could not be turned into a model.
// Decode failures are never fatal: callers treat them as "no model available".
//
// Example:
//
//	err := errors.NewDecodeError("content attribute missing", nil).WithVariant("svg")
type DecodeError struct {
	baseError
	Variant string
	Path    string
}

// NewDecodeError creates a new DecodeError.
func NewDecodeError(message string, cause error) *DecodeError {
	return &DecodeError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithVariant adds the container variant to the error context.
func (e *DecodeError) WithVariant(variant string) *DecodeError {
	e.Variant = variant
	return e
}

// WithPath adds the diagram path to the error context.
func (e *DecodeError) WithPath(path string) *DecodeError {
	e.Path = path
	return e
}

// Error returns the formatted error message.
func (e *DecodeError) Error() string {
	var parts []string
	if e.Variant != "" {
		parts = append(parts, fmt.Sprintf("variant=%s", e.Variant))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}
	return formatWithContext("decode error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *DecodeError) Is(target error) bool {
	if _, ok := target.(*DecodeError); ok {
		return true
	}
	if errors.Is(target, ErrDecode) {
		return true
	}
	return e.baseError.Is(target)
}

// PersistError represents a failed create, write, or trash of a diagram file
// or host document. The session stays open after one of these so the user can retry.
//
// Example:
//
//	err := errors.NewPersistError("create", "drawio/a.drawio.svg", errors.ErrWrite)
type PersistError struct {
	baseError
	Op   string
	Path string
}

// NewPersistError creates a new PersistError.
func NewPersistError(op, path string, cause error) *PersistError {
	return &PersistError{
		baseError: baseError{
			message:    fmt.Sprintf("%s failed", op),
			cause:      cause,
			severity:   SeverityError,
			retryable:  true,
			userFacing: true,
		},
		Op:   op,
		Path: path,
	}
}

// Error returns the formatted error message.
func (e *PersistError) Error() string {
	var parts []string
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}
	return formatWithContext("persist error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *PersistError) Is(target error) bool {
	if _, ok := target.(*PersistError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// SessionError represents errors related to editing sessions.
//
// Example:
//
//	err := errors.NewSessionError("attach failed", errors.ErrAlreadyAttached).WithInstanceID(id)
type SessionError struct {
	baseError
	InstanceID string
	TargetPath string
}

// NewSessionError creates a new SessionError.
func NewSessionError(message string, cause error) *SessionError {
	return &SessionError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithInstanceID adds the session instance ID to the error context.
func (e *SessionError) WithInstanceID(id string) *SessionError {
	e.InstanceID = id
	return e
}

// WithTargetPath adds the bound diagram path to the error context.
func (e *SessionError) WithTargetPath(path string) *SessionError {
	e.TargetPath = path
	return e
}

// Error returns the formatted error message.
func (e *SessionError) Error() string {
	var parts []string
	if e.InstanceID != "" {
		parts = append(parts, fmt.Sprintf("instance=%s", e.InstanceID))
	}
	if e.TargetPath != "" {
		parts = append(parts, fmt.Sprintf("target=%s", e.TargetPath))
	}
	return formatWithContext("session error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *SessionError) Is(target error) bool {
	if _, ok := target.(*SessionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("session", "abc123")
//	fmt.Println(err) // "session 'abc123' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a resource that already exists.
//
// Example:
//
//	err := errors.NewAlreadyExistsError("diagram", "drawio/a.drawio.svg")
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' already exists", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// Error returns the formatted error message.
func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s '%s' already exists", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("port out of range").WithField("server.port").WithValue(0)
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
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return formatWithContext("validation error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for export reply", 5*time.Second)
//	fmt.Println(err) // "timeout error: waiting for export reply (timeout: 5s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
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
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. This checks for:
//   - Errors implementing DrawbridgeError with IsRetryable() returning true
//   - Errors wrapping ErrTimeout or ErrPortInUse
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var dbErr DrawbridgeError
	if As(err, &dbErr) {
		return dbErr.IsRetryable()
	}

	return Is(err, ErrTimeout) || Is(err, ErrPortInUse)
}

// IsUserFacing returns true if the error message is safe to display to end users.
//
// Example:
//
//	if errors.IsUserFacing(err) {
//	    notify(err.Error())
//	} else {
//	    notify("An internal error occurred")
//	    logger.Error("internal error", "error", err)
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var dbErr DrawbridgeError
	return As(err, &dbErr) && dbErr.IsUserFacing()
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement DrawbridgeError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var dbErr DrawbridgeError
	if As(err, &dbErr) {
		return dbErr.Severity()
	}

	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike fmt.Errorf with %w, this returns nil for a nil error.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to persist export")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

