package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Authentication errors (1xxx)
	ErrCodeAuthenticationFailed ErrorCode = "BQS1001"
	ErrCodeCredentialsNotFound  ErrorCode = "BQS1002"
	ErrCodeCredentialsInvalid   ErrorCode = "BQS1003"

	// Configuration errors (2xxx)
	ErrCodeConfigNotFound ErrorCode = "BQS2001"
	ErrCodeConfigInvalid  ErrorCode = "BQS2002"
	ErrCodeConfigMissing  ErrorCode = "BQS2003"

	// Warehouse errors (3xxx)
	ErrCodeNotFound           ErrorCode = "BQS3001"
	ErrCodeAlreadyExists      ErrorCode = "BQS3002"
	ErrCodePermissionDenied   ErrorCode = "BQS3003"
	ErrCodeServiceUnavailable ErrorCode = "BQS3004"
	ErrCodeQuotaExceeded      ErrorCode = "BQS3005"
	ErrCodeWarehouse          ErrorCode = "BQS3999"

	// Query errors (4xxx)
	ErrCodeQueryExecution ErrorCode = "BQS4001"
	ErrCodeQueryInvalid   ErrorCode = "BQS4002"
	ErrCodeTimeout        ErrorCode = "BQS4003"

	// Validation errors (6xxx)
	ErrCodeValidationFailed ErrorCode = "BQS6001"
	ErrCodeInvalidInput     ErrorCode = "BQS6002"
	ErrCodeUserInput        ErrorCode = "BQS6003"

	// System errors (9xxx)
	ErrCodeInternal      ErrorCode = "BQS9001"
	ErrCodeFileOperation ErrorCode = "BQS9002"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL" // Run cannot continue
	SeverityError    ErrorSeverity = "ERROR"    // Operation failed
	SeverityWarning  ErrorSeverity = "WARNING"  // Operation succeeded with issues
	SeverityInfo     ErrorSeverity = "INFO"     // Informational, not an error
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Stack       string
	Timestamp   time.Time
	Recoverable bool
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another AppError by code
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  SeverityError,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
		Timestamp: time.Now(),
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	// Inherit context from a wrapped AppError
	var ae *AppError
	if errors.As(err, &ae) {
		for k, v := range ae.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// AsRecoverable marks the error as recoverable
func (e *AppError) AsRecoverable() *AppError {
	e.Recoverable = true
	return e
}

func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			b.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return b.String()
}

// Common error constructors

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSeverity(SeverityCritical).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' flag or configuration value", field),
			"Run 'bqstats init' to write a configuration file",
		)
}

// MissingConfigError reports required settings that were not provided
func MissingConfigError(fields ...string) *AppError {
	return New(ErrCodeConfigMissing, fmt.Sprintf("Missing required settings: %s", strings.Join(fields, ", "))).
		WithContext("fields", fields).
		WithSeverity(SeverityCritical).
		WithSuggestions(
			"Pass --project_id and --service_account_file",
			"Or set BQSTATS_PROJECT_ID and BQSTATS_SERVICE_ACCOUNT_FILE",
		)
}

// AuthError creates an authentication error for a credential file
func AuthError(code ErrorCode, message, path string, cause error) *AppError {
	var err *AppError
	if cause != nil {
		err = Wrap(cause, code, message)
	} else {
		err = New(code, message)
	}
	return err.
		WithContext("credentials_file", path).
		WithSeverity(SeverityCritical).
		WithSuggestions(
			"Verify the service account key file path",
			"Download a fresh JSON key for the service account",
			"Grant BigQuery Data Editor, Data Viewer and Job User roles",
		)
}

// QueryError creates a query execution error
func QueryError(message string, query string, cause error) *AppError {
	err := Wrap(cause, ErrCodeQueryExecution, message).
		WithContext("query", truncateString(query, 200))

	switch GetErrorCode(cause) {
	case ErrCodePermissionDenied:
		_ = err.WithSuggestions(
			"Grant the service account BigQuery Job User",
			"Grant BigQuery Data Viewer on the scanned dataset",
		)
	case ErrCodeQuotaExceeded:
		_ = err.WithSuggestions("Retry later or raise the project query quota")
	case ErrCodeTimeout:
		_ = err.WithSuggestions("Increase --timeout")
	}

	return err
}

// ValidationError creates a validation error
func ValidationError(field string, value interface{}, reason string) *AppError {
	return New(ErrCodeValidationFailed, fmt.Sprintf("Validation failed for %s: %s", field, reason)).
		WithContext("field", field).
		WithContext("value", value).
		WithSeverity(SeverityWarning)
}

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Recoverable
	}
	return false
}

// IsNotFound reports whether err carries ErrCodeNotFound anywhere in its chain
func IsNotFound(err error) bool {
	return HasCode(err, ErrCodeNotFound)
}

// IsAuthenticationError reports whether err is any of the credential failures
func IsAuthenticationError(err error) bool {
	return HasCode(err, ErrCodeAuthenticationFailed) ||
		HasCode(err, ErrCodeCredentialsNotFound) ||
		HasCode(err, ErrCodeCredentialsInvalid)
}

// HasCode reports whether any AppError in the chain has the given code
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
