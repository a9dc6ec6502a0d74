package common

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeConfiguration for configuration-related errors
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeValidation for validation errors (malformed project URL, bad payload)
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeAuth for authentication/authorization errors from Jira
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeJira for Jira API errors (unexpected status, not found)
	ErrorTypeJira ErrorType = "jira"
	// ErrorTypeNetwork for transport-level errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeCreate for issue creation failures
	ErrorTypeCreate ErrorType = "create"
	// ErrorTypeRegistration for webhook registration failures
	ErrorTypeRegistration ErrorType = "registration"
	// ErrorTypeStorage for storage/persistence errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeInternal for internal system errors
	ErrorTypeInternal ErrorType = "internal"
)

// Well-known error codes used across the bridge.
const (
	CodeMalformedURL    = "malformed_url"
	CodeProjectNotFound = "project_not_found"
	CodeIssueNotFound   = "issue_not_found"
	CodeBadStatus       = "bad_status"
	CodeCreateFailed    = "create_failed"
	CodeTransitionError = "transition_failed"
	CodeWebhookError    = "webhook_failed"
)

// BridgeError represents a structured error with context
type BridgeError struct {
	Type      ErrorType              `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"-"`
}

// Error implements the error interface
func (e *BridgeError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Type, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *BridgeError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *BridgeError) WithContext(key string, value interface{}) *BridgeError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails sets the detail string
func (e *BridgeError) WithDetails(details string) *BridgeError {
	e.Details = details
	return e
}

// WithCause sets the underlying cause
func (e *BridgeError) WithCause(cause error) *BridgeError {
	e.Cause = cause
	return e
}

// NewError creates a new BridgeError
func NewError(errorType ErrorType, code, message string) *BridgeError {
	return &BridgeError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewValidationError creates a validation error
func NewValidationError(code, message string) *BridgeError {
	return NewError(ErrorTypeValidation, code, message)
}

// NewAuthError creates an authentication error
func NewAuthError(code, message string) *BridgeError {
	return NewError(ErrorTypeAuth, code, message)
}

// NewJiraError creates a Jira API error
func NewJiraError(code, message string) *BridgeError {
	return NewError(ErrorTypeJira, code, message)
}

// NewNetworkError creates a transport error
func NewNetworkError(code, message string) *BridgeError {
	return NewError(ErrorTypeNetwork, code, message)
}

// NewCreateError creates an issue-creation error
func NewCreateError(code, message string) *BridgeError {
	return NewError(ErrorTypeCreate, code, message)
}

// NewRegistrationError creates a webhook-registration error
func NewRegistrationError(code, message string) *BridgeError {
	return NewError(ErrorTypeRegistration, code, message)
}

// NewStorageError creates a storage error
func NewStorageError(code, message string) *BridgeError {
	return NewError(ErrorTypeStorage, code, message)
}

// WrapError wraps an existing error with BridgeError context
func WrapError(err error, errorType ErrorType, code, message string) *BridgeError {
	return &BridgeError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     err,
	}
}

// IsErrorType reports whether err is a BridgeError of the given type.
func IsErrorType(err error, errorType ErrorType) bool {
	var be *BridgeError
	if errors.As(err, &be) {
		return be.Type == errorType
	}
	return false
}

// IsErrorCode reports whether err is a BridgeError carrying the given code.
func IsErrorCode(err error, code string) bool {
	var be *BridgeError
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}
