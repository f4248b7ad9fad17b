package types

import "fmt"

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeForbidden         ErrorType = "forbidden"
	ErrorTypeAuthentication    ErrorType = "authentication"
	ErrorTypeInvalidTransition ErrorType = "invalid_transition"
	ErrorTypeConflict          ErrorType = "conflict"
	ErrorTypeStore             ErrorType = "store"
)

// LedgerError represents a structured error in the ledger system
type LedgerError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *LedgerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *LedgerError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new validation error
func NewValidationError(code, message string, details map[string]interface{}) *LedgerError {
	return &LedgerError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(code, message string) *LedgerError {
	return &LedgerError{
		Type:    ErrorTypeNotFound,
		Code:    code,
		Message: message,
	}
}

// NewForbiddenError creates a new forbidden error
func NewForbiddenError(code, message string) *LedgerError {
	return &LedgerError{
		Type:    ErrorTypeForbidden,
		Code:    code,
		Message: message,
	}
}

// NewAuthenticationError creates a new authentication error
func NewAuthenticationError(code, message string) *LedgerError {
	return &LedgerError{
		Type:    ErrorTypeAuthentication,
		Code:    code,
		Message: message,
	}
}

// NewInvalidTransitionError creates a new invalid transition error naming the
// current and attempted status
func NewInvalidTransitionError(current, attempted RequestStatus) *LedgerError {
	return &LedgerError{
		Type:    ErrorTypeInvalidTransition,
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition access request from %q to %q", current, attempted),
		Details: map[string]interface{}{
			"current_status":   string(current),
			"attempted_status": string(attempted),
		},
	}
}

// NewStoreError creates a new store error wrapping the underlying cause
func NewStoreError(code, message string, cause error) *LedgerError {
	return &LedgerError{
		Type:    ErrorTypeStore,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Common error codes
const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeStoreFailure      = "STORE_FAILURE"
	ErrCodeAuditFailure      = "AUDIT_FAILURE"
)
