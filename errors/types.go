package errors

import (
	"fmt"
)

// ErrorCode represents different categories of errors
type ErrorCode string

const (
	// ErrCodeValidation indicates malformed or out-of-range input
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeAuthorization indicates a caller identity lacking a required capability
	ErrCodeAuthorization ErrorCode = "AUTHORIZATION"

	// ErrCodeNotFound indicates an unknown identifier
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeInsufficientBalance indicates a debit exceeding the holder's balance
	ErrCodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"

	// ErrCodeNotWhitelisted indicates a recipient without eligibility for a token id
	ErrCodeNotWhitelisted ErrorCode = "NOT_WHITELISTED"

	// ErrCodeInactiveInstrument indicates an operation against a deactivated instrument
	ErrCodeInactiveInstrument ErrorCode = "INACTIVE_INSTRUMENT"

	// ErrCodeZeroConversion indicates a conversion whose computed equity amount is zero
	ErrCodeZeroConversion ErrorCode = "ZERO_CONVERSION"

	// ErrCodeUnsupportedOperation indicates an unknown operation envelope tag
	ErrCodeUnsupportedOperation ErrorCode = "UNSUPPORTED_OPERATION"

	// ErrCodeUpstream indicates a failed or non-success relay trigger call
	ErrCodeUpstream ErrorCode = "UPSTREAM_FAILURE"

	// ErrCodeDatabase indicates database operation errors
	ErrCodeDatabase ErrorCode = "DATABASE"

	// ErrCodeNetwork indicates network-related errors
	ErrCodeNetwork ErrorCode = "NETWORK"

	// ErrCodeConfig indicates configuration errors
	ErrCodeConfig ErrorCode = "CONFIG"

	// ErrCodeInternal indicates internal system errors
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Error is a categorized error carried across the ledger and orchestration
// layers. The Code drives HTTP status mapping at the API boundary.
type Error struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// New creates a new categorized Error.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new categorized Error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// WithCause attaches an underlying cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}
