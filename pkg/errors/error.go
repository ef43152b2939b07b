// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Validation errors (100-199): Invalid parameters, malformed signals and orders
//   - Connection errors (200-299): Network failures, timeouts, probe failures
//   - Strategy errors (400-499): Strategy registration, configuration, and runtime errors
//   - Trading errors (500-599): Order execution, risk vetoes, and position errors
//   - Lifecycle errors (600-699): Engine initialization and state-machine errors
//   - Market data errors (700-799): Quote fetching, normalization, and history errors
//   - Cache errors (800-899): Shared cache availability and lookup errors
//   - Journal errors (900-999): Audit journal storage errors
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeInvalidParameter, "invalid parameter value")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodeOrderRejected, "order rejected for %s", instrument)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeConnectionFailed, "gateway unreachable", originalErr)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodeRiskBlocked) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// IsRetryable reports whether an error is worth retrying: connection-level
// failures and venue rejections are retryable, validation and risk vetoes
// are not.
func IsRetryable(err error) bool {
	switch GetCode(err) {
	case ErrCodeConnectionFailed, ErrCodeConnectionTimeout, ErrCodeProbeFailed,
		ErrCodeNotConnected, ErrCodeOrderRejected, ErrCodeMarketDataFetchFailed:
		return true
	default:
		return false
	}
}

// InsufficientFundsError represents an error when the account cannot cover
// an order (e.g., the paper ledger's balance check before a fill).
type InsufficientFundsError struct {
	Required   float64 // Amount required to execute the order
	Available  float64 // Amount actually available
	Instrument string  // Optional: instrument context
	Message    string  // Human-readable message
}

// NewInsufficientFundsError creates a new InsufficientFundsError.
func NewInsufficientFundsError(required, available float64, instrument, message string) *InsufficientFundsError {
	return &InsufficientFundsError{
		Required:   required,
		Available:  available,
		Instrument: instrument,
		Message:    message,
	}
}

// NewInsufficientFundsErrorf creates a new InsufficientFundsError with a formatted message.
func NewInsufficientFundsErrorf(required, available float64, instrument, format string, args ...any) *InsufficientFundsError {
	return &InsufficientFundsError{
		Required:   required,
		Available:  available,
		Instrument: instrument,
		Message:    fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *InsufficientFundsError) Error() string {
	return e.Message
}

// IsInsufficientFundsError checks if an error is an InsufficientFundsError.
// It uses errors.As to check the error chain.
func IsInsufficientFundsError(err error) bool {
	var fundsErr *InsufficientFundsError

	return errors.As(err, &fundsErr)
}
