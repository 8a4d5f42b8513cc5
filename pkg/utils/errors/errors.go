package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of an error
type ErrorType uint

const (
	// ErrorTypeUnknown represents an unknown error
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeInvalidConfiguration represents a rejected input, such as a
	// non-positive step count, path count, volatility or maturity
	ErrorTypeInvalidConfiguration
	// ErrorTypeUnsupportedOperation represents a payoff entry point that the
	// option variant does not provide
	ErrorTypeUnsupportedOperation
	// ErrorTypeNumericDegeneracy represents a NaN/Inf or a vanishing horizon
	// that would otherwise leak into a result
	ErrorTypeNumericDegeneracy
	// ErrorTypeInternal represents an internal error
	ErrorTypeInternal
)

// String returns the metric/log friendly name of the error type
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeInvalidConfiguration:
		return "invalid_configuration"
	case ErrorTypeUnsupportedOperation:
		return "unsupported_operation"
	case ErrorTypeNumericDegeneracy:
		return "numeric_degeneracy"
	case ErrorTypeInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error returns the error message
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by type so that errors.Is(err, ErrUnsupported)
// holds for every UnsupportedOperation error.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Type == e.Type
}

// New creates a new error with the given message
func New(message string) error {
	return &AppError{
		Type:    ErrorTypeUnknown,
		Message: message,
	}
}

// Wrap wraps an error with a message, keeping the type of the wrapped error
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Type:    TypeOf(err),
		Message: message,
		Err:     err,
	}
}

// Wrapf wraps an error with a formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// TypeOf returns the type of the first AppError in the chain
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether any AppError in the chain has the given type
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Type == errType {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// InvalidConfigurationf creates a new InvalidConfiguration error
func InvalidConfigurationf(format string, args ...interface{}) error {
	return &AppError{
		Type:    ErrorTypeInvalidConfiguration,
		Message: fmt.Sprintf(format, args...),
	}
}

// UnsupportedOperationf creates a new UnsupportedOperation error
func UnsupportedOperationf(format string, args ...interface{}) error {
	return &AppError{
		Type:    ErrorTypeUnsupportedOperation,
		Message: fmt.Sprintf(format, args...),
	}
}

// NumericDegeneracyf creates a new NumericDegeneracy error
func NumericDegeneracyf(format string, args ...interface{}) error {
	return &AppError{
		Type:    ErrorTypeNumericDegeneracy,
		Message: fmt.Sprintf(format, args...),
	}
}

// Internalf creates a new Internal error
func Internalf(format string, args ...interface{}) error {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: fmt.Sprintf(format, args...),
	}
}

// Sentinels for errors.Is checks against a whole category
var (
	ErrInvalidConfiguration = &AppError{Type: ErrorTypeInvalidConfiguration}
	ErrUnsupported          = &AppError{Type: ErrorTypeUnsupportedOperation}
	ErrNumericDegeneracy    = &AppError{Type: ErrorTypeNumericDegeneracy}
)
