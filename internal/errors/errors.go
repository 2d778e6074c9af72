// Package errors defines the coded application errors shared by the service and HTTP layers.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes an AppError. The HTTP layer maps each code to a status.
type ErrorCode string

const (
	ErrCodeNotFound   ErrorCode = "not_found"
	ErrCodeConflict   ErrorCode = "conflict"
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeInvalidState means the bulk action's current status does not allow the operation.
	ErrCodeInvalidState ErrorCode = "invalid_state"
	// ErrCodeUnavailable means a backing Redis database could not be reached.
	ErrCodeUnavailable ErrorCode = "unavailable"
	// ErrCodeUnprocessable means a well-formed request could not be carried out, e.g. a
	// bulk action whose shard runners failed to prepare.
	ErrCodeUnprocessable ErrorCode = "unprocessable"
	ErrCodeInternal      ErrorCode = "internal"
	ErrCodeTimeout       ErrorCode = "timeout"
	ErrCodeCanceled      ErrorCode = "canceled"
)

// AppError is an error carrying a code, a client-safe message and an optional cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	// Field names the offending request field of a validation error.
	Field string
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *AppError) Unwrap() error { return e.Cause }

func newf(code ErrorCode, format string, args ...any) *AppError {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &AppError{Code: code, Message: msg}
}

// NotFound returns a not_found error.
func NotFound(message string) *AppError { return newf(ErrCodeNotFound, message) }

// NotFoundf returns a not_found error with a formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return newf(ErrCodeNotFound, format, args...)
}

// Conflictf returns a conflict error with a formatted message.
func Conflictf(format string, args ...any) *AppError {
	return newf(ErrCodeConflict, format, args...)
}

// Validation returns a validation error not tied to a single field.
func Validation(message string) *AppError { return newf(ErrCodeValidation, message) }

// ValidationField returns a validation error for one request field.
func ValidationField(field, message string) *AppError {
	err := newf(ErrCodeValidation, message)
	err.Field = field
	return err
}

// InvalidStatef returns an invalid_state error with a formatted message.
func InvalidStatef(format string, args ...any) *AppError {
	return newf(ErrCodeInvalidState, format, args...)
}

// Unavailablef returns an unavailable error with a formatted message.
func Unavailablef(format string, args ...any) *AppError {
	return newf(ErrCodeUnavailable, format, args...)
}

// Wrap attaches code and message to err. A nil err yields nil.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	appErr := newf(code, message)
	appErr.Cause = err
	return appErr
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	appErr := newf(code, format, args...)
	appErr.Cause = err
	return appErr
}

// GetCode returns the code of the outermost AppError in err's chain, or "" if there is none.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
