// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies an AppError
type ErrorType string

const (
	ErrorTypeInput      ErrorType = "input_error"
	ErrorTypeGeneration ErrorType = "generation_error"
	ErrorTypeCache      ErrorType = "cache_error"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeError      ErrorType = "processing_error"
)

// AppError carries a short user-facing message and, separately, the technical
// cause. Only Message is ever shown to a user.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string
}

// Error implements error
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the technical cause
func (e *AppError) Unwrap() error {
	return e.Err
}

// UserMessage is the text safe to surface to the caller
func (e *AppError) UserMessage() string {
	return e.Message
}

// NewAppError builds an AppError of the given type
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewInputError is raised before any remote call when the user input is unusable
func NewInputError(message string) *AppError {
	return NewAppError(ErrorTypeInput, message, nil)
}

// NewGenerationError wraps any failure of the text, image or video capability
func NewGenerationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeGeneration, message, originalError)
}

// NewCacheError wraps a session cache read or write failure
func NewCacheError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeCache, message, originalError)
}

func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

func NewConflictError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConflict, message, originalError)
}

func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

// TypeOf returns the ErrorType of the first AppError in the chain
func TypeOf(err error) (ErrorType, bool) {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type, true
	}
	return "", false
}

func IsInputError(err error) bool {
	t, ok := TypeOf(err)
	return ok && t == ErrorTypeInput
}

func IsGenerationError(err error) bool {
	t, ok := TypeOf(err)
	return ok && t == ErrorTypeGeneration
}

func IsCacheError(err error) bool {
	t, ok := TypeOf(err)
	return ok && t == ErrorTypeCache
}

func IsNotFoundError(err error) bool {
	t, ok := TypeOf(err)
	return ok && t == ErrorTypeNotFound
}

func IsConflictError(err error) bool {
	t, ok := TypeOf(err)
	return ok && t == ErrorTypeConflict
}

// UserMessage extracts the user-facing message of err. Errors that are not
// AppErrors are replaced with a generic message so technical detail never leaks.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Message
	}
	return "An unexpected error occurred."
}

func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeInput:
		return "INPUT_ERROR"
	case ErrorTypeGeneration:
		return "GENERATION_FAILED"
	case ErrorTypeCache:
		return "CACHE_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeConflict:
		return "CONFLICT"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}
