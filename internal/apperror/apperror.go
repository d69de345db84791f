// Package apperror defines the domain errors shared by the service and
// repository layers. Handlers translate them to HTTP status codes.
//
// SENTINELS + WRAPPING:
// Each layer wraps what it gets with fmt.Errorf("...: %w", err), adding
// context without hiding the cause:
//
//	sqlite:  apperror.NotFound("image", id)
//	service: fmt.Errorf("service/image: liking: %w", err)
//	handler: errors.Is(err, apperror.ErrNotFound) → 404
//
// The handler never parses messages and the repository never knows about
// HTTP. AppError adds the text that is safe to show a visitor.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
)

// AppError is a domain error carrying a user-facing message.
type AppError struct {
	Err     error  // sentinel the error matches with errors.Is
	Message string // Human-readable error message
	Field   string // Optional: form field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports a missing row, e.g. NotFound("image", id).
func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// ValidationFailed reports bad input on one field.
func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation, e.g. a taken username.
func Conflict(resource, key string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s %s already exists", resource, key),
	}
}

// Unauthorized is returned when an operation needs a logged-in user.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}
