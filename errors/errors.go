package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrValidation         = fmt.Errorf("validation failed")
	ErrConflict           = fmt.Errorf("participant already exists")
	ErrNotFound           = fmt.Errorf("participant not found")
	ErrStoreUnavailable   = fmt.Errorf("store unavailable")
	ErrEmptyWords         = fmt.Errorf("no censored words have been provided")
	ErrInvalidCharacter   = fmt.Errorf("replacement must be a single character")
	ErrUnknownStoreDriver = fmt.Errorf("unknown store driver")
)

// ValidationError holds every violated constraint of a request, not only the first one.
type ValidationError struct {
	Violations []string
}

func NewValidationError(violations ...string) *ValidationError {
	return &ValidationError{Violations: violations}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(e.Violations, "; "))
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Unavailable wraps a collaborator failure so callers can match ErrStoreUnavailable.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// HTTPStatus maps the error taxonomy to the status codes expected by clients.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Violations returns the list carried by a ValidationError, or the error text otherwise.
func Violations(err error) []string {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Violations
	}
	return []string{err.Error()}
}
