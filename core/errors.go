package core

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// APIError is a structured error reported by the LMS backend:
// either a non-2xx response or a `{success: false}` envelope.
type APIError struct {
	Status  int
	Message string
}

func (err *APIError) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("backend: %d %s", err.Status, http.StatusText(err.Status))
	}
	return err.Message
}

// IsAPIStatus reports whether err was caused by an APIError with the given status.
func IsAPIStatus(err error, status int) bool {
	apiErr, ok := errors.Cause(err).(*APIError)
	return ok && apiErr.Status == status
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
