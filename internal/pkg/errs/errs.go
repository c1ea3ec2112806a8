/*
Package errs provides custom error types and application-level error code constants.

This file defines the CustomError struct, which implements the standard Go error interface
and carries a business code, a user-friendly message, an HTTP status code and an optional
underlying cause, so callers can present a message without losing the diagnostic detail.
*/
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"matchup/internal/pkg/logx"
)

// CustomError is the custom error structure used throughout the application.
type CustomError struct {
	// Code is the business error code (see constants definition).
	Code int

	// Message is the user-friendly error description.
	Message string

	// Status is the standard HTTP status code corresponding to this error.
	Status int

	// Err is the underlying cause, if any. It is never shown to end users.
	Err error
}

// Error implements the standard Go error interface.
func (e *CustomError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Error Code %d (HTTP %d): %s: %v", e.Code, e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("Error Code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *CustomError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *CustomError with the same code, so sentinel
// comparisons such as errors.Is(err, errs.NewError(errs.ErrTimeout)) work.
func (e *CustomError) Is(target error) bool {
	var t *CustomError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError constructs a new *CustomError based on a predefined error code.
// The optional details parameter supplies printf-style arguments for the message
// template. If an unknown code is provided, it defaults to returning ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]

	if !ok {
		logx.Error(
			fmt.Errorf("attempted to create an error with an unknown code in errorMap"),
			"Unknown error code requested",
			"requested_code", code,
		)

		unknownErr := errorMap[ErrUnknown]
		return &CustomError{
			Code:    unknownErr.Code,
			Message: unknownErr.Message,
			Status:  unknownErr.Status,
		}
	}

	customErr := templateErr

	if customErr.Status == 0 {
		customErr.Status = http.StatusOK
	}

	if len(details) > 0 {
		if strings.Contains(customErr.Message, "%") {
			customErr.Message = fmt.Sprintf(customErr.Message, details...)
		} else {
			logx.Warn(
				"Details provided for error, but message template has no formatting placeholders. Details ignored.",
				"code", code,
			)
		}
	}

	return &customErr
}

// Wrap builds the error for code and attaches cause as its underlying error.
func Wrap(code int, cause error) *CustomError {
	customErr := NewError(code)
	customErr.Err = cause
	return customErr
}

// CodeOf returns the business code carried by err, ErrUnknown for foreign errors
// and 0 for nil.
func CodeOf(err error) int {
	if err == nil {
		return 0
	}

	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr.Code
	}
	return ErrUnknown
}

// HasCode reports whether err carries the given business code.
func HasCode(err error, code int) bool {
	return err != nil && CodeOf(err) == code
}
