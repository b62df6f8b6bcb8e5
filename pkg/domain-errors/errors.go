// Package dErrors provides coded domain errors. Services return these so
// handlers can translate outcomes to HTTP statuses without inspecting error
// strings. Store-level facts use pkg/platform/sentinel instead; services wrap
// them into coded errors at the boundary.
package dErrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	// CodeInvalidTransition marks a requested event that the transition table
	// does not allow from the entity's current state. Recoverable; nothing
	// was mutated.
	CodeInvalidTransition Code = "invalid_transition"

	// CodePreconditionFailed marks a cross-entity gate failure, e.g. a payment
	// verification attempted before the evaluation report was approved.
	CodePreconditionFailed Code = "precondition_failed"

	// CodePersistence marks a failed durable write. The whole operation is
	// rolled back; callers may retry.
	CodePersistence Code = "persistence_failure"

	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal"
)

// Error is a coded error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the status handlers should write.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidTransition, CodePreconditionFailed:
		return http.StatusConflict
	case CodeConflict:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodePersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
