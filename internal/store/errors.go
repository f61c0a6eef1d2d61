package store

import (
	"fmt"
	"net/http"
	"strings"
)

// Error is a persistence error with an HTTP status code. Specific errors
// such as ErrRockNotFound refine a general one such as ErrNotFound, and
// errors.Is matches either.
type Error struct {
	Code    int    // HTTP status code
	Message string // User-facing message
	Err     error  // Underlying error (optional)

	parent *Error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is e or one of the errors e refines.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	for cur := e; cur != nil; cur = cur.parent {
		if cur == t {
			return true
		}
	}
	return false
}

// HTTPCode returns the HTTP status code associated with this error.
func (e *Error) HTTPCode() int { return e.Code }

// WithCause wraps an underlying error while still matching e.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
		parent:  e,
	}
}

func refine(parent *Error, msg string) *Error {
	return &Error{Code: parent.Code, Message: msg, parent: parent}
}

// Sentinel errors.
var (
	ErrNotFound = &Error{
		Code:    http.StatusNotFound,
		Message: "resource not found",
	}

	ErrAlreadyExists = &Error{
		Code:    http.StatusConflict,
		Message: "resource already exists",
	}

	ErrInvalidInput = &Error{
		Code:    http.StatusBadRequest,
		Message: "invalid input",
	}

	ErrUserNotFound    = refine(ErrNotFound, "user not found")
	ErrSessionNotFound = refine(ErrNotFound, "session not found")
	ErrTypeNotFound    = refine(ErrNotFound, "type not found")
	ErrRockNotFound    = refine(ErrNotFound, "rock not found")

	ErrEmailExists = refine(ErrAlreadyExists, "email already in use")
	ErrTypeExists  = refine(ErrAlreadyExists, "type already exists")
)

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
