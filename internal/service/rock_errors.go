package service

import (
	"errors"
	"fmt"
)

// RockErrorKind classifies a RockService failure. Each kind has a fixed
// HTTP rendering in the API layer.
type RockErrorKind int

const (
	// RockErrServer is an unexpected failure. 500.
	RockErrServer RockErrorKind = iota
	// RockErrInvalid covers every create failure: malformed input, an
	// unknown type, or a failed write. 400 with a reason.
	RockErrInvalid
	// RockErrNotFound means no rock has the requested id. 404.
	RockErrNotFound
	// RockErrForbidden means the caller does not own the rock. 403.
	RockErrForbidden
)

func (k RockErrorKind) String() string {
	switch k {
	case RockErrInvalid:
		return "invalid"
	case RockErrNotFound:
		return "not_found"
	case RockErrForbidden:
		return "forbidden"
	default:
		return "server"
	}
}

// RockError is the error returned by every RockService operation.
type RockError struct {
	Kind    RockErrorKind
	Message string
	Err     error
}

func (e *RockError) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *RockError) Unwrap() error { return e.Err }

// AsRockError extracts a *RockError from err's chain.
func AsRockError(err error) (*RockError, bool) {
	var rockErr *RockError
	ok := errors.As(err, &rockErr)
	return rockErr, ok
}

// IsRockErrorKind reports whether err is a RockError of kind.
func IsRockErrorKind(err error, kind RockErrorKind) bool {
	rockErr, ok := AsRockError(err)
	return ok && rockErr.Kind == kind
}

func invalidRock(format string, args ...any) *RockError {
	return &RockError{Kind: RockErrInvalid, Message: fmt.Sprintf(format, args...)}
}

func rockNotFound(message string) *RockError {
	return &RockError{Kind: RockErrNotFound, Message: message}
}

func rockServerError(message string, err error) *RockError {
	return &RockError{Kind: RockErrServer, Message: message, Err: err}
}
