package fetch

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	// Cancelled means the caller's context ended the fetch.
	Cancelled ErrorKind = "cancelled"
	// AuthExhausted means no usable credential could be obtained, including
	// a second 401 after re-authenticating.
	AuthExhausted ErrorKind = "auth_exhausted"
	// FetchFailed wraps a non-authentication API failure.
	FetchFailed ErrorKind = "fetch_failed"
)

type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a fetch error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == kind
}
