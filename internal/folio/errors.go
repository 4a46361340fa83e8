package folio

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure a caller is expected to handle unwraps to one of these.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")

	// ErrInvalidToken is the Unauthorized kind returned by token validation.
	ErrInvalidToken = fmt.Errorf("%w: invalid token", ErrUnauthorized)
)

// Error is a classified failure with a message fit for the caller.
type Error struct {
	Kind   error
	Detail string
}

func (e *Error) Error() string { return e.Detail }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Detail returns the caller-facing message of err, or "" if err is not a classified Error.
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return ""
}
