package extraction

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyResponse     = errors.New("no data returned from the extraction service")
	ErrDecode            = errors.New("response could not be decoded into course records")
	ErrTimeout           = errors.New("extraction timed out")
	ErrMissingCredential = errors.New("extraction service credential not configured")
)

// Error is a per-image extraction failure. Message is readable by end users;
// Err keeps the underlying cause for logs and errors.Is.
type Error struct {
	Index   int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("image %d: %s", e.Index, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithIndex returns a copy of the error tagged with a 1-based image position.
func (e *Error) WithIndex(index int) *Error {
	c := *e
	c.Index = index
	return &c
}

func newError(message string, cause error) *Error {
	return &Error{Message: message, Err: cause}
}
