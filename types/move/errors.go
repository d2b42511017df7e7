package move

import (
	"errors"
	"fmt"
)

// Sentinel causes carried by EncodingError
var (
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrInvalidAddress    = errors.New("invalid account address")
	ErrInvalidTypeTag    = errors.New("invalid type tag")
	ErrInvalidValue      = errors.New("invalid move value")
)

// EncodingError reports a malformed identifier, address, type tag or argument.
// It is always produced locally, before anything is sent to a node.
type EncodingError struct {
	Input string
	Err   error
}

func (e *EncodingError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("encoding error: %v", e.Err)
	}
	return fmt.Sprintf("encoding error: %v: %q", e.Err, e.Input)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

func encodingErr(cause error, input string) error {
	return &EncodingError{Input: input, Err: cause}
}

func encodingErrf(cause error, format string, args ...any) error {
	return &EncodingError{Err: fmt.Errorf("%w: %s", cause, fmt.Sprintf(format, args...))}
}
