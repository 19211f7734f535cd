package state

import (
	"errors"
	"fmt"
)

var (
	// ErrBodyOnRead is the failure of an execute that sends a body to a GET endpoint.
	ErrBodyOnRead = errors.New("request body on a read endpoint")

	// ErrMissingID is the failure of an execute that omits the ID an endpoint needs.
	ErrMissingID = errors.New("endpoint requires an id")
)

// DecodeError is a 2xx response whose body does not decode into the
// store's payload type.
type DecodeError struct {
	Store string
	Type  string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode %s: %v", e.Store, e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
