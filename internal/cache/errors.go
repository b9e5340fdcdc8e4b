package cache

import (
	"errors"
	"fmt"
)

// IOError reports a failed cache write or removal. Callers writing the
// durable tier treat it as a signal to fall back to the ephemeral tier.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// IsIOError reports whether err carries an *IOError.
func IsIOError(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}
