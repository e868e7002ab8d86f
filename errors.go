package loadcache

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey reports a zero or empty Key passed to a facade
	// operation. Never retried, never reaches the store.
	ErrInvalidKey = errors.New("loadcache: invalid key")

	// ErrNilKeys reports a nil key slice passed to LoadMany.
	ErrNilKeys = errors.New("loadcache: nil keys")
)

// DecodeError reports a stored payload that the configured codec could not
// decode. It propagates to the caller: a corrupt entry means a codec or
// version mismatch between writer and reader, and retrying cannot fix it.
type DecodeError struct {
	Key string // fully-qualified storage key
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("loadcache: decode %q: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
