package engine

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrNotFound reports that a path does not exist on the remote side.
var ErrNotFound = errors.New("not found")

// ErrListingDiscarded reports a listing that was in flight when Load
// replaced the mirror. Its result was dropped.
var ErrListingDiscarded = errors.New("listing discarded by snapshot load")

// IsNotFound reports whether err means the path is absent, locally or
// remotely.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

// ProtocolError is a failed remote command.
type ProtocolError struct {
	Err  error
	Op   string
	Path string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("remote %s %s: %v", e.Op, displayPath(e.Path), e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// IOError is a failed local filesystem operation.
type IOError struct {
	Err  error
	Op   string
	Path string
}

func (e *IOError) Error() string {
	return fmt.Sprintf("local %s %s: %v", e.Op, displayPath(e.Path), e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// SerializationError is an unreadable mirror snapshot.
type SerializationError struct {
	Err  error
	Path string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("snapshot %s: %v", e.Path, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

func displayPath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
