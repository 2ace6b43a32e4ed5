package transport

import (
	"context"
	"io"
	"os"
	"time"
)

// FileEntry is one row of a remote directory listing.
type FileEntry struct {
	ModTime   time.Time
	Name      string
	Size      int64
	Mode      os.FileMode
	IsSymlink bool
	IsDir     bool
}

// Session is a single stateful channel to the remote tree. Paths are
// relative to Root and use the form "/a/b"; "" names the root itself.
//
// Implementations serialize their commands: a session never interleaves two
// commands on the wire.
type Session interface {
	// Host identifies the remote server (used to key persisted state).
	Host() string

	// Root returns the absolute remote directory every path is relative to.
	Root() string

	// List returns the immediate children of dir.
	List(ctx context.Context, dir string) ([]FileEntry, error)

	// Get streams the remote file p into w.
	Get(ctx context.Context, p string, w io.Writer) (int64, error)

	// Put replaces the remote file p with the contents of r, creating
	// parent directories as needed.
	Put(ctx context.Context, r io.Reader, p string) (int64, error)

	// Mkdir creates the remote directory p and any missing parents.
	Mkdir(ctx context.Context, p string) error

	// Remove deletes the remote file or symlink p.
	Remove(ctx context.Context, p string) error

	// RemoveDir recursively deletes the remote directory p.
	RemoveDir(ctx context.Context, p string) error

	// Close releases the session.
	Close() error
}

// LocalFS is the workspace side of a sync. Paths use the same "/a/b" form
// as Session and are relative to the workspace root.
type LocalFS interface {
	// Stat follows symlinks.
	Stat(p string) (os.FileInfo, error)

	// Lstat does not follow symlinks.
	Lstat(p string) (os.FileInfo, error)

	// ReadDir lists the names of the entries in directory p.
	ReadDir(p string) ([]string, error)

	// Open opens file p for reading.
	Open(p string) (io.ReadCloser, error)

	// WriteFrom atomically replaces file p with whatever fill writes.
	// Parent directories are created as needed. If fill fails the file is
	// left untouched.
	WriteFrom(p string, fill func(w io.Writer) error) error

	// ReadFile reads the whole file p.
	ReadFile(p string) ([]byte, error)

	// WriteFile atomically replaces file p with data.
	WriteFile(p string, data []byte) error

	// MkdirAll creates directory p and any missing parents.
	MkdirAll(p string) error

	// RemoveAll deletes p recursively. A missing path is not an error.
	RemoveAll(p string) error

	// Root returns the workspace root.
	Root() string
}
