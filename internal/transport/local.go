package transport

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"
)

// Compile-time interface check.
var _ LocalFS = (*BillyFS)(nil)

// TempSuffix marks in-progress download files.
const TempSuffix = ".mirrorsync-tmp"

// BillyFS implements LocalFS on top of a go-billy filesystem.
type BillyFS struct {
	fs   billy.Filesystem
	root string

	// In-progress temp files, removed by CleanupTemp on interrupt.
	mu   sync.Mutex
	tmps map[string]struct{}
}

// NewLocalFS returns a LocalFS rooted at the OS directory root.
func NewLocalFS(root string) *BillyFS {
	return NewBillyFS(osfs.New(root), root)
}

// NewMemFS returns an in-memory LocalFS.
func NewMemFS() *BillyFS {
	return NewBillyFS(memfs.New(), "/")
}

// NewBillyFS wraps an arbitrary billy filesystem. root is informational.
func NewBillyFS(fs billy.Filesystem, root string) *BillyFS {
	return &BillyFS{fs: fs, root: root, tmps: make(map[string]struct{})}
}

// clean maps a workspace path ("" or "/a/b") to a billy path.
func clean(p string) string {
	return path.Clean("/" + strings.TrimPrefix(p, "/"))
}

func (l *BillyFS) Stat(p string) (os.FileInfo, error) {
	return l.fs.Stat(clean(p))
}

func (l *BillyFS) Lstat(p string) (os.FileInfo, error) {
	return l.fs.Lstat(clean(p))
}

func (l *BillyFS) ReadDir(p string) ([]string, error) {
	infos, err := l.fs.ReadDir(clean(p))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

func (l *BillyFS) Open(p string) (io.ReadCloser, error) {
	return l.fs.Open(clean(p))
}

func (l *BillyFS) ReadFile(p string) ([]byte, error) {
	return util.ReadFile(l.fs, clean(p))
}

func (l *BillyFS) WriteFile(p string, data []byte) error {
	return l.WriteFrom(p, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

func (l *BillyFS) WriteFrom(p string, fill func(w io.Writer) error) error {
	name := clean(p)
	dir := path.Dir(name)
	if err := l.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent %s: %w", dir, err)
	}

	tmp := path.Join(dir, fmt.Sprintf(".%s.%s%s", path.Base(name), uuid.New().String()[:8], TempSuffix))
	f, err := l.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create temp %s: %w", tmp, err)
	}
	l.register(tmp)
	defer l.deregister(tmp)

	if err := fill(f); err != nil {
		f.Close()
		_ = l.fs.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = l.fs.Remove(tmp)
		return fmt.Errorf("close temp %s: %w", tmp, err)
	}
	if err := l.fs.Rename(tmp, name); err != nil {
		_ = l.fs.Remove(tmp)
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

func (l *BillyFS) MkdirAll(p string) error {
	return l.fs.MkdirAll(clean(p), 0o755)
}

func (l *BillyFS) RemoveAll(p string) error {
	name := clean(p)
	if name == "/" {
		return fmt.Errorf("refusing to remove workspace root")
	}
	return util.RemoveAll(l.fs, name)
}

func (l *BillyFS) Root() string { return l.root }

// CleanupTemp removes every temp file still being written. Called on
// interrupt so a cancelled download does not leave debris behind.
func (l *BillyFS) CleanupTemp() {
	l.mu.Lock()
	paths := make([]string, 0, len(l.tmps))
	for p := range l.tmps {
		paths = append(paths, p)
	}
	l.tmps = make(map[string]struct{})
	l.mu.Unlock()

	for _, p := range paths {
		_ = l.fs.Remove(p)
	}
}

func (l *BillyFS) register(p string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tmps[p] = struct{}{}
}

func (l *BillyFS) deregister(p string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.tmps, p)
}
