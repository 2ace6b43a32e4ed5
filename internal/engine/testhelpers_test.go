package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bamsammich/mirrorsync/internal/event"
	"github.com/bamsammich/mirrorsync/internal/mirror"
	"github.com/bamsammich/mirrorsync/internal/transport"
)

var errInjected = errors.New("injected failure")

type fakeEntry struct {
	mtime time.Time
	data  []byte
	dir   bool
}

// fakeSession is an in-memory remote tree that counts every command.
type fakeSession struct {
	mu      sync.Mutex
	entries map[string]*fakeEntry
	calls   map[string]int
	fail    map[string]error // "op:path" -> error returned once
	clock   int64

	// When set, List blocks on gate after signalling entered.
	gate    chan struct{}
	entered chan string
}

var _ transport.Session = (*fakeSession)(nil)

func newFakeSession() *fakeSession {
	return &fakeSession{
		entries: map[string]*fakeEntry{"": {dir: true}},
		calls:   make(map[string]int),
		fail:    make(map[string]error),
	}
}

func (s *fakeSession) Host() string { return "fake.example" }
func (s *fakeSession) Root() string { return "/srv/site" }
func (s *fakeSession) Close() error { return nil }

// count returns how many times op ran against p.
func (s *fakeSession) count(op, p string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op+":"+p]
}

// total returns how many times op ran against any path.
func (s *fakeSession) total(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, v := range s.calls {
		if strings.HasPrefix(k, op+":") {
			n += v
		}
	}
	return n
}

func (s *fakeSession) failOnce(op, p string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op+":"+p] = err
}

// record counts the call and returns any injected failure. Caller holds mu.
func (s *fakeSession) record(op, p string) error {
	key := op + ":" + p
	s.calls[key]++
	if err, ok := s.fail[key]; ok {
		delete(s.fail, key)
		return err
	}
	return nil
}

func (s *fakeSession) now() time.Time {
	s.clock++
	return time.Unix(2_000_000_000+s.clock, 0)
}

func (s *fakeSession) mkdirAllLocked(p string) {
	for p != "" {
		if e, ok := s.entries[p]; !ok || !e.dir {
			s.entries[p] = &fakeEntry{dir: true, mtime: s.now()}
		}
		p, _ = mirror.Split(p)
	}
}

// put seeds a remote file.
func (s *fakeSession) put(p, data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir, _ := mirror.Split(p)
	s.mkdirAllLocked(dir)
	s.entries[p] = &fakeEntry{data: []byte(data), mtime: s.now()}
}

// mkdir seeds a remote directory.
func (s *fakeSession) mkdir(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mkdirAllLocked(p)
}

// read returns the remote file content and whether it exists.
func (s *fakeSession) read(p string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[p]
	if !ok || e.dir {
		return "", false
	}
	return string(e.data), true
}

func (s *fakeSession) exists(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[p]
	return ok
}

func (s *fakeSession) List(ctx context.Context, dir string) ([]transport.FileEntry, error) {
	s.mu.Lock()
	gate, entered := s.gate, s.entered
	s.mu.Unlock()
	if gate != nil {
		select {
		case entered <- dir:
		default:
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("list", dir); err != nil {
		return nil, err
	}
	if e, ok := s.entries[dir]; !ok || !e.dir {
		return nil, fmt.Errorf("list %s: %w", dir, fs.ErrNotExist)
	}

	var out []transport.FileEntry
	for p, e := range s.entries {
		if p == "" {
			continue
		}
		parent, name := mirror.Split(p)
		if parent != dir {
			continue
		}
		out = append(out, transport.FileEntry{
			Name:    name,
			Size:    int64(len(e.data)),
			ModTime: e.mtime,
			IsDir:   e.dir,
		})
	}
	return out, nil
}

func (s *fakeSession) Get(_ context.Context, p string, w io.Writer) (int64, error) {
	s.mu.Lock()
	if err := s.record("get", p); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	e, ok := s.entries[p]
	if !ok || e.dir {
		s.mu.Unlock()
		return 0, fmt.Errorf("get %s: %w", p, fs.ErrNotExist)
	}
	data := bytes.Clone(e.data)
	s.mu.Unlock()

	n, err := w.Write(data)
	return int64(n), err
}

func (s *fakeSession) Put(_ context.Context, r io.Reader, p string) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("put", p); err != nil {
		return 0, err
	}
	if e, ok := s.entries[p]; ok && e.dir {
		return 0, fmt.Errorf("put %s: is a directory", p)
	}
	dir, _ := mirror.Split(p)
	s.mkdirAllLocked(dir)
	s.entries[p] = &fakeEntry{data: data, mtime: s.now()}
	return int64(len(data)), nil
}

func (s *fakeSession) Mkdir(_ context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("mkdir", p); err != nil {
		return err
	}
	if e, ok := s.entries[p]; ok && !e.dir {
		return fmt.Errorf("mkdir %s: file exists", p)
	}
	s.mkdirAllLocked(p)
	return nil
}

func (s *fakeSession) Remove(_ context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("remove", p); err != nil {
		return err
	}
	e, ok := s.entries[p]
	if !ok {
		return fmt.Errorf("remove %s: %w", p, fs.ErrNotExist)
	}
	if e.dir {
		return fmt.Errorf("remove %s: is a directory", p)
	}
	delete(s.entries, p)
	return nil
}

func (s *fakeSession) RemoveDir(_ context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("rmdir", p); err != nil {
		return err
	}
	e, ok := s.entries[p]
	if !ok {
		return fmt.Errorf("rmdir %s: %w", p, fs.ErrNotExist)
	}
	if !e.dir {
		return fmt.Errorf("rmdir %s: not a directory", p)
	}
	for k := range s.entries {
		if k == p || strings.HasPrefix(k, p+"/") {
			delete(s.entries, k)
		}
	}
	return nil
}

// testEnv is an engine wired to a fake remote and a temp-dir workspace.
type testEnv struct {
	eng    *Engine
	remote *fakeSession
	root   string
	events chan event.Event
}

func newTestEnv(t *testing.T, opts ...func(*Config)) *testEnv {
	t.Helper()
	root := t.TempDir()
	remote := newFakeSession()
	events := make(chan event.Event, 1024)

	cfg := Config{
		Session: remote,
		Local:   transport.NewLocalFS(root),
		Events:  events,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &testEnv{eng: New(cfg), remote: remote, root: root, events: events}
}

// local maps a workspace path to the OS path.
func (env *testEnv) local(p string) string {
	return filepath.Join(env.root, filepath.FromSlash(strings.TrimPrefix(p, "/")))
}

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// writeLocal creates a workspace file with a fixed mtime offset from
// baseTime by tick seconds.
func (env *testEnv) writeLocal(t *testing.T, p, data string, tick int) time.Time {
	t.Helper()
	full := env.local(p)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(data), 0o644))
	mtime := baseTime.Add(time.Duration(tick) * time.Second)
	require.NoError(t, os.Chtimes(full, mtime, mtime))
	return mtime
}

func (env *testEnv) mkdirLocal(t *testing.T, p string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(env.local(p), 0o755))
}

func (env *testEnv) readLocal(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(env.local(p))
	require.NoError(t, err)
	return string(data)
}

// drain returns every event emitted so far.
func (env *testEnv) drain() []event.Event {
	var out []event.Event
	for {
		select {
		case ev := <-env.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func eventTypes(evs []event.Event) []event.Type {
	out := make([]event.Type, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Type)
	}
	return out
}

func itemPaths(wl *Worklist) []string {
	var out []string
	for _, it := range wl.Items() {
		out = append(out, it.Path)
	}
	return out
}
