package engine

import (
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bamsammich/mirrorsync/internal/event"
	"github.com/bamsammich/mirrorsync/internal/mirror"
	"github.com/bamsammich/mirrorsync/internal/stats"
	"github.com/bamsammich/mirrorsync/internal/transport"
)

// IgnorePolicy decides which local paths the upload diff skips. relPath has
// no leading slash.
type IgnorePolicy interface {
	Ignored(relPath string, isDir bool) bool
}

// Reporter receives non-fatal errors the engine absorbs, such as an
// unreadable snapshot.
type Reporter interface {
	Report(err error)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(err error)

func (f ReporterFunc) Report(err error) { f(err) }

// Config wires an Engine to its collaborators. Session and Local are
// required; everything else is optional.
type Config struct {
	Session  transport.Session
	Local    transport.LocalFS
	Ignore   IgnorePolicy
	Reporter Reporter
	Logger   *slog.Logger
	Events   chan<- event.Event
	Stats    *stats.Collector
	Journal  *Journal
}

// Engine reconciles a local workspace with a remote tree through a mirror
// of the remote state. It is safe for concurrent use; remote commands are
// serialized by the session.
type Engine struct {
	session  transport.Session
	local    transport.LocalFS
	ignore   IgnorePolicy
	reporter Reporter
	logger   *slog.Logger
	events   chan<- event.Event
	stats    *stats.Collector
	journal  *Journal

	flights singleflight.Group

	// Guards everything below. Never held across I/O.
	mu           sync.Mutex
	tree         *mirror.Tree
	listed       map[string]struct{}
	gen          uint64 // bumped on Load and Close; keys listing flights
	snapshotPath string
}

// New creates an Engine with an empty mirror.
func New(cfg Config) *Engine {
	e := &Engine{
		session:  cfg.Session,
		local:    cfg.Local,
		ignore:   cfg.Ignore,
		reporter: cfg.Reporter,
		logger:   cfg.Logger,
		events:   cfg.Events,
		stats:    cfg.Stats,
		journal:  cfg.Journal,
		tree:     mirror.NewTree(),
		listed:   make(map[string]struct{}),
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.stats == nil {
		e.stats = stats.NewCollector()
	}
	if e.reporter == nil {
		e.reporter = ReporterFunc(e.defaultReport)
	}
	return e
}

// Close drops the listing cache and releases the session and journal.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.listed = make(map[string]struct{})
	e.gen++
	e.mu.Unlock()

	var errs []error
	if e.journal != nil {
		errs = append(errs, e.journal.Close())
	}
	if e.session != nil {
		errs = append(errs, e.session.Close())
	}
	return errors.Join(errs...)
}

// Stats returns the collector the engine counts into.
func (e *Engine) Stats() *stats.Collector { return e.stats }

// Journal returns the operation journal, or nil.
func (e *Engine) Journal() *Journal { return e.journal }

// Lookup returns a copy of the mirror node at p without any remote call.
// The copy has no children.
func (e *Engine) Lookup(p string) (mirror.Node, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.tree.Get(p)
	if n == nil {
		return mirror.Node{}, false
	}
	cp := *n
	cp.Children = nil
	return cp, true
}

// Walk visits every node the mirror knows about, parents before children
// and siblings in name order. fn must not call back into the engine.
func (e *Engine) Walk(fn func(p string, n mirror.Node)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	walkNode("", e.tree.Root(), fn)
}

func sortedNames(children map[string]*mirror.Node) []string {
	names := make([]string, 0, len(children))
	for name := range children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func walkNode(p string, n *mirror.Node, fn func(string, mirror.Node)) {
	cp := *n
	cp.Children = nil
	fn(p, cp)
	for _, name := range sortedNames(n.Children) {
		walkNode(mirror.Join(p, name), n.Children[name], fn)
	}
}

// forget drops p from the mirror and the listing cache.
func (e *Engine) forget(p string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tree.Remove(p)
	e.unlistLocked(p)
}

// unlistLocked removes p and every descendant from the listed set.
func (e *Engine) unlistLocked(p string) {
	prefix := p + "/"
	for dir := range e.listed {
		if dir == p || strings.HasPrefix(dir, prefix) {
			delete(e.listed, dir)
		}
	}
}

// ignored reports whether the upload diff must skip p. The state directory
// and in-progress temp files are always skipped.
func (e *Engine) ignored(p string, isDir bool) bool {
	if p == stateDirPath || strings.HasPrefix(p, stateDirPath+"/") {
		return true
	}
	_, name := mirror.Split(p)
	if strings.HasSuffix(name, transport.TempSuffix) {
		return true
	}
	if e.ignore == nil {
		return false
	}
	return e.ignore.Ignored(strings.TrimPrefix(p, "/"), isDir)
}

func (e *Engine) emit(ev event.Event) {
	if e.events == nil {
		return
	}
	ev.Timestamp = time.Now()
	select {
	case e.events <- ev:
	default:
	}
}

func (e *Engine) defaultReport(err error) {
	e.logger.Warn("sync state discarded", "error", err)
	e.emit(event.Event{Type: event.SnapshotLoadFailed, Error: err})
}
