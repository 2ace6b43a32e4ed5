package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bamsammich/mirrorsync/internal/event"
	"github.com/bamsammich/mirrorsync/internal/mirror"
	"github.com/bamsammich/mirrorsync/internal/transport"
)

// List returns the mirror directory at dir, fetching it from the remote
// side unless a completed listing is cached. Concurrent callers for the
// same dir share one remote List call and receive the same node.
func (e *Engine) List(ctx context.Context, dir string) (*mirror.Node, error) {
	e.mu.Lock()
	if _, ok := e.listed[dir]; ok {
		if n := e.tree.Get(dir); n.IsDir() {
			e.mu.Unlock()
			return n, nil
		}
		delete(e.listed, dir)
	}
	e.mu.Unlock()

	return e.fetch(ctx, dir)
}

// Refresh always re-lists dir from the remote side, joining a fetch that is
// already in flight.
func (e *Engine) Refresh(ctx context.Context, dir string) (*mirror.Node, error) {
	return e.fetch(ctx, dir)
}

// Stat returns the mirror node for p, listing its parent if needed. It fails
// with ErrNotFound when the remote side has no such entry.
func (e *Engine) Stat(ctx context.Context, p string) (*mirror.Node, error) {
	return e.stat(ctx, p, e.List)
}

// StatFresh is Stat with a forced re-listing of the parent.
func (e *Engine) StatFresh(ctx context.Context, p string) (*mirror.Node, error) {
	return e.stat(ctx, p, e.Refresh)
}

func (e *Engine) stat(
	ctx context.Context,
	p string,
	list func(context.Context, string) (*mirror.Node, error),
) (*mirror.Node, error) {
	dir, name := mirror.Split(p)
	if name == "" {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.tree.Root(), nil
	}

	if _, err := list(ctx, dir); err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
		}
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.tree.Get(p)
	if n == nil {
		return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	return n, nil
}

// fetch performs one coalesced remote listing of dir. A failed fetch leaves
// dir unlisted so the next caller retries. Flights are keyed by generation:
// a listing started before Load is discarded with ErrListingDiscarded and
// callers arriving after Load start a fresh one.
func (e *Engine) fetch(ctx context.Context, dir string) (*mirror.Node, error) {
	e.mu.Lock()
	gen := e.gen
	e.mu.Unlock()

	key := strconv.FormatUint(gen, 10) + ":" + dir
	v, err, _ := e.flights.Do(key, func() (any, error) {
		e.logger.Debug("listing", "dir", displayPath(dir))
		e.emit(event.Event{Type: event.ListStarted, Path: dir})

		entries, err := e.session.List(ctx, dir)

		e.mu.Lock()
		if gen != e.gen {
			e.mu.Unlock()
			e.logger.Debug("listing discarded", "dir", displayPath(dir))
			return nil, &ProtocolError{Op: "list", Path: dir, Err: ErrListingDiscarded}
		}
		if err != nil {
			if IsNotFound(err) && dir != "" {
				// The directory is gone remotely; so is everything under it.
				e.tree.Remove(dir)
				e.unlistLocked(dir)
			}
			e.mu.Unlock()
			return nil, &ProtocolError{Op: "list", Path: dir, Err: err}
		}
		n := e.tree.Refresh(dir, toEntries(entries))
		e.listed[dir] = struct{}{}
		e.mu.Unlock()

		e.stats.AddListings(1)
		e.emit(event.Event{Type: event.ListCompleted, Path: dir, Size: int64(len(entries))})
		return n, nil
	})
	if err != nil {
		return nil, err
	}

	n, ok := v.(*mirror.Node)
	if !ok {
		return nil, fmt.Errorf("list %s: unexpected result type %T", displayPath(dir), v)
	}
	return n, nil
}

func toEntries(files []transport.FileEntry) []mirror.Entry {
	entries := make([]mirror.Entry, 0, len(files))
	for _, f := range files {
		kind := mirror.File
		switch {
		case f.IsSymlink:
			kind = mirror.Symlink
		case f.IsDir:
			kind = mirror.Dir
		}
		entries = append(entries, mirror.Entry{
			Name:    f.Name,
			Kind:    kind,
			Size:    f.Size,
			ModTime: f.ModTime,
		})
	}
	return entries
}
