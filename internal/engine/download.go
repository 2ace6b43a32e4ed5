package engine

import (
	"context"
	"io"

	"github.com/bamsammich/mirrorsync/internal/event"
	"github.com/bamsammich/mirrorsync/internal/mirror"
)

// Download makes the local path p match the remote side. If the remote side
// has no entry for p, the local path is removed.
func (e *Engine) Download(ctx context.Context, p string) error {
	_, err := e.download(ctx, p)
	return err
}

// download returns the number of bytes transferred.
func (e *Engine) download(ctx context.Context, p string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	e.mu.Lock()
	node := e.tree.Get(p)
	e.mu.Unlock()

	if node == nil {
		n, err := e.Stat(ctx, p)
		switch {
		case err == nil:
			node = n
		case !IsNotFound(err):
			return 0, err
		}
	}

	if node == nil {
		if err := e.local.RemoveAll(p); err != nil {
			return 0, &IOError{Op: "remove", Path: p, Err: err}
		}
		e.logger.Debug("removed local path absent remotely", "path", displayPath(p))
		e.stats.AddDeleted(1)
		e.emit(event.Event{Type: event.Deleted, Path: p})
		return 0, nil
	}

	e.mu.Lock()
	kind := node.Kind
	e.mu.Unlock()

	var size int64
	if kind == mirror.Dir {
		if err := e.clearLocal(p, true); err != nil {
			return 0, err
		}
		if err := e.local.MkdirAll(p); err != nil {
			return 0, &IOError{Op: "mkdir", Path: p, Err: err}
		}
		e.stats.AddDirsCreated(1)
		e.emit(event.Event{Type: event.DirCreated, Path: p})
	} else {
		if err := e.clearLocal(p, false); err != nil {
			return 0, err
		}
		var getErr error
		err := e.local.WriteFrom(p, func(w io.Writer) error {
			size, getErr = e.session.Get(ctx, p, w)
			return getErr
		})
		if getErr != nil {
			return 0, &ProtocolError{Op: "get", Path: p, Err: getErr}
		}
		if err != nil {
			return 0, &IOError{Op: "write", Path: p, Err: err}
		}
		e.stats.AddDownloaded(1)
		e.stats.AddBytesDown(size)
		e.emit(event.Event{Type: event.Downloaded, Path: p, Size: size})
	}

	info, err := e.local.Stat(p)
	if err != nil {
		return 0, &IOError{Op: "stat", Path: p, Err: err}
	}

	e.mu.Lock()
	cur := e.tree.Get(p)
	if cur == nil {
		cur = e.tree.Put(p, node)
	}
	cur.LocalSyncedAt = info.ModTime()
	e.mu.Unlock()

	e.logger.Debug("downloaded", "path", displayPath(p), "kind", kind.String(), "bytes", size)
	return size, nil
}

// clearLocal removes whatever is at p locally when it has the wrong kind
// for the incoming entry.
func (e *Engine) clearLocal(p string, wantDir bool) error {
	info, err := e.local.Lstat(p)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return &IOError{Op: "stat", Path: p, Err: err}
	}
	if info.IsDir() == wantDir {
		return nil
	}
	if err := e.local.RemoveAll(p); err != nil {
		return &IOError{Op: "remove", Path: p, Err: err}
	}
	return nil
}
