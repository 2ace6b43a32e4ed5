package engine

import (
	"context"
	"time"

	"github.com/bamsammich/mirrorsync/internal/event"
	"github.com/bamsammich/mirrorsync/internal/mirror"
)

// Upload makes the remote side match the local path p and returns the
// updated mirror node. A path whose local mtime equals the node's
// LocalSyncedAt is skipped without any remote call. When ignoreDirectory is
// set, a local directory is left alone and Upload returns nil.
func (e *Engine) Upload(ctx context.Context, p string, ignoreDirectory bool) (*mirror.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := e.local.Stat(p)
	if err != nil {
		return nil, &IOError{Op: "stat", Path: p, Err: err}
	}
	mtime := info.ModTime()

	e.mu.Lock()
	old := e.tree.Get(p)
	if old != nil && old.LocalSyncedAt.Equal(mtime) {
		e.mu.Unlock()
		e.logger.Debug("upload skipped", "path", displayPath(p))
		e.stats.AddSkipped(1)
		e.emit(event.Event{Type: event.Skipped, Path: p})
		return old, nil
	}
	var oldKind mirror.Kind
	if old != nil {
		oldKind = old.Kind
	}
	e.mu.Unlock()

	if info.IsDir() {
		if ignoreDirectory {
			return nil, nil
		}
		return e.uploadDir(ctx, p, old, oldKind, mtime)
	}

	// A directory is in the way of the file.
	if old != nil && oldKind == mirror.Dir {
		if err := e.Delete(ctx, p); err != nil {
			return nil, err
		}
	}

	rc, err := e.local.Open(p)
	if err != nil {
		return nil, &IOError{Op: "open", Path: p, Err: err}
	}
	defer rc.Close()

	n, err := e.session.Put(ctx, rc, p)
	if err != nil {
		return nil, &ProtocolError{Op: "put", Path: p, Err: err}
	}

	// ModTime stays zero until a listing reports the server's time.
	node := &mirror.Node{Kind: mirror.File, Size: n, LocalSyncedAt: mtime}
	e.mu.Lock()
	e.tree.Put(p, node)
	e.mu.Unlock()

	e.logger.Debug("uploaded", "path", displayPath(p), "bytes", n)
	e.stats.AddUploaded(1)
	e.stats.AddBytesUp(n)
	e.emit(event.Event{Type: event.Uploaded, Path: p, Size: n})
	return node, nil
}

func (e *Engine) uploadDir(
	ctx context.Context,
	p string,
	old *mirror.Node,
	oldKind mirror.Kind,
	mtime time.Time,
) (*mirror.Node, error) {
	if old != nil && oldKind == mirror.Dir {
		e.mu.Lock()
		old.LocalSyncedAt = mtime
		e.mu.Unlock()
		return old, nil
	}

	// A file or symlink is in the way of the directory.
	if old != nil {
		if err := e.Delete(ctx, p); err != nil {
			return nil, err
		}
	}

	if err := e.session.Mkdir(ctx, p); err != nil {
		return nil, &ProtocolError{Op: "mkdir", Path: p, Err: err}
	}

	e.mu.Lock()
	node := e.tree.Mkdir(p, mtime)
	e.mu.Unlock()

	e.logger.Debug("created directory", "path", displayPath(p))
	e.stats.AddDirsCreated(1)
	e.emit(event.Event{Type: event.DirCreated, Path: p})
	return node, nil
}
