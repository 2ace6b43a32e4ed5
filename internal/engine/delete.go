package engine

import (
	"context"
	"errors"

	"github.com/bamsammich/mirrorsync/internal/event"
	"github.com/bamsammich/mirrorsync/internal/mirror"
)

var errDeleteRoot = errors.New("refusing to delete the remote root")

// Delete removes the remote entry at p. The cached kind picks the remote
// command; if that fails, or nothing is cached, the parent is re-listed and
// the authoritative kind is used. A path that no longer exists is not an
// error.
func (e *Engine) Delete(ctx context.Context, p string) error {
	if p == "" {
		return &ProtocolError{Op: "delete", Path: p, Err: errDeleteRoot}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	cached := e.tree.Get(p)
	var kind mirror.Kind
	if cached != nil {
		kind = cached.Kind
	}
	e.mu.Unlock()

	if cached != nil {
		err := e.remove(ctx, p, kind)
		if err == nil {
			e.deleted(p)
			return nil
		}
		e.logger.Debug("delete with cached kind failed, re-listing",
			"path", displayPath(p), "kind", kind.String(), "error", err)
	}

	node, err := e.StatFresh(ctx, p)
	if err != nil {
		if IsNotFound(err) {
			e.forget(p)
			return nil
		}
		return err
	}

	e.mu.Lock()
	kind = node.Kind
	e.mu.Unlock()

	if err := e.remove(ctx, p, kind); err != nil {
		return &ProtocolError{Op: "delete", Path: p, Err: err}
	}
	e.deleted(p)
	return nil
}

func (e *Engine) remove(ctx context.Context, p string, kind mirror.Kind) error {
	if kind == mirror.Dir {
		return e.session.RemoveDir(ctx, p)
	}
	return e.session.Remove(ctx, p)
}

func (e *Engine) deleted(p string) {
	e.forget(p)
	e.logger.Debug("deleted", "path", displayPath(p))
	e.stats.AddDeleted(1)
	e.emit(event.Event{Type: event.Deleted, Path: p})
}
