package engine

import (
	"bytes"
	"context"
	"strings"

	"github.com/bamsammich/mirrorsync/internal/config"
	"github.com/bamsammich/mirrorsync/internal/event"
	"github.com/bamsammich/mirrorsync/internal/mirror"
)

// stateDirPath is the workspace directory holding the snapshot and config.
// The diff never looks inside it.
const stateDirPath = "/" + config.StateDir

// SnapshotPath returns the workspace path of the snapshot for the given
// remote identity.
func SnapshotPath(host, root string) string {
	return stateDirPath + "/sync." + host + "." + strings.ReplaceAll(root, "/", ".") + ".toml"
}

// Load replaces the mirror with the persisted snapshot for the session's
// remote. A missing snapshot starts an empty mirror and writes it out; an
// unreadable one is reported and discarded. The listing cache is always
// cleared, so every directory is re-listed on first use.
func (e *Engine) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := SnapshotPath(e.session.Host(), e.session.Root())

	e.mu.Lock()
	e.snapshotPath = p
	e.mu.Unlock()

	data, err := e.local.ReadFile(p)
	missing := IsNotFound(err)
	var root *mirror.Node
	switch {
	case missing:
		e.logger.Debug("no snapshot, starting empty", "path", p)
	case err != nil:
		e.reporter.Report(&IOError{Op: "read", Path: p, Err: err})
	default:
		root, err = mirror.Decode(bytes.NewReader(data))
		if err != nil {
			e.reporter.Report(&SerializationError{Path: p, Err: err})
			root = nil
		}
	}

	e.mu.Lock()
	if root != nil {
		e.tree.Replace(root)
	} else {
		e.tree.Reset()
	}
	e.listed = make(map[string]struct{})
	e.gen++
	e.mu.Unlock()

	if missing {
		if err := e.Save(); err != nil {
			e.logger.Warn("could not create snapshot", "path", p, "error", err)
		}
	}
	return nil
}

// Save writes the mirror to the snapshot file. It is a no-op before Load.
func (e *Engine) Save() error {
	var buf bytes.Buffer

	e.mu.Lock()
	p := e.snapshotPath
	if p == "" {
		e.mu.Unlock()
		return nil
	}
	err := mirror.Encode(&buf, e.tree.Root())
	e.mu.Unlock()
	if err != nil {
		return &SerializationError{Path: p, Err: err}
	}

	if err := e.local.WriteFile(p, buf.Bytes()); err != nil {
		return &IOError{Op: "write", Path: p, Err: err}
	}
	e.logger.Debug("snapshot saved", "path", p, "bytes", buf.Len())
	e.emit(event.Event{Type: event.SnapshotSaved, Path: p, Size: int64(buf.Len())})
	return nil
}
