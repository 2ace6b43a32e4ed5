package engine

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/bamsammich/mirrorsync/internal/event"
	"github.com/bamsammich/mirrorsync/internal/mirror"
	"github.com/bamsammich/mirrorsync/internal/transport"
)

type candidate struct {
	info os.FileInfo
	path string
}

// UploadDiff returns every local path under root that the remote side does
// not already hold. The local walk compares against the mirror alone; only
// the resulting candidates cost a remote listing of their parent, once per
// directory.
func (e *Engine) UploadDiff(ctx context.Context, root string) (*Worklist, error) {
	var candidates []candidate
	e.walkLocal(ctx, root, func(p string, info os.FileInfo) {
		e.mu.Lock()
		ok := e.tree.Get(p).Matches(info)
		e.mu.Unlock()
		if !ok {
			candidates = append(candidates, candidate{path: p, info: info})
		}
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wl := NewWorklist()
	refreshed := make(map[string]bool)
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dir, _ := mirror.Split(c.path)
		if !refreshed[dir] {
			refreshed[dir] = true
			if _, err := e.Refresh(ctx, dir); err != nil && !IsNotFound(err) {
				return nil, err
			}
		}

		e.mu.Lock()
		ok := e.tree.Get(c.path).Matches(c.info)
		e.mu.Unlock()
		if !ok {
			wl.Add(c.path, ActionUpload)
		}
	}

	e.logger.Debug("upload diff", "root", displayPath(root),
		"candidates", len(candidates), "changes", wl.Len())
	e.emit(event.Event{Type: event.DiffCompleted, Path: root, Action: ActionUpload.String(), Total: int64(wl.Len())})
	return wl, nil
}

// walkLocal calls fn for every non-directory entry under p that the diff
// does not ignore, in name order. Unreadable entries are skipped.
func (e *Engine) walkLocal(ctx context.Context, p string, fn func(p string, info os.FileInfo)) {
	if ctx.Err() != nil {
		return
	}
	info, err := e.local.Lstat(p)
	if err != nil {
		return
	}
	if p != "" && e.ignored(p, info.IsDir()) {
		return
	}

	if !info.IsDir() {
		fn(p, info)
		return
	}
	names, err := e.local.ReadDir(p)
	if err != nil {
		return
	}
	sort.Strings(names)
	for _, name := range names {
		e.walkLocal(ctx, mirror.Join(p, name), fn)
	}
}

// RemoteOnlyDiff returns action for every remote path under root that is
// missing locally. A parent always precedes its descendants. The state
// directory and leftover upload temp files are never included.
func (e *Engine) RemoteOnlyDiff(ctx context.Context, root string, action Action) (*Worklist, error) {
	wl := NewWorklist()
	if err := e.remoteOnly(ctx, root, action, wl); err != nil {
		return nil, err
	}
	e.logger.Debug("remote-only diff", "root", displayPath(root),
		"action", action.String(), "changes", wl.Len())
	e.emit(event.Event{Type: event.DiffCompleted, Path: root, Action: action.String(), Total: int64(wl.Len())})
	return wl, nil
}

func (e *Engine) remoteOnly(ctx context.Context, dir string, action Action, wl *Worklist) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	names, err := e.local.ReadDir(dir)
	if err != nil {
		return nil
	}
	local := make(map[string]bool, len(names))
	for _, name := range names {
		local[name] = true
	}

	if _, err := e.List(ctx, dir); err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}

	// Copy what is needed; the node may be replaced by a concurrent listing.
	e.mu.Lock()
	node := e.tree.Get(dir)
	var missing, subdirs []string
	if node.IsDir() {
		for _, name := range sortedNames(node.Children) {
			switch name {
			case "", ".", "..":
				continue
			}
			if mirror.Join(dir, name) == stateDirPath || strings.HasSuffix(name, transport.TempSuffix) {
				continue
			}
			switch {
			case !local[name]:
				missing = append(missing, name)
			case node.Children[name].Kind == mirror.Dir:
				subdirs = append(subdirs, name)
			}
		}
	}
	e.mu.Unlock()

	for _, name := range missing {
		wl.Add(mirror.Join(dir, name), action)
	}
	for _, name := range subdirs {
		if err := e.remoteOnly(ctx, mirror.Join(dir, name), action, wl); err != nil {
			return err
		}
	}
	return nil
}

// CleanDiff lists every remote path with no local counterpart for deletion.
func (e *Engine) CleanDiff(ctx context.Context) (*Worklist, error) {
	return e.RemoteOnlyDiff(ctx, "", ActionDelete)
}

// DownloadDiff lists every remote path with no local counterpart for
// download.
func (e *Engine) DownloadDiff(ctx context.Context) (*Worklist, error) {
	return e.RemoteOnlyDiff(ctx, "", ActionDownload)
}
