package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/bamsammich/mirrorsync/internal/event"
)

// Action is what to do with one path.
type Action int

const (
	ActionUpload Action = iota + 1
	ActionDownload
	ActionDelete
)

var actionNames = [...]string{
	ActionUpload:   "upload",
	ActionDownload: "download",
	ActionDelete:   "delete",
}

func (a Action) String() string {
	if a > 0 && int(a) < len(actionNames) {
		return actionNames[a]
	}
	return "unknown"
}

// ParseAction is the inverse of Action.String.
func ParseAction(s string) (Action, error) {
	for a, name := range actionNames {
		if a > 0 && strings.EqualFold(s, name) {
			return Action(a), nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// Item is one worklist entry.
type Item struct {
	Path   string
	Action Action
}

// Worklist is an insertion-ordered map from path to action. Re-adding a
// path replaces its action but keeps its position.
type Worklist struct {
	actions map[string]Action
	order   []string
}

// NewWorklist returns an empty worklist.
func NewWorklist() *Worklist {
	return &Worklist{actions: make(map[string]Action)}
}

func (w *Worklist) Add(p string, a Action) {
	if _, ok := w.actions[p]; !ok {
		w.order = append(w.order, p)
	}
	w.actions[p] = a
}

func (w *Worklist) Get(p string) (Action, bool) {
	a, ok := w.actions[p]
	return a, ok
}

func (w *Worklist) Len() int { return len(w.order) }

// Items returns the entries in insertion order.
func (w *Worklist) Items() []Item {
	items := make([]Item, 0, len(w.order))
	for _, p := range w.order {
		items = append(items, Item{Path: p, Action: w.actions[p]})
	}
	return items
}

// Merge appends other's entries to w.
func (w *Worklist) Merge(other *Worklist) {
	for _, it := range other.Items() {
		w.Add(it.Path, it.Action)
	}
}

// Execute applies the worklist one item at a time in order. The first
// failure stops the run; items already applied stay applied.
func (e *Engine) Execute(ctx context.Context, wl *Worklist) error {
	items := wl.Items()
	e.stats.AddTasksTotal(int64(len(items)))

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.emit(event.Event{Type: event.TaskStarted, Path: it.Path, Action: it.Action.String()})

		size, err := e.apply(ctx, it)
		if err != nil {
			err = fmt.Errorf("%s %s: %w", it.Action, displayPath(it.Path), err)
			e.stats.AddFailed(1)
			e.emit(event.Event{Type: event.TaskFailed, Path: it.Path, Action: it.Action.String(), Error: err})
			return err
		}
		if e.journal != nil {
			if err := e.journal.Record(JournalEntry{Path: it.Path, Action: it.Action.String(), Size: size}); err != nil {
				e.logger.Warn("journal write failed", "path", displayPath(it.Path), "error", err)
			}
		}
	}
	return nil
}

func (e *Engine) apply(ctx context.Context, it Item) (int64, error) {
	switch it.Action {
	case ActionUpload:
		n, err := e.Upload(ctx, it.Path, false)
		if err != nil || n == nil {
			return 0, err
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		return n.Size, nil
	case ActionDownload:
		return e.download(ctx, it.Path)
	case ActionDelete:
		return 0, e.Delete(ctx, it.Path)
	default:
		return 0, fmt.Errorf("unknown action %d", int(it.Action))
	}
}
