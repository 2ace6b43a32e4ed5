package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/mirrorsync/internal/event"
)

func TestAction_String(t *testing.T) {
	tests := []struct {
		action Action
		want   string
	}{
		{ActionUpload, "upload"},
		{ActionDownload, "download"},
		{ActionDelete, "delete"},
		{Action(0), "unknown"},
		{Action(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.action.String())
	}
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("Delete")
	require.NoError(t, err)
	assert.Equal(t, ActionDelete, a)

	_, err = ParseAction("rename")
	assert.Error(t, err)
}

func TestWorklist_AddKeepsPosition(t *testing.T) {
	wl := NewWorklist()
	wl.Add("/b", ActionUpload)
	wl.Add("/a", ActionUpload)
	wl.Add("/b", ActionDelete)

	assert.Equal(t, 2, wl.Len())
	assert.Equal(t, []Item{{Path: "/b", Action: ActionDelete}, {Path: "/a", Action: ActionUpload}}, wl.Items())

	other := NewWorklist()
	other.Add("/c", ActionDownload)
	other.Add("/a", ActionDelete)
	wl.Merge(other)
	assert.Equal(t, []string{"/b", "/a", "/c"}, itemPaths(wl))
	a, _ := wl.Get("/a")
	assert.Equal(t, ActionDelete, a)
}

func TestExecute_AppliesInOrder(t *testing.T) {
	env := newTestEnv(t)
	env.writeLocal(t, "/up.txt", "up", 1)
	env.remote.put("/down.txt", "down")
	env.remote.put("/gone.txt", "gone")

	wl := NewWorklist()
	wl.Add("/up.txt", ActionUpload)
	wl.Add("/down.txt", ActionDownload)
	wl.Add("/gone.txt", ActionDelete)

	require.NoError(t, env.eng.Execute(context.Background(), wl))

	got, ok := env.remote.read("/up.txt")
	require.True(t, ok)
	assert.Equal(t, "up", got)
	assert.Equal(t, "down", env.readLocal(t, "/down.txt"))
	assert.False(t, env.remote.exists("/gone.txt"))
	assert.Equal(t, int64(3), env.eng.Stats().Snapshot().TasksTotal)
}

func TestExecute_StopsAtFirstFailure(t *testing.T) {
	env := newTestEnv(t)
	env.writeLocal(t, "/a.txt", "a", 1)
	env.writeLocal(t, "/c.txt", "c", 1)

	wl := NewWorklist()
	wl.Add("/a.txt", ActionUpload)
	wl.Add("/missing.txt", ActionUpload)
	wl.Add("/c.txt", ActionUpload)

	err := env.eng.Execute(context.Background(), wl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload /missing.txt")
	var ioErr *IOError
	assert.True(t, errors.As(err, &ioErr))

	assert.True(t, env.remote.exists("/a.txt"), "applied items stay applied")
	assert.False(t, env.remote.exists("/c.txt"))
	assert.Equal(t, int64(1), env.eng.Stats().Snapshot().Failed)
	assert.Contains(t, eventTypes(env.drain()), event.TaskFailed)
}

func TestExecute_Cancelled(t *testing.T) {
	env := newTestEnv(t)
	env.writeLocal(t, "/a.txt", "a", 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	wl := NewWorklist()
	wl.Add("/a.txt", ActionUpload)
	err := env.eng.Execute(ctx, wl)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, env.remote.total("put"))
}

func TestExecute_RecordsJournal(t *testing.T) {
	j, err := OpenJournalAt(filepath.Join(t.TempDir(), "j.db"), "fake.example", "/srv/site")
	require.NoError(t, err)

	env := newTestEnv(t, func(c *Config) { c.Journal = j })
	t.Cleanup(func() { _ = env.eng.Close() })
	env.writeLocal(t, "/a.txt", "abcd", 1)

	wl := NewWorklist()
	wl.Add("/a.txt", ActionUpload)
	require.NoError(t, env.eng.Execute(context.Background(), wl))

	entries, err := env.eng.Journal().Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/a.txt", entries[0].Path)
	assert.Equal(t, "upload", entries[0].Action)
	assert.Equal(t, int64(4), entries[0].Size)
}
