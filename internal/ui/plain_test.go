package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bamsammich/mirrorsync/internal/stats"
)

func runPlain(t *testing.T, verbose bool, evs ...Event) (string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	p := &plainPresenter{w: &out, errW: &errOut, stats: stats.NewCollector(), verbose: verbose}

	events := make(chan Event, len(evs))
	for _, ev := range evs {
		events <- ev
	}
	close(events)

	assert.NoError(t, p.Run(events))
	return out.String(), errOut.String()
}

func TestPlainPresenterTransfers(t *testing.T) {
	out, _ := runPlain(t, false,
		Event{Type: Uploaded, Path: "/dir/file.txt", Size: 1024},
		Event{Type: Downloaded, Path: "/big.bin", Size: 1024 * 1024},
		Event{Type: Deleted, Path: "/old"},
		Event{Type: DirCreated, Path: "/new"},
	)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 4)
	assert.Contains(t, lines[0], "/dir/file.txt")
	assert.Contains(t, lines[0], "↑")
	assert.Contains(t, lines[1], "/big.bin")
	assert.Contains(t, lines[1], "↓")
	assert.Contains(t, lines[2], "/old")
	assert.Contains(t, lines[3], "/new/")
}

func TestPlainPresenterTaskFailed(t *testing.T) {
	out, errOut := runPlain(t, false,
		Event{Type: TaskFailed, Path: "/fail.txt", Action: "upload", Error: assert.AnError},
	)
	assert.Empty(t, out)
	assert.Contains(t, errOut, assert.AnError.Error())
}

func TestPlainPresenterSkippedOnlyWhenVerbose(t *testing.T) {
	out, _ := runPlain(t, false, Event{Type: Skipped, Path: "/same.txt"})
	assert.Empty(t, out)

	out, _ = runPlain(t, true, Event{Type: Skipped, Path: "/same.txt"})
	assert.Contains(t, out, "/same.txt")
	assert.Contains(t, out, "unchanged")
}

func TestPlainPresenterRootPath(t *testing.T) {
	out, _ := runPlain(t, false, Event{Type: DirCreated, Path: ""})
	assert.Contains(t, out, "/")
}

func TestQuietPresenter(t *testing.T) {
	p := NewPresenter(Config{Quiet: true, Stats: stats.NewCollector()})
	events := make(chan Event, 1)
	events <- Event{Type: Uploaded, Path: "/a"}
	close(events)

	assert.NoError(t, p.Run(events))
	assert.Empty(t, p.Summary())
}

func TestCompletionSummary(t *testing.T) {
	c := stats.NewCollector()
	c.AddUploaded(2)
	c.AddBytesUp(2048)
	c.AddDeleted(1)

	s := CompletionSummary(c.Snapshot())
	assert.Contains(t, s, "done ✓")
	assert.Contains(t, s, "up 2")
	assert.Contains(t, s, "deleted 1")
	assert.Contains(t, s, "errors 0")

	c.AddFailed(1)
	assert.Contains(t, CompletionSummary(c.Snapshot()), "done ✗")
}
