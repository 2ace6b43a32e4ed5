package engine

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal_OpenClose(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	j, err := OpenJournal("example.com", "/srv")
	require.NoError(t, err)
	require.NotNil(t, j)

	assert.FileExists(t, j.Path())
	require.NoError(t, j.Close())
}

func TestJournal_RecordAndRecent(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	j, err := OpenJournal("example.com", "/srv")
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.Record(JournalEntry{Path: "/a", Action: "upload", Size: 3}))
	require.NoError(t, j.Record(JournalEntry{Path: "/b", Action: "delete"}))

	got, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "/b", got[0].Path)
	assert.Equal(t, "delete", got[0].Action)
	assert.Equal(t, "/a", got[1].Path)
	assert.Equal(t, int64(3), got[1].Size)
	assert.False(t, got[1].Time.IsZero())
}

func TestJournal_BatchFlush(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	j, err := OpenJournal("example.com", "/srv")
	require.NoError(t, err)
	defer j.Close()

	// 150 entries: auto-flush at 100.
	for i := range 150 {
		require.NoError(t, j.Record(JournalEntry{
			Path:   fmt.Sprintf("/dir/file_%d.txt", i),
			Action: "upload",
			Size:   int64(i),
		}))
	}

	got, err := j.Recent(200)
	require.NoError(t, err)
	require.Len(t, got, 150)
	assert.Equal(t, "/dir/file_149.txt", got[0].Path)
	assert.Equal(t, "/dir/file_0.txt", got[149].Path)
}

func TestJournal_IDDeterminism(t *testing.T) {
	id1 := journalID("example.com", "/srv/a")
	id2 := journalID("example.com", "/srv/a")
	id3 := journalID("example.com", "/srv/b")

	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, id3)
}

func TestJournal_RemoteMismatch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "j.db")

	j, err := OpenJournalAt(dbPath, "example.com", "/srv")
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = OpenJournalAt(dbPath, "example.com", "/srv")
	require.NoError(t, err)
	require.NoError(t, j.Close())

	_, err = OpenJournalAt(dbPath, "other.com", "/srv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}

func TestJournal_SurvivesReopen(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	j, err := OpenJournal("example.com", "/srv")
	require.NoError(t, err)
	require.NoError(t, j.Record(JournalEntry{Path: "/done.txt", Action: "download", Size: 500}))
	require.NoError(t, j.Close())

	j, err = OpenJournal("example.com", "/srv")
	require.NoError(t, err)
	defer j.Close()

	got, err := j.Recent(1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/done.txt", got[0].Path)
}
