package engine

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite"
)

// Journal is an SQLite log of applied worklist items for one remote.
type Journal struct {
	db   *sql.DB
	path string

	// Batch buffer for Record calls.
	mu      sync.Mutex
	batch   []JournalEntry
	done    chan struct{}
	stopped bool
}

// JournalEntry is one applied item.
type JournalEntry struct {
	Time   time.Time
	Path   string
	Action string
	Size   int64
}

// OpenJournal opens (or creates) the journal for the given remote. The DB is
// stored at $XDG_RUNTIME_DIR/mirrorsync/<id>.db or /tmp/mirrorsync-<id>.db.
func OpenJournal(host, root string) (*Journal, error) {
	return OpenJournalAt(journalPath(journalID(host, root)), host, root)
}

// OpenJournalAt opens the journal stored at dbPath.
func OpenJournalAt(dbPath, host, root string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	j := &Journal{
		db:   db,
		path: dbPath,
		done: make(chan struct{}),
	}

	if err := j.init(host, root); err != nil {
		db.Close()
		return nil, err
	}

	go j.flushLoop()

	return j, nil
}

func (j *Journal) init(host, root string) error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			path    TEXT NOT NULL,
			action  TEXT NOT NULL,
			size    INTEGER NOT NULL,
			time    INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	var storedHost, storedRoot string
	row := j.db.QueryRow("SELECT value FROM meta WHERE key = 'host'")
	if err := row.Scan(&storedHost); err == nil {
		row2 := j.db.QueryRow("SELECT value FROM meta WHERE key = 'root'")
		if err := row2.Scan(&storedRoot); err == nil {
			if storedHost != host || storedRoot != root {
				return fmt.Errorf("journal remote mismatch: stored %s:%s, got %s:%s",
					storedHost, storedRoot, host, root)
			}
		}
	} else {
		_, err = j.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES ('host', ?), ('root', ?)", host, root)
		if err != nil {
			return fmt.Errorf("store meta: %w", err)
		}
	}

	return nil
}

// Record appends an entry. Writes are batched and flushed periodically.
func (j *Journal) Record(e JournalEntry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.batch = append(j.batch, e)
	if len(j.batch) >= 100 {
		return j.flushLocked()
	}
	return nil
}

// Flush writes any pending entries to the database.
func (j *Journal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.flushLocked()
}

func (j *Journal) flushLocked() error {
	if len(j.batch) == 0 {
		return nil
	}

	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO entries (path, action, size, time) VALUES (?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range j.batch {
		if _, err := stmt.Exec(e.Path, e.Action, e.Size, e.Time.UnixNano()); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert %s: %w", e.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	j.batch = j.batch[:0]
	return nil
}

func (j *Journal) flushLoop() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.mu.Lock()
			_ = j.flushLocked()
			j.mu.Unlock()
		}
	}
}

// Recent returns up to n entries, newest first. Pending entries are flushed
// first.
func (j *Journal) Recent(n int) ([]JournalEntry, error) {
	if err := j.Flush(); err != nil {
		return nil, err
	}

	rows, err := j.db.Query(
		"SELECT path, action, size, time FROM entries ORDER BY id DESC LIMIT ?", n,
	)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var (
			e  JournalEntry
			ns int64
		)
		if err := rows.Scan(&e.Path, &e.Action, &e.Size, &ns); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		e.Time = time.Unix(0, ns)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close flushes any pending writes and closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	if !j.stopped {
		j.stopped = true
		close(j.done)
	}
	err := j.flushLocked()
	j.mu.Unlock()
	if cerr := j.db.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Path returns the path to the journal database file.
func (j *Journal) Path() string {
	return j.path
}

// journalID computes a deterministic ID from the remote host and root.
func journalID(host, root string) string {
	h := blake3.New()
	h.Write([]byte(host))
	h.Write([]byte{0})
	h.Write([]byte(root))
	digest := h.Sum(nil)
	return hex.EncodeToString(digest[:8])
}

func journalPath(id string) string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "mirrorsync", id+".db")
	}
	return filepath.Join(os.TempDir(), "mirrorsync-"+id+".db")
}
