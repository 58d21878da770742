// Package queue implements the durable FIFO queue triad: ingress,
// originality, and concordance. Each queue is an independent, crash-safe,
// at-least-once FIFO persisted to a local SQLite file; entries survive
// process restart and a crash between Get and TaskDone re-delivers the
// entry after restart.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Queue is a single durable FIFO. Put and Get are thread-safe; Get blocks
// (via polling with a short backoff, see Get) until an entry is available
// or the context is cancelled.
type Queue struct {
	db   *sql.DB
	name string
}

// Open creates or reopens the queue database at dir/<name>.db, creating
// parent directories as needed. Existing entries (including any entry left
// dequeued-but-not-done by a prior crash) are preserved.
func Open(dir, name string) (*Queue, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create queue dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, name+".db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open queue db %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single-writer SQLite file; serializes Put/Get/TaskDone
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS entries (
		offset   INTEGER PRIMARY KEY AUTOINCREMENT,
		payload  BLOB NOT NULL,
		dequeued INTEGER NOT NULL DEFAULT 0,
		done     INTEGER NOT NULL DEFAULT 0
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create entries table: %w", err)
	}
	return &Queue{db: db, name: name}, nil
}

// Close closes the backing database.
func (q *Queue) Close() error {
	return q.db.Close()
}

// Put appends v (JSON-encoded) to the back of the queue.
func (q *Queue) Put(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal queue entry: %w", err)
	}
	_, err = q.db.Exec("INSERT INTO entries (payload) VALUES (?)", payload)
	if err != nil {
		return fmt.Errorf("insert into %s queue: %w", q.name, err)
	}
	return nil
}

// Entry is one durable queue record.
type Entry struct {
	Offset  int64
	Payload []byte
}

// Get blocks until an entry is available (or ctx is cancelled), marks it
// dequeued within the same transaction so a concurrent Get cannot observe
// it, and returns it. The entry is not removed until TaskDone acknowledges
// it — a crash between Get and TaskDone leaves it dequeued-but-not-done,
// and it is redelivered (in original FIFO order) after restart by Recover.
func (q *Queue) Get(ctx context.Context) (Entry, error) {
	for {
		entry, ok, err := q.tryGet()
		if err != nil {
			return Entry{}, err
		}
		if ok {
			return entry, nil
		}
		select {
		case <-ctx.Done():
			return Entry{}, ctx.Err()
		case <-pollTick():
		}
	}
}

func (q *Queue) tryGet() (Entry, bool, error) {
	tx, err := q.db.Begin()
	if err != nil {
		return Entry{}, false, fmt.Errorf("begin get tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT offset, payload FROM entries
		WHERE dequeued = 0 ORDER BY offset ASC LIMIT 1`)
	var e Entry
	if err := row.Scan(&e.Offset, &e.Payload); err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("scan entry: %w", err)
	}
	if _, err := tx.Exec("UPDATE entries SET dequeued = 1 WHERE offset = ?", e.Offset); err != nil {
		return Entry{}, false, fmt.Errorf("mark dequeued: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Entry{}, false, fmt.Errorf("commit get tx: %w", err)
	}
	return e, true, nil
}

// TaskDone acknowledges an entry, permanently removing it from redelivery
// consideration.
func (q *Queue) TaskDone(offset int64) error {
	_, err := q.db.Exec("UPDATE entries SET done = 1 WHERE offset = ?", offset)
	if err != nil {
		return fmt.Errorf("ack offset %d in %s queue: %w", offset, q.name, err)
	}
	return nil
}

// Recover re-queues entries left dequeued-but-not-done by a prior crash so
// the next Get redelivers them in original FIFO order. Call once after Open
// on process startup.
func (q *Queue) Recover() error {
	_, err := q.db.Exec("UPDATE entries SET dequeued = 0 WHERE dequeued = 1 AND done = 0")
	if err != nil {
		return fmt.Errorf("recover %s queue: %w", q.name, err)
	}
	return nil
}

// Size returns the number of entries not yet acknowledged done.
func (q *Queue) Size() (int, error) {
	var n int
	err := q.db.QueryRow("SELECT COUNT(*) FROM entries WHERE done = 0").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("size of %s queue: %w", q.name, err)
	}
	return n, nil
}
