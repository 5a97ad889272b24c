package eventlog

import (
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/steveyegge/ralph/internal/proto"
)

// SQLiteIndex mirrors appended records into a local SQLite table purely
// to accelerate tail-by-topic queries for external tooling. The NDJSON
// file remains the single source of truth; the index is a cache that
// can always be rebuilt from it via Rebuild.
type SQLiteIndex struct {
	db *sql.DB
}

// OpenSQLiteIndex opens (creating if necessary) a SQLite index file at
// path, using the pure-Go, cgo-free ncruces/go-sqlite3 driver.
func OpenSQLiteIndex(path string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open sqlite index: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS events (
		byte_offset INTEGER NOT NULL,
		topic TEXT NOT NULL,
		ts TEXT NOT NULL,
		source TEXT,
		target TEXT
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventlog: create sqlite schema: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_topic ON events(topic)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventlog: create sqlite index: %w", err)
	}
	return &SQLiteIndex{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

// Record inserts one mirrored row for an event appended at byteOffset.
func (s *SQLiteIndex) Record(byteOffset int64, event proto.Event) error {
	_, err := s.db.Exec(
		`INSERT INTO events (byte_offset, topic, ts, source, target) VALUES (?, ?, ?, ?, ?)`,
		byteOffset, event.Topic, event.Ts.UTC().Format("2006-01-02T15:04:05.000Z07:00"), event.Source, event.Target,
	)
	if err != nil {
		return fmt.Errorf("eventlog: index insert: %w", err)
	}
	return nil
}

// ByteOffsetsForTopic returns the recorded byte offsets of every event
// matching topic exactly, in ascending order. Combined with Log.Tail it
// lets external tools jump directly to events of interest rather than
// scanning the whole file.
func (s *SQLiteIndex) ByteOffsetsForTopic(topic string) ([]int64, error) {
	rows, err := s.db.Query(`SELECT byte_offset FROM events WHERE topic = ? ORDER BY byte_offset ASC`, topic)
	if err != nil {
		return nil, fmt.Errorf("eventlog: index query: %w", err)
	}
	defer rows.Close()

	var offsets []int64
	for rows.Next() {
		var off int64
		if err := rows.Scan(&off); err != nil {
			return nil, fmt.Errorf("eventlog: index scan: %w", err)
		}
		offsets = append(offsets, off)
	}
	return offsets, rows.Err()
}

// Rebuild truncates the index and re-derives it from scratch by reading
// the full log via ReadAll. The index is purely derived state, so this
// is always safe to call, e.g. after detecting drift.
func (s *SQLiteIndex) Rebuild(log *Log) error {
	if _, err := s.db.Exec(`DELETE FROM events`); err != nil {
		return fmt.Errorf("eventlog: index truncate: %w", err)
	}
	events, _, err := log.ReadAll()
	if err != nil {
		return fmt.Errorf("eventlog: index rebuild read: %w", err)
	}
	offset := int64(0)
	for _, event := range events {
		line, err := encodeLine(event)
		if err != nil {
			return err
		}
		if err := s.Record(offset, event); err != nil {
			return err
		}
		offset += int64(len(line))
	}
	return nil
}
