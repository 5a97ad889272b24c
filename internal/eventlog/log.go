// Package eventlog implements the append-only NDJSON event log: a
// single-writer file of newline-delimited event records with
// tail-reading semantics and tolerance for malformed or partially
// written lines.
package eventlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/steveyegge/ralph/internal/proto"
)

// Malformed describes a line that failed to parse as an event record.
// It is never fatal: read_all/tail recover locally and report these
// alongside the successfully parsed events.
type Malformed struct {
	LineNumber int
	Raw        string
	Err        error
}

// Log is a single-writer, append-only NDJSON file of event records.
// Concurrent Append calls from within one process serialize through an
// internal mutex; cross-process coordination is the caller's
// responsibility; the loop is the sole writer.
type Log struct {
	path  string
	mu    sync.Mutex
	index *SQLiteIndex
}

// Open returns a Log bound to path. The file is created on first Append
// if it does not exist; a missing file is not an error for ReadAll/Tail.
func Open(path string) *Log {
	return &Log{path: path}
}

// record is the on-disk wire shape of one line. Extra fields not known
// to this package are preserved on round-trip: we unmarshal twice, once
// into record and once into a generic map[string]any, and strip the
// known keys before keeping the remainder as Extra.
type record struct {
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
	Ts      string `json:"ts"`
	Source  string `json:"source,omitempty"`
	Target  string `json:"target,omitempty"`
}

// SetIndex attaches a secondary index that is kept up to date on every
// Append. The NDJSON file stays the source of truth; index failures are
// logged and never fail the append, since the index is rebuildable.
func (l *Log) SetIndex(index *SQLiteIndex) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.index = index
}

// Append serializes event as one line and appends it to the log,
// flushing before returning. A single process's Append calls are
// serialized by Log's internal mutex.
func (l *Log) Append(event proto.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	line, err := encodeLine(event)
	if err != nil {
		return fmt.Errorf("eventlog: encode: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("eventlog: open %s: %w", l.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("eventlog: stat %s: %w", l.path, err)
	}
	byteOffset := info.Size()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("eventlog: write %s: %w", l.path, err)
	}
	if err := f.Sync(); err != nil {
		return err
	}

	if l.index != nil {
		if err := l.index.Record(byteOffset, event); err != nil {
			slog.Warn("eventlog: index update failed", "error", err)
		}
	}
	return nil
}

func encodeLine(event proto.Event) ([]byte, error) {
	merged := map[string]any{
		"topic":   event.Topic,
		"payload": event.Payload,
		"ts":      event.Ts.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if event.Source != "" {
		merged["source"] = event.Source
	}
	if event.Target != "" {
		merged["target"] = event.Target
	}
	for k, v := range event.Extra {
		if _, reserved := merged[k]; !reserved {
			merged[k] = v
		}
	}
	buf, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	buf = append(buf, '\n')
	return buf, nil
}

// ReadAll reads the log from the start. An empty or missing file yields
// no events and no error.
func (l *Log) ReadAll() (events []proto.Event, malformed []Malformed, err error) {
	events, malformed, _, err = l.readFrom(0, false)
	return events, malformed, err
}

// Tail reads the log starting at byte offset fromOffset and returns the
// events and malformed lines found, plus nextOffset: the byte offset a
// subsequent Tail call should resume from. A line partially present at
// EOF (no trailing newline yet) is not consumed; nextOffset is left
// positioned before it.
func (l *Log) Tail(fromOffset int64) (events []proto.Event, malformed []Malformed, nextOffset int64, err error) {
	return l.readFrom(fromOffset, true)
}

func (l *Log) readFrom(fromOffset int64, isTail bool) ([]proto.Event, []Malformed, int64, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fromOffset, nil
		}
		return nil, nil, fromOffset, fmt.Errorf("eventlog: open %s: %w", l.path, err)
	}
	defer f.Close()

	if fromOffset > 0 {
		if _, err := f.Seek(fromOffset, io.SeekStart); err != nil {
			return nil, nil, fromOffset, fmt.Errorf("eventlog: seek %s: %w", l.path, err)
		}
	}

	var events []proto.Event
	var malformed []Malformed
	offset := fromOffset
	lineNumber := 0

	reader := bufio.NewReader(f)
	for {
		lineBytes, readErr := reader.ReadBytes('\n')
		if len(lineBytes) == 0 && readErr != nil {
			break
		}
		lineNumber++

		if readErr != nil {
			// No trailing '\n': a partial tail line. ReadAll treats it as
			// malformed (it still wants to report every byte on disk);
			// Tail leaves the offset before it so a later call picks it
			// up once complete.
			if isTail {
				break
			}
			malformed = append(malformed, Malformed{
				LineNumber: lineNumber,
				Raw:        string(bytes.TrimRight(lineBytes, "\n")),
				Err:        fmt.Errorf("eventlog: partial line at EOF"),
			})
			offset += int64(len(lineBytes))
			break
		}

		raw := string(bytes.TrimRight(lineBytes, "\n"))
		offset += int64(len(lineBytes))

		if len(bytes.TrimSpace(lineBytes)) == 0 {
			continue
		}

		event, parseErr := decodeLine(lineBytes)
		if parseErr != nil {
			malformed = append(malformed, Malformed{LineNumber: lineNumber, Raw: raw, Err: parseErr})
			continue
		}
		events = append(events, event)
	}

	return events, malformed, offset, nil
}

func decodeLine(line []byte) (proto.Event, error) {
	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		return proto.Event{}, err
	}
	if rec.Topic == "" {
		return proto.Event{}, fmt.Errorf("eventlog: missing required field \"topic\"")
	}

	var generic map[string]any
	if err := json.Unmarshal(line, &generic); err == nil {
		for _, known := range []string{"topic", "payload", "ts", "source", "target"} {
			delete(generic, known)
		}
	}

	ts, err := parseTimestamp(rec.Ts)
	if err != nil {
		return proto.Event{}, fmt.Errorf("eventlog: bad timestamp %q: %w", rec.Ts, err)
	}

	event := proto.Event{
		Topic:   rec.Topic,
		Payload: rec.Payload,
		Ts:      ts,
		Source:  rec.Source,
		Target:  rec.Target,
	}
	if len(generic) > 0 {
		event.Extra = generic
	}
	return event, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000Z07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format")
}
