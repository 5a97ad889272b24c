// Package session records a loop run (bus events plus raw terminal
// activity) to a replayable NDJSON file, and plays such files back at
// recorded pace or as fast as the consumer allows.
package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/steveyegge/ralph/internal/proto"
	"golang.org/x/time/rate"
)

// RecordKind discriminates the two entry types of a session file.
type RecordKind string

const (
	RecordEvent RecordKind = "event"
	RecordUx    RecordKind = "ux"
)

// Record is one timestamped session entry. Exactly one of Event/Ux is
// set, matching Kind.
type Record struct {
	OffsetMs uint64         `json:"offset_ms"`
	Kind     RecordKind     `json:"kind"`
	Event    *EventRecord   `json:"event,omitempty"`
	Ux       *proto.UxEvent `json:"ux,omitempty"`
}

// EventRecord is the on-disk event shape, matching the event log's wire
// format so tooling can treat both files uniformly.
type EventRecord struct {
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
	Ts      string `json:"ts"`
	Source  string `json:"source,omitempty"`
	Target  string `json:"target,omitempty"`
}

func toEventRecord(e proto.Event) *EventRecord {
	return &EventRecord{
		Topic:   e.Topic,
		Payload: e.Payload,
		Ts:      e.Ts.UTC().Format(time.RFC3339Nano),
		Source:  e.Source,
		Target:  e.Target,
	}
}

// Meta is the session summary sidecar written atomically on Close.
type Meta struct {
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
	Records   uint64    `json:"records"`
}

// flushInterval is the minimum spacing between the flushes that writes
// trigger.
const flushInterval = 250 * time.Millisecond

// Recorder mirrors observed events and terminal writes to an NDJSON
// session file. It attaches to the bus via Observer and to the PTY
// layer via CaptureWrite. Writes are buffered; a write flushes the
// buffer if it is the first one or if at least flushInterval has passed
// since the last flush. There is no background timer: records written
// after the latest flush stay buffered until a later write triggers a
// flush, or until Flush or Close is called.
type Recorder struct {
	mu        sync.Mutex
	f         *os.File
	w         *bufio.Writer
	path      string
	sessionID string
	start     time.Time
	count     uint64
	lastMs    uint64
	flusher   rate.Sometimes
	closed    bool
}

// NewRecorder creates (truncating) the session file at path.
func NewRecorder(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("session: create %s: %w", path, err)
	}
	return &Recorder{
		f:         f,
		w:         bufio.NewWriter(f),
		path:      path,
		sessionID: uuid.NewString(),
		start:     time.Now(),
		flusher:   rate.Sometimes{First: 1, Interval: flushInterval},
	}, nil
}

// SessionID returns this recording's identifier.
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// Observer returns the bus observer that records every published event,
// for installation via Bus.SetObserver.
func (r *Recorder) Observer() proto.Observer {
	return func(e proto.Event) {
		r.RecordEvent(e)
	}
}

// RecordEvent appends one bus event entry.
func (r *Recorder) RecordEvent(e proto.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeLocked(Record{
		OffsetMs: r.offsetLocked(),
		Kind:     RecordEvent,
		Event:    toEventRecord(e),
	})
}

// CaptureWrite appends one raw terminal write; it satisfies the PTY
// layer's capture contract.
func (r *Recorder) CaptureWrite(raw []byte, stdout bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := proto.NewTerminalWrite(raw, stdout, r.offsetLocked())
	r.writeLocked(Record{
		OffsetMs: w.OffsetMs,
		Kind:     RecordUx,
		Ux:       &proto.UxEvent{Kind: proto.UxTerminalWrite, TerminalWrite: &w},
	})
}

// RecordUxEvent appends one already-built UxEvent (resize, color mode,
// TUI frame). The entry offset is stamped now, overriding whatever the
// event carried, to keep the file monotonic.
func (r *Recorder) RecordUxEvent(u proto.UxEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeLocked(Record{OffsetMs: r.offsetLocked(), Kind: RecordUx, Ux: &u})
}

// offsetLocked returns ms since start, clamped so offsets never go
// backwards even if the wall clock does.
func (r *Recorder) offsetLocked() uint64 {
	ms := uint64(time.Since(r.start).Milliseconds())
	if ms < r.lastMs {
		ms = r.lastMs
	}
	r.lastMs = ms
	return ms
}

func (r *Recorder) writeLocked(rec Record) {
	if r.closed {
		return
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return
	}
	r.w.Write(line)
	r.w.WriteByte('\n')
	r.count++
	r.flusher.Do(func() {
		r.w.Flush()
	})
}

// Flush forces buffered records to disk.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.w.Flush()
}

// Close flushes, closes the session file, and writes the Meta sidecar
// (path + ".meta.json") atomically.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.w.Flush(); err != nil {
		return fmt.Errorf("session: flush %s: %w", r.path, err)
	}
	if err := r.f.Close(); err != nil {
		return fmt.Errorf("session: close %s: %w", r.path, err)
	}

	meta := Meta{SessionID: r.sessionID, StartedAt: r.start.UTC(), Records: r.count}
	return SaveAtomic(r.path+".meta.json", meta)
}
