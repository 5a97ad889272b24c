package session

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// ReplayMode selects pacing during playback.
type ReplayMode int

const (
	// ReplayRealtime sleeps between entries to reproduce original pacing.
	ReplayRealtime ReplayMode = iota
	// ReplayFast emits entries as fast as the consumer allows.
	ReplayFast
)

// Player replays a recorded session file through a consumer callback.
type Player struct {
	path string
	mode ReplayMode
}

// NewPlayer returns a player for the session file at path.
func NewPlayer(path string, mode ReplayMode) *Player {
	return &Player{path: path, mode: mode}
}

// Play streams every record to fn, pacing per the replay mode. A
// non-nil error from fn stops playback and is returned. Malformed lines
// are skipped with a warning so a truncated tail never loses the rest
// of a session.
func (p *Player) Play(ctx context.Context, fn func(Record) error) error {
	f, err := os.Open(p.path)
	if err != nil {
		return fmt.Errorf("session: open %s: %w", p.path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordLineBytes)

	var lastOffset uint64
	first := true
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			slog.Warn("session: skipping malformed record", "error", err)
			continue
		}

		if p.mode == ReplayRealtime && !first && rec.OffsetMs > lastOffset {
			if wait := rec.OffsetMs - lastOffset; wait > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Duration(wait) * time.Millisecond):
				}
			}
		}
		first = false
		lastOffset = rec.OffsetMs

		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// ReadRecords loads every record of a session file into memory, for
// steppers and tests.
func ReadRecords(path string) ([]Record, error) {
	var records []Record
	p := NewPlayer(path, ReplayFast)
	err := p.Play(context.Background(), func(r Record) error {
		records = append(records, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Terminal writes can carry large base64 frames.
const maxRecordLineBytes = 16 * 1024 * 1024
