package proto

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// UxEventKind discriminates the UxEvent sum type on the wire.
type UxEventKind string

const (
	UxTerminalWrite     UxEventKind = "ux.terminal.write"
	UxTerminalResize    UxEventKind = "ux.terminal.resize"
	UxTerminalColorMode UxEventKind = "ux.terminal.color_mode"
	UxTuiFrame          UxEventKind = "ux.tui.frame"
)

// UxEvent is a captured terminal/TUI event for session recording. Exactly
// one of the typed fields is populated, matching Kind.
type UxEvent struct {
	Kind UxEventKind

	TerminalWrite     *TerminalWrite
	TerminalResize    *TerminalResize
	TerminalColorMode *TerminalColorMode
	TuiFrame          *TuiFrame
}

// TerminalWrite is a raw byte write to stdout or stderr. Bytes are
// base64-encoded so that ANSI escape sequences and binary data survive
// JSON round-tripping untouched; replay needs the exact sequence, so
// this package never strips or interprets ANSI.
type TerminalWrite struct {
	Bytes    string `json:"bytes"`
	Stdout   bool   `json:"stdout"`
	OffsetMs uint64 `json:"offset_ms"`
}

// NewTerminalWrite base64-encodes raw and stamps offsetMs.
func NewTerminalWrite(raw []byte, stdout bool, offsetMs uint64) TerminalWrite {
	return TerminalWrite{
		Bytes:    base64.StdEncoding.EncodeToString(raw),
		Stdout:   stdout,
		OffsetMs: offsetMs,
	}
}

// DecodeBytes returns the original raw bytes.
func (t TerminalWrite) DecodeBytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(t.Bytes)
}

// TerminalResize is a terminal dimension change.
type TerminalResize struct {
	Width    uint16 `json:"width"`
	Height   uint16 `json:"height"`
	OffsetMs uint64 `json:"offset_ms"`
}

// TerminalColorMode is a color-mode detection result.
type TerminalColorMode struct {
	Mode      string `json:"mode"`
	Detected  string `json:"detected"`
	OffsetMs  uint64 `json:"offset_ms"`
}

// TuiFrame is a placeholder for a future TUI frame-buffer capture; the
// TUI renderer itself is out of scope, only this capture shape is
// specified so the recorder/player can carry it.
type TuiFrame struct {
	FrameID  uint64 `json:"frame_id"`
	Width    uint16 `json:"width"`
	Height   uint16 `json:"height"`
	Cells    string `json:"cells"`
	OffsetMs uint64 `json:"offset_ms"`
}

// FrameCapture is the single polymorphism point between CLI-mode (raw
// terminal bytes) and future TUI-mode (frame buffers) capture. Both
// produce UxEvent values for unified recording and replay.
type FrameCapture interface {
	// TakeCaptures returns captured events and clears the internal buffer.
	TakeCaptures() []UxEvent
	// HasCaptures reports whether any events are buffered.
	HasCaptures() bool
}

type uxEventWire struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// MarshalJSON emits the {"event":...,"data":...} tagged-union shape.
func (u UxEvent) MarshalJSON() ([]byte, error) {
	var data any
	switch u.Kind {
	case UxTerminalWrite:
		data = u.TerminalWrite
	case UxTerminalResize:
		data = u.TerminalResize
	case UxTerminalColorMode:
		data = u.TerminalColorMode
	case UxTuiFrame:
		data = u.TuiFrame
	default:
		return nil, fmt.Errorf("proto: unknown UxEvent kind %q", u.Kind)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(uxEventWire{Event: string(u.Kind), Data: raw})
}

// UnmarshalJSON parses the {"event":...,"data":...} tagged-union shape.
func (u *UxEvent) UnmarshalJSON(b []byte) error {
	var wire uxEventWire
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	u.Kind = UxEventKind(wire.Event)
	switch u.Kind {
	case UxTerminalWrite:
		u.TerminalWrite = &TerminalWrite{}
		return json.Unmarshal(wire.Data, u.TerminalWrite)
	case UxTerminalResize:
		u.TerminalResize = &TerminalResize{}
		return json.Unmarshal(wire.Data, u.TerminalResize)
	case UxTerminalColorMode:
		u.TerminalColorMode = &TerminalColorMode{}
		return json.Unmarshal(wire.Data, u.TerminalColorMode)
	case UxTuiFrame:
		u.TuiFrame = &TuiFrame{}
		return json.Unmarshal(wire.Data, u.TuiFrame)
	default:
		return fmt.Errorf("proto: unknown UxEvent kind %q", wire.Event)
	}
}

// OffsetMs returns the offset_ms field of whichever variant is set.
func (u UxEvent) OffsetMs() uint64 {
	switch u.Kind {
	case UxTerminalWrite:
		return u.TerminalWrite.OffsetMs
	case UxTerminalResize:
		return u.TerminalResize.OffsetMs
	case UxTerminalColorMode:
		return u.TerminalColorMode.OffsetMs
	case UxTuiFrame:
		return u.TuiFrame.OffsetMs
	default:
		return 0
	}
}
