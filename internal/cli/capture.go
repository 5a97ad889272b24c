package cli

import (
	"sync"
	"time"

	"github.com/steveyegge/ralph/internal/proto"
)

// RawCapture receives raw terminal bytes from the PTY layer as they are
// read. Implementations must tolerate being called from the PTY's reader
// goroutine.
type RawCapture interface {
	CaptureWrite(raw []byte, stdout bool)
}

// CliCapture buffers terminal byte writes as UxEvents, stamping each
// with its offset from capture start. It implements both RawCapture (the
// PTY side) and proto.FrameCapture (the recorder side), bridging the
// two without either knowing about the other.
type CliCapture struct {
	mu    sync.Mutex
	start time.Time
	buf   []proto.UxEvent
}

// NewCliCapture returns a capture whose offsets count from now.
func NewCliCapture() *CliCapture {
	return &CliCapture{start: time.Now()}
}

// CaptureWrite buffers one raw terminal write. The bytes are copied via
// base64 encoding inside the UxEvent, so the caller may reuse raw.
func (c *CliCapture) CaptureWrite(raw []byte, stdout bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := proto.NewTerminalWrite(raw, stdout, c.offsetMs())
	c.buf = append(c.buf, proto.UxEvent{Kind: proto.UxTerminalWrite, TerminalWrite: &w})
}

// CaptureResize buffers a terminal resize.
func (c *CliCapture) CaptureResize(width, height uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf = append(c.buf, proto.UxEvent{
		Kind:           proto.UxTerminalResize,
		TerminalResize: &proto.TerminalResize{Width: width, Height: height, OffsetMs: c.offsetMs()},
	})
}

// TakeCaptures returns buffered events and clears the buffer.
func (c *CliCapture) TakeCaptures() []proto.UxEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.buf
	c.buf = nil
	return out
}

// HasCaptures reports whether any events are buffered.
func (c *CliCapture) HasCaptures() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf) > 0
}

func (c *CliCapture) offsetMs() uint64 {
	return uint64(time.Since(c.start).Milliseconds())
}
