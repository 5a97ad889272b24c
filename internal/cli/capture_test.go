package cli

import (
	"testing"

	"github.com/steveyegge/ralph/internal/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCliCaptureBuffersWrites(t *testing.T) {
	c := NewCliCapture()
	assert.False(t, c.HasCaptures())

	c.CaptureWrite([]byte("\x1b[31mred\x1b[0m"), true)
	c.CaptureResize(120, 40)
	require.True(t, c.HasCaptures())

	events := c.TakeCaptures()
	require.Len(t, events, 2)

	assert.Equal(t, proto.UxTerminalWrite, events[0].Kind)
	raw, err := events[0].TerminalWrite.DecodeBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("\x1b[31mred\x1b[0m"), raw, "ANSI bytes survive untouched")
	assert.True(t, events[0].TerminalWrite.Stdout)

	assert.Equal(t, proto.UxTerminalResize, events[1].Kind)
	assert.Equal(t, uint16(120), events[1].TerminalResize.Width)

	assert.False(t, c.HasCaptures(), "TakeCaptures clears the buffer")
	assert.Empty(t, c.TakeCaptures())
}

func TestCliCaptureOffsetsMonotonic(t *testing.T) {
	c := NewCliCapture()
	c.CaptureWrite([]byte("a"), true)
	c.CaptureWrite([]byte("b"), false)

	events := c.TakeCaptures()
	require.Len(t, events, 2)
	assert.LessOrEqual(t, events[0].OffsetMs(), events[1].OffsetMs())
}
