package proto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalWriteRoundtrip(t *testing.T) {
	original := []byte("Hello, \x1b[32mWorld\x1b[0m!")
	write := NewTerminalWrite(original, true, 100)

	assert.True(t, write.Stdout)
	assert.EqualValues(t, 100, write.OffsetMs)

	decoded, err := write.DecodeBytes()
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestUxEventSerialization(t *testing.T) {
	event := UxEvent{Kind: UxTerminalWrite, TerminalWrite: &TerminalWrite{}}
	w := NewTerminalWrite([]byte("test"), true, 0)
	event.TerminalWrite = &w

	raw, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "ux.terminal.write")

	var parsed UxEvent
	require.NoError(t, json.Unmarshal(raw, &parsed))
	require.Equal(t, UxTerminalWrite, parsed.Kind)
	assert.True(t, parsed.TerminalWrite.Stdout)
}

func TestTerminalResizeSerialization(t *testing.T) {
	event := UxEvent{Kind: UxTerminalResize, TerminalResize: &TerminalResize{Width: 120, Height: 30, OffsetMs: 500}}
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	s := string(raw)
	assert.Contains(t, s, "ux.terminal.resize")
	assert.Contains(t, s, "120")
	assert.Contains(t, s, "30")
}

func TestUxEventUnknownKindErrors(t *testing.T) {
	_, err := json.Marshal(UxEvent{Kind: "bogus"})
	assert.Error(t, err)

	var parsed UxEvent
	err = json.Unmarshal([]byte(`{"event":"bogus","data":{}}`), &parsed)
	assert.Error(t, err)
}
