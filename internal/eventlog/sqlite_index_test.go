package eventlog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/steveyegge/ralph/internal/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteIndexRebuildAndQuery(t *testing.T) {
	dir := t.TempDir()
	log := Open(filepath.Join(dir, "events.jsonl"))
	require.NoError(t, log.Append(proto.Event{Topic: "build.task", Payload: "a", Ts: time.Now().UTC()}))
	require.NoError(t, log.Append(proto.Event{Topic: "build.done", Payload: "b", Ts: time.Now().UTC()}))
	require.NoError(t, log.Append(proto.Event{Topic: "build.task", Payload: "c", Ts: time.Now().UTC()}))

	idx, err := OpenSQLiteIndex(filepath.Join(dir, "index.sqlite"))
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Rebuild(log))

	offsets, err := idx.ByteOffsetsForTopic("build.task")
	require.NoError(t, err)
	assert.Len(t, offsets, 2)

	offsets, err = idx.ByteOffsetsForTopic("build.done")
	require.NoError(t, err)
	assert.Len(t, offsets, 1)

	offsets, err = idx.ByteOffsetsForTopic("nothing.here")
	require.NoError(t, err)
	assert.Empty(t, offsets)
}

func TestSetIndexMaintainedOnAppend(t *testing.T) {
	dir := t.TempDir()
	log := Open(filepath.Join(dir, "events.jsonl"))

	idx, err := OpenSQLiteIndex(filepath.Join(dir, "index.sqlite"))
	require.NoError(t, err)
	defer idx.Close()
	log.SetIndex(idx)

	require.NoError(t, log.Append(proto.Event{Topic: "build.task", Payload: "a", Ts: time.Now().UTC()}))
	require.NoError(t, log.Append(proto.Event{Topic: "build.done", Payload: "b", Ts: time.Now().UTC()}))
	require.NoError(t, log.Append(proto.Event{Topic: "build.task", Payload: "c", Ts: time.Now().UTC()}))

	offsets, err := idx.ByteOffsetsForTopic("build.task")
	require.NoError(t, err)
	require.Len(t, offsets, 2)

	// Recorded offsets compose with Tail: jumping to one lands exactly on
	// the indexed event.
	events, malformed, _, err := log.Tail(offsets[1])
	require.NoError(t, err)
	assert.Empty(t, malformed)
	require.NotEmpty(t, events)
	assert.Equal(t, "build.task", events[0].Topic)
	assert.Equal(t, "c", events[0].Payload)
}
