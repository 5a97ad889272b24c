package eventlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/steveyegge/ralph/internal/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempLogPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "events.jsonl")
}

func TestReadAllOnMissingFileIsNotAnError(t *testing.T) {
	log := Open(tempLogPath(t))
	events, malformed, err := log.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Empty(t, malformed)
}

func TestAppendThenReadAllContainsEventAsLast(t *testing.T) {
	log := Open(tempLogPath(t))
	e1 := proto.Event{Topic: "build.task", Payload: "first", Ts: time.Now().UTC()}
	e2 := proto.Event{Topic: "build.done", Payload: "second", Ts: time.Now().UTC()}

	require.NoError(t, log.Append(e1))
	require.NoError(t, log.Append(e2))

	events, malformed, err := log.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, malformed)
	require.Len(t, events, 2)
	assert.Equal(t, "build.task", events[0].Topic)
	assert.Equal(t, "build.done", events[len(events)-1].Topic)
}

func TestReadAllPreservesFileOrder(t *testing.T) {
	log := Open(tempLogPath(t))
	topics := []string{"a.1", "a.2", "a.3", "a.4"}
	for _, topic := range topics {
		require.NoError(t, log.Append(proto.Event{Topic: topic, Payload: "p", Ts: time.Now().UTC()}))
	}

	events, _, err := log.ReadAll()
	require.NoError(t, err)
	require.Len(t, events, len(topics))
	for i, topic := range topics {
		assert.Equal(t, topic, events[i].Topic)
	}
}

func TestSerializationsPlusNewlineArePrefixOfFile(t *testing.T) {
	path := tempLogPath(t)
	log := Open(path)
	require.NoError(t, log.Append(proto.Event{Topic: "x.y", Payload: "p", Ts: time.Now().UTC()}))

	events, _, err := log.ReadAll()
	require.NoError(t, err)
	require.Len(t, events, 1)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	line, err := encodeLine(events[0])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), string(line)))
}

func TestMalformedLineIsRecoveredLocally(t *testing.T) {
	path := tempLogPath(t)
	require.NoError(t, os.WriteFile(path, []byte("{not valid json}\n{\"topic\":\"a.b\",\"payload\":\"ok\",\"ts\":\"2026-01-14T12:00:00Z\"}\n"), 0o644))

	log := Open(path)
	events, malformed, err := log.ReadAll()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "a.b", events[0].Topic)
	require.Len(t, malformed, 1)
	assert.Equal(t, 1, malformed[0].LineNumber)
}

func TestTailDoesNotConsumePartialTrailingLine(t *testing.T) {
	path := tempLogPath(t)
	complete := `{"topic":"a.b","payload":"ok","ts":"2026-01-14T12:00:00Z"}` + "\n"
	partial := `{"topic":"a.c","payload":"unfinishe`
	require.NoError(t, os.WriteFile(path, []byte(complete+partial), 0o644))

	log := Open(path)
	events, malformed, next, err := log.Tail(0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Empty(t, malformed)
	assert.EqualValues(t, len(complete), next)

	// Resuming from next should still not consume the partial line.
	events2, _, next2, err := log.Tail(next)
	require.NoError(t, err)
	assert.Empty(t, events2)
	assert.Equal(t, next, next2)
}

func TestTailResumesFromNextOffsetAcrossAppends(t *testing.T) {
	path := tempLogPath(t)
	log := Open(path)
	require.NoError(t, log.Append(proto.Event{Topic: "a.1", Payload: "p", Ts: time.Now().UTC()}))

	events, _, next, err := log.Tail(0)
	require.NoError(t, err)
	require.Len(t, events, 1)

	require.NoError(t, log.Append(proto.Event{Topic: "a.2", Payload: "p", Ts: time.Now().UTC()}))

	events2, _, _, err := log.Tail(next)
	require.NoError(t, err)
	require.Len(t, events2, 1)
	assert.Equal(t, "a.2", events2[0].Topic)
}

func TestZeroLengthLogYieldsNoEventsOnTail(t *testing.T) {
	path := tempLogPath(t)
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	log := Open(path)
	events, malformed, next, err := log.Tail(0)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Empty(t, malformed)
	assert.EqualValues(t, 0, next)
}

func TestExtraFieldsPreservedOnRoundTrip(t *testing.T) {
	path := tempLogPath(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"topic":"a.b","payload":"p","ts":"2026-01-14T12:00:00Z","custom":"value"}`+"\n"), 0o644))

	log := Open(path)
	events, _, err := log.ReadAll()
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Contains(t, events[0].Extra, "custom")
	assert.Equal(t, "value", events[0].Extra["custom"])
}
