package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmittedEvents(t *testing.T) {
	now := time.Now()
	output := `Working on it...
{"topic":"build.task","payload":"Build the parser"}
some prose in between
{"topic":"notify","payload":"done","target":"reviewer"}
{not json at all}
{"payload":"no topic, skipped"}`

	events := ParseEmittedEvents(output, "planner", now)
	require.Len(t, events, 2)

	assert.Equal(t, "build.task", events[0].Topic)
	assert.Equal(t, "Build the parser", events[0].Payload)
	assert.Equal(t, "planner", events[0].Source)
	assert.Equal(t, now.UTC(), events[0].Ts)

	assert.Equal(t, "notify", events[1].Topic)
	assert.Equal(t, "reviewer", events[1].Target)
}

func TestParseEmittedEventsToleratesIndentation(t *testing.T) {
	events := ParseEmittedEvents("  {\"topic\":\"a.b\",\"payload\":\"x\"}  ", "h", time.Now())
	require.Len(t, events, 1)
	assert.Equal(t, "a.b", events[0].Topic)
}

func TestParseEmittedEventsEmptyOutput(t *testing.T) {
	assert.Empty(t, ParseEmittedEvents("", "h", time.Now()))
	assert.Empty(t, ParseEmittedEvents("just prose\nno events here", "h", time.Now()))
}
