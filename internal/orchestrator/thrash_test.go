package orchestrator

import (
	"testing"
	"time"

	"github.com/steveyegge/ralph/internal/proto"
	"github.com/stretchr/testify/assert"
)

func TestThrashDetectorFlagsRepeats(t *testing.T) {
	d := newThrashDetector(3, time.Minute)
	event := proto.Event{Topic: "build.task", Payload: "same thing"}
	now := time.Now()

	assert.False(t, d.Observe(event, now))
	assert.False(t, d.Observe(event, now.Add(time.Second)))
	assert.True(t, d.Observe(event, now.Add(2*time.Second)))
}

func TestThrashDetectorDistinguishesPayloads(t *testing.T) {
	d := newThrashDetector(2, time.Minute)
	now := time.Now()

	assert.False(t, d.Observe(proto.Event{Topic: "build.task", Payload: "a"}, now))
	assert.False(t, d.Observe(proto.Event{Topic: "build.task", Payload: "b"}, now))
	assert.True(t, d.Observe(proto.Event{Topic: "build.task", Payload: "a"}, now.Add(time.Second)))
}

func TestThrashDetectorWindowExpires(t *testing.T) {
	d := newThrashDetector(2, 10*time.Second)
	event := proto.Event{Topic: "x.y", Payload: "p"}
	now := time.Now()

	assert.False(t, d.Observe(event, now))
	// Outside the window: the earlier observation no longer counts.
	assert.False(t, d.Observe(event, now.Add(11*time.Second)))
	assert.True(t, d.Observe(event, now.Add(12*time.Second)))
}

func TestThrashDetectorDefaults(t *testing.T) {
	d := newThrashDetector(0, 0)
	assert.Equal(t, defaultThrashThreshold, d.threshold)
	assert.Equal(t, defaultThrashWindow, d.window)
}
