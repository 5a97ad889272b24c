package tui

import (
	"testing"
	"time"

	"github.com/steveyegge/ralph/internal/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryProjectionCounts(t *testing.T) {
	p := NewMemoryProjection()
	bus := proto.NewBus()
	bus.SetObserver(BusObserver(p))

	bus.Publish(proto.Event{Topic: "task.start", Payload: "go", Ts: time.Now()})
	bus.Publish(proto.Event{Topic: "build.task", Payload: "build", Ts: time.Now()})
	bus.Publish(proto.Event{Topic: "build.task", Payload: "again", Ts: time.Now()})
	bus.Publish(proto.Event{Topic: "loop.error", Payload: "boom", Ts: time.Now()})

	snap := p.Snapshot()
	assert.Equal(t, uint64(4), snap.EventCount)
	assert.Equal(t, "loop.error", snap.LastTopic)
	assert.Equal(t, uint64(2), snap.TopicCounts["build.task"])
	assert.Equal(t, uint64(1), snap.ErrorCount)
}

func TestSnapshotIsIsolatedCopy(t *testing.T) {
	p := NewMemoryProjection()
	p.Update(proto.Event{Topic: "a.b", Ts: time.Now()})

	snap := p.Snapshot()
	snap.TopicCounts["a.b"] = 99
	require.Equal(t, uint64(1), p.Snapshot().TopicCounts["a.b"],
		"mutating a snapshot must not leak back into the projection")
}
