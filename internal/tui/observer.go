// Package tui specifies the read-only contract between the event loop
// and a terminal UI. The rendering itself (widgets, keybindings, scroll
// buffers) lives elsewhere; this package only defines the projection a
// renderer consumes and a reference in-memory implementation.
package tui

import (
	"sync"

	"github.com/steveyegge/ralph/internal/proto"
)

// Snapshot is a point-in-time view of loop activity, safe to hand to a
// renderer on another goroutine.
type Snapshot struct {
	EventCount  uint64
	LastTopic   string
	LastPayload string
	TopicCounts map[string]uint64
	ErrorCount  uint64
}

// Projection consumes published events and exposes snapshots. Update is
// called from the loop's context, before routing, for every event; it
// must not block.
type Projection interface {
	Update(event proto.Event)
	Snapshot() Snapshot
}

// BusObserver adapts a Projection to the bus observer contract.
func BusObserver(p Projection) proto.Observer {
	return func(event proto.Event) {
		p.Update(event)
	}
}

// MemoryProjection is the reference Projection: counters behind a
// mutex, snapshotted by value on read so the renderer never shares
// mutable state with the loop.
type MemoryProjection struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewMemoryProjection returns an empty projection.
func NewMemoryProjection() *MemoryProjection {
	return &MemoryProjection{snap: Snapshot{TopicCounts: make(map[string]uint64)}}
}

func (m *MemoryProjection) Update(event proto.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.EventCount++
	m.snap.LastTopic = event.Topic
	m.snap.LastPayload = event.Payload
	m.snap.TopicCounts[event.Topic]++
	if event.Topic == "loop.error" {
		m.snap.ErrorCount++
	}
}

func (m *MemoryProjection) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.snap
	out.TopicCounts = make(map[string]uint64, len(m.snap.TopicCounts))
	for k, v := range m.snap.TopicCounts {
		out.TopicCounts[k] = v
	}
	return out
}
