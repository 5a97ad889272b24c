package orchestrator

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/steveyegge/ralph/internal/proto"
)

// emittedEvent is the shape agents use to hand events back to the loop:
// a single JSON line in their output with at least a topic.
type emittedEvent struct {
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
	Target  string `json:"target"`
}

// ParseEmittedEvents scans agent output line by line for JSON objects
// carrying a "topic" field and returns them as events stamped with now
// and the emitting hat as source. Non-JSON lines and JSON without a
// topic are ordinary agent chatter, skipped without complaint.
func ParseEmittedEvents(output, source string, now time.Time) []proto.Event {
	var events []proto.Event
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "{") {
			continue
		}

		var em emittedEvent
		if err := json.Unmarshal([]byte(trimmed), &em); err != nil {
			continue
		}
		if em.Topic == "" {
			continue
		}

		events = append(events, proto.Event{
			Topic:   em.Topic,
			Payload: em.Payload,
			Target:  em.Target,
			Source:  source,
			Ts:      now.UTC(),
		})
	}
	return events
}
