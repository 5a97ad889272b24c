package orchestrator

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/steveyegge/ralph/internal/proto"
)

// Thrashing defaults: the same topic+payload repeating this many times
// inside the window is flagged.
const (
	defaultThrashThreshold = 3
	defaultThrashWindow    = 60 * time.Second
)

// thrashDetector flags repeated identical topic+payload pairs, the
// cheap loop-prevention the bus deliberately does not do (self-routing
// is allowed; cycles are the scheduler's problem). A hit raises a
// loop.error event, never a hard termination: an agent legitimately
// retries, it just shouldn't spin.
type thrashDetector struct {
	threshold int
	window    time.Duration
	seen      map[uint64][]time.Time
}

func newThrashDetector(threshold int, window time.Duration) *thrashDetector {
	if threshold <= 0 {
		threshold = defaultThrashThreshold
	}
	if window <= 0 {
		window = defaultThrashWindow
	}
	return &thrashDetector{
		threshold: threshold,
		window:    window,
		seen:      make(map[uint64][]time.Time),
	}
}

// Observe records event at now and reports whether it crossed the
// repetition threshold within the window.
func (d *thrashDetector) Observe(event proto.Event, now time.Time) bool {
	key := thrashKey(event)

	recent := d.seen[key][:0]
	for _, t := range d.seen[key] {
		if now.Sub(t) < d.window {
			recent = append(recent, t)
		}
	}
	recent = append(recent, now)
	d.seen[key] = recent

	return len(recent) >= d.threshold
}

func thrashKey(event proto.Event) uint64 {
	h := fnv.New64a()
	h.Write([]byte(event.Topic))
	h.Write([]byte{0})
	h.Write([]byte(event.Payload))
	return h.Sum64()
}

func thrashMessage(event proto.Event) string {
	return fmt.Sprintf("thrashing detected: topic %q repeating with identical payload", event.Topic)
}
