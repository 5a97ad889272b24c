package proto

import "time"

// Event is an immutable record flowing through the bus. Once appended to
// the log it is never mutated; publishing the same value to multiple
// hats hands each of them a separate logical clone so no hat can observe
// another's mutation of Payload.
type Event struct {
	Topic   string    `json:"topic"`
	Payload string    `json:"payload"`
	Ts      time.Time `json:"ts"`
	Source  string    `json:"source,omitempty"`
	Target  string    `json:"target,omitempty"`

	// Extra carries any additional JSON fields present on the record that
	// this package does not interpret, preserved verbatim on round-trip.
	Extra map[string]any `json:"-"`
}

// Clone returns a value copy of e. Event fields are all value types
// except Extra, which is shallow-copied since its values are never
// mutated in place by this package.
func (e Event) Clone() Event {
	clone := e
	if e.Extra != nil {
		clone.Extra = make(map[string]any, len(e.Extra))
		for k, v := range e.Extra {
			clone.Extra[k] = v
		}
	}
	return clone
}

// HasTarget reports whether the event carries an explicit direct target,
// which bypasses subscription matching entirely.
func (e Event) HasTarget() bool {
	return e.Target != ""
}
