package proto

// Observer receives every event published to the bus, before routing.
// Implementations must not block the caller for long: the bus invokes
// it synchronously, in-line with publish.
type Observer func(Event)

// Bus is the central pub/sub hub routing events between hats. It is not
// safe for concurrent use; the event loop drives it from a single
// goroutine.
type Bus struct {
	order    []string
	hats     map[string]Hat
	pending  map[string][]Event
	observer Observer
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{
		hats:    make(map[string]Hat),
		pending: make(map[string][]Event),
	}
}

// SetObserver installs the bus observer, replacing any previous one. At
// most one observer is active at a time.
func (b *Bus) SetObserver(o Observer) {
	b.observer = o
}

// ClearObserver removes the current observer, if any.
func (b *Bus) ClearObserver() {
	b.observer = nil
}

// Register inserts hat by ID and creates its (initially empty) pending
// queue. Registering a hat with an ID already present replaces it but
// preserves its existing pending queue and its position in iteration
// order.
func (b *Bus) Register(hat Hat) {
	if _, exists := b.hats[hat.ID]; !exists {
		b.order = append(b.order, hat.ID)
		b.pending[hat.ID] = nil
	}
	b.hats[hat.ID] = hat
}

// Publish routes event to its recipients and returns their IDs.
//
//  1. If an observer is set, it is invoked first, before any routing.
//  2. If event.Target is set and registered, the event is enqueued only
//     on that hat's queue, bypassing subscription matching entirely. If
//     event.Target is set but not registered, the event is dropped and
//     no hat receives it.
//  3. Otherwise every hat, in registration order, whose subscription
//     matches event.Topic receives a clone; self-routing is allowed.
func (b *Bus) Publish(event Event) []string {
	if b.observer != nil {
		b.observer(event)
	}

	if event.HasTarget() {
		if _, ok := b.hats[event.Target]; ok {
			b.pending[event.Target] = append(b.pending[event.Target], event.Clone())
			return []string{event.Target}
		}
		return nil
	}

	var recipients []string
	for _, id := range b.order {
		hat := b.hats[id]
		if hat.MatchesAny(event.Topic) {
			b.pending[id] = append(b.pending[id], event.Clone())
			recipients = append(recipients, id)
		}
	}
	return recipients
}

// TakePending removes and returns the entire pending queue for id, in
// the order events were published.
func (b *Bus) TakePending(id string) []Event {
	events := b.pending[id]
	b.pending[id] = nil
	return events
}

// HasPending reports whether any registered hat has at least one pending
// event.
func (b *Bus) HasPending() bool {
	for _, id := range b.order {
		if len(b.pending[id]) > 0 {
			return true
		}
	}
	return false
}

// NextHatWithPending returns the ID of the first hat (in registration
// order) with a non-empty pending queue, and true; if none, "" and
// false.
func (b *Bus) NextHatWithPending() (string, bool) {
	for _, id := range b.order {
		if len(b.pending[id]) > 0 {
			return id, true
		}
	}
	return "", false
}

// GetHat returns the registered hat for id, and whether it exists.
func (b *Bus) GetHat(id string) (Hat, bool) {
	h, ok := b.hats[id]
	return h, ok
}

// HatIDs returns all registered hat IDs in registration order.
func (b *Bus) HatIDs() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}
