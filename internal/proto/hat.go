package proto

// Hat is a named agent persona registered on the bus. Hats reference
// each other only by ID (in Event.Target and in topology summaries),
// never by shared ownership, so the registry stays a simple map and
// cycles between hats cannot arise at the data-structure level.
type Hat struct {
	ID   string
	Name string

	// Subscribes is the ordered set of patterns this hat listens on. A
	// hat with no subscriptions never receives routed events, only
	// direct-targeted ones.
	Subscribes []string

	// Publishes is the ordered set of topics this hat is documented to
	// emit; it is a hint surfaced to the agent's prompt, not enforced.
	Publishes []string

	// Command describes how this hat's prompt is executed.
	Command CommandTemplate
}

// CommandTemplate specifies which backend executes a hat and how its
// prompt is assembled. It intentionally holds no behavior; the CLI
// execution layer interprets it.
type CommandTemplate struct {
	Backend     string
	Interactive bool
	ExtraArgs   []string
}

// MatchesAny reports whether topic matches any of the hat's subscription
// patterns.
func (h Hat) MatchesAny(topic string) bool {
	for _, pattern := range h.Subscribes {
		if Matches(pattern, topic) {
			return true
		}
	}
	return false
}
