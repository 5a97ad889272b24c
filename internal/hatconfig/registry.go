package hatconfig

import (
	"sort"

	"github.com/steveyegge/ralph/internal/proto"
)

// Registry holds the hats built from a loaded Config plus the
// statically computed default-publishes hint table. The table is
// advisory-only, never written back into Config.
type Registry struct {
	cfg  Config
	hats map[string]proto.Hat
	// order preserves deterministic hat construction order (sorted by
	// id) independent of Go's randomized map iteration, since nothing in
	// ralph.yml specifies an explicit hat ordering.
	order []string
	// defaultPublishes maps hat id to the inferred publish hint computed
	// by inferDefaultPublishes: every subscribed topic in the topology
	// that this hat does not itself subscribe to.
	defaultPublishes map[string][]string
}

// NewRegistry builds hats from cfg and computes default-publishes hints
// for any hat with no explicit publishes list.
func NewRegistry(cfg Config) *Registry {
	r := &Registry{cfg: cfg, hats: make(map[string]proto.Hat, len(cfg.Hats))}

	for id := range cfg.Hats {
		r.order = append(r.order, id)
	}
	sort.Strings(r.order)

	for _, id := range r.order {
		hc := cfg.Hats[id]
		backend := hc.Backend
		if backend == "" {
			backend = cfg.Cli.Backend
		}
		r.hats[id] = proto.Hat{
			ID:         id,
			Name:       hc.Name,
			Subscribes: hc.Triggers,
			Publishes:  hc.Publishes,
			Command:    proto.CommandTemplate{Backend: backend},
		}
	}

	r.defaultPublishes = inferDefaultPublishes(cfg)
	return r
}

// Hats returns every registered hat in a deterministic (sorted-by-id)
// order.
func (r *Registry) Hats() []proto.Hat {
	out := make([]proto.Hat, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.hats[id])
	}
	return out
}

// Solo reports whether this registry has no hats configured at all,
// in which case every iteration falls back to Ralph.
func (r *Registry) Solo() bool {
	return len(r.hats) == 0
}

// Get returns the hat with id, if registered.
func (r *Registry) Get(id string) (proto.Hat, bool) {
	h, ok := r.hats[id]
	return h, ok
}

// PublishHint returns the topics a hat is documented (or inferred) to
// publish, for use only as a prompt-building hint; it is never used to
// restrict what the hat may actually publish.
func (r *Registry) PublishHint(id string) []string {
	if h, ok := r.hats[id]; ok && len(h.Publishes) > 0 {
		return h.Publishes
	}
	return r.defaultPublishes[id]
}

// inferDefaultPublishes computes, for every hat with no explicit
// publishes list, the sorted set of topics that any hat subscribes to,
// minus the patterns this hat subscribes to itself (compared as exact
// strings), so a topic this hat shares with another hat is left out. This
// is deliberately coarse, a static lookup table computed at load time,
// not a precise producer/consumer graph: a hat
// with no publishes list is hinted to potentially produce anything
// another hat is listening for, since the config gives no stronger
// signal about which hat actually emits which topic.
func inferDefaultPublishes(cfg Config) map[string][]string {
	allSubscriptions := make(map[string]struct{})
	for _, hc := range cfg.Hats {
		for _, topic := range hc.Triggers {
			allSubscriptions[topic] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(allSubscriptions))
	for topic := range allSubscriptions {
		sorted = append(sorted, topic)
	}
	sort.Strings(sorted)

	hints := make(map[string][]string, len(cfg.Hats))
	for id, hc := range cfg.Hats {
		if len(hc.Publishes) > 0 {
			continue
		}
		var hint []string
		for _, topic := range sorted {
			if !subscribesTo(hc.Triggers, topic) {
				hint = append(hint, topic)
			}
		}
		hints[id] = hint
	}
	return hints
}

func subscribesTo(patterns []string, topic string) bool {
	for _, p := range patterns {
		if p == topic {
			return true
		}
	}
	return false
}
