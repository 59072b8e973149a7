package hats

import "github.com/hatloop/hatloop/internal/topic"

// Registry resolves a topic to the ordered list of hats that should handle
// it. It is built once from config and never mutated during a loop.
type Registry struct {
	hats []Hat // config-ordered, fallback appended last
}

// NewRegistry builds a Registry from the configured hats. An empty config
// still yields a working registry: fallback-only, i.e. "solo mode".
func NewRegistry(configured []Hat) *Registry {
	hats := make([]Hat, 0, len(configured)+1)
	hats = append(hats, configured...)
	hats = append(hats, fallbackHat())
	return &Registry{hats: hats}
}

// Resolve returns, in priority order, the IDs of every hat whose
// subscription set matches t. Ties between custom hats are broken by
// configuration order; the fallback agent is always last since it
// subscribes to the global wildcard.
func (r *Registry) Resolve(t topic.Topic) []string {
	var ids []string
	for _, h := range r.hats {
		if h.matchesAny(t) {
			ids = append(ids, h.ID)
		}
	}
	return ids
}

// Get returns the hat with the given ID, or false if none is registered.
func (r *Registry) Get(id string) (Hat, bool) {
	for _, h := range r.hats {
		if h.ID == id {
			return h, true
		}
	}
	return Hat{}, false
}

// All returns every registered hat, fallback included, in resolution order.
func (r *Registry) All() []Hat {
	out := make([]Hat, len(r.hats))
	copy(out, r.hats)
	return out
}

// SoloMode reports whether no custom hats are configured, i.e. the
// registry holds only the fallback agent.
func (r *Registry) SoloMode() bool {
	return len(r.hats) == 1
}
