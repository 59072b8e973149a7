// Package hats implements the Hat Registry: the ordered, subscription-based
// router that decides which persona handles a given event.
package hats

import "github.com/hatloop/hatloop/internal/topic"

// FallbackID names the always-resident coordinator persona that matches
// every topic and cannot be disabled or removed from a config.
const FallbackID = "fallback"

// Hat is a stateless persona: its subscriptions decide which events route
// to it, its publishes document the events it is expected to emit, and its
// instructions become part of the prompt the Scheduler composes for it.
type Hat struct {
	ID              string
	DisplayName     string
	Subscriptions   []topic.Topic
	Publishes       []topic.Topic
	Instructions    string
	BackendOverride string // empty means "use the global backend"
}

// matchesAny reports whether any of the hat's subscription patterns match t.
func (h Hat) matchesAny(t topic.Topic) bool {
	for _, sub := range h.Subscriptions {
		if sub.Matches(t) {
			return true
		}
	}
	return false
}

// fallbackHat is the built-in solo-mode persona. It is always appended
// last by the Registry regardless of what config supplies.
func fallbackHat() Hat {
	return Hat{
		ID:            FallbackID,
		DisplayName:   "Fallback Agent",
		Subscriptions: []topic.Topic{topic.New("*")},
	}
}
