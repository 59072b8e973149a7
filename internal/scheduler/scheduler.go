// Package scheduler implements the single-threaded per-loop tick
// algorithm: drain new events, resolve them to hats, and return the next
// pending delivery, whose prompt the caller composes and hands to the
// backend executor.
package scheduler

import (
	"github.com/hatloop/hatloop/internal/event"
	"github.com/hatloop/hatloop/internal/eventlog"
	"github.com/hatloop/hatloop/internal/hats"
)

// Delivery is one (hat, triggering event) pair waiting to run. Event is
// nil for the synthetic tick delivery handed to the fallback agent when
// nothing else is pending.
type Delivery struct {
	HatID string
	Event *event.Event
}

// Scheduler owns the pending-delivery queue and the EventLog read offset
// for one loop. It is not safe for concurrent use; a loop has exactly
// one scheduler goroutine.
type Scheduler struct {
	log      *eventlog.Log
	registry *hats.Registry
	offset   int
	queue    []Delivery
}

// New builds a Scheduler reading from log and resolving hats via registry.
func New(log *eventlog.Log, registry *hats.Registry) *Scheduler {
	return &Scheduler{log: log, registry: registry}
}

// Tick advances the scheduler by one step: it first folds in any events
// appended since the last tick, then pops and returns the next pending
// delivery. If nothing is pending after draining new events, it
// synthesizes a tick delivery for the fallback agent.
func (s *Scheduler) Tick() (Delivery, error) {
	if err := s.drainNewEvents(); err != nil {
		return Delivery{}, err
	}

	if len(s.queue) == 0 {
		return Delivery{HatID: hats.FallbackID}, nil
	}

	head := s.queue[0]
	s.queue = s.queue[1:]
	return head, nil
}

// drainNewEvents reads events since the last offset and enqueues one
// delivery per (hat, event) match, preserving log order for ties.
func (s *Scheduler) drainNewEvents() error {
	events, newOffset, err := s.log.TailSince(s.offset)
	if err != nil {
		return err
	}
	s.offset = newOffset

	for i := range events {
		ev := events[i]
		for _, hatID := range s.registry.Resolve(ev.Topic) {
			s.queue = append(s.queue, Delivery{HatID: hatID, Event: &ev})
		}
	}
	return nil
}

// Pending reports how many deliveries are queued, for diagnostics.
func (s *Scheduler) Pending() int {
	return len(s.queue)
}

// Offset returns the scheduler's current EventLog read offset.
func (s *Scheduler) Offset() int {
	return s.offset
}

// ComposePrompt builds the prompt for a delivery, dispatching to the hat's
// own instructions or the fallback's solo/multi-hat preamble.
func (s *Scheduler) ComposePrompt(composer *PromptComposer, d Delivery) string {
	if d.HatID == hats.FallbackID {
		return composer.ComposeFallback()
	}
	h, ok := s.registry.Get(d.HatID)
	if !ok {
		return composer.ComposeFallback()
	}
	return composer.ComposeHat(h)
}

// BackendOverride returns the hat's backend override, if it has one.
func (s *Scheduler) BackendOverride(hatID string) string {
	h, ok := s.registry.Get(hatID)
	if !ok {
		return ""
	}
	return h.BackendOverride
}
