// Package event defines the Event record that flows through the
// orchestrator's event bus, plus the parser that recovers embedded events
// from an agent's raw output.
package event

import (
	"regexp"
	"time"

	"github.com/hatloop/hatloop/internal/topic"
)

// Event is an immutable record once it has been appended to the log.
type Event struct {
	Topic   topic.Topic `json:"topic"`
	Payload string      `json:"payload"`
	Ts      time.Time   `json:"ts"`
}

// New stamps a new Event with the current time.
func New(t topic.Topic, payload string) Event {
	return Event{Topic: t, Payload: payload, Ts: time.Now().UTC()}
}

// embeddedEventRe matches agent-emitted inline events of the form
// <event topic="impl.done">payload text</event>. Payload is captured
// non-greedily so multiple embedded events on the same output don't merge.
var embeddedEventRe = regexp.MustCompile(`(?s)<event\s+topic="([^"]+)">(.*?)</event>`)

// ExtractEmbedded scans raw agent output for <event topic="...">...</event>
// tags and returns the Events they describe, in the order they appear.
// Text that doesn't match the tag shape is simply not an event; this is not
// an error condition, the agent is free to mix narration with events.
func ExtractEmbedded(text string) []Event {
	matches := embeddedEventRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	events := make([]Event, 0, len(matches))
	for _, m := range matches {
		events = append(events, New(topic.New(m[1]), m[2]))
	}
	return events
}
