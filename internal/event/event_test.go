package event

import "testing"

func TestExtractEmbeddedSingle(t *testing.T) {
	text := `Some narration first.
<event topic="impl.done">finished the parser</event>
More narration.`

	events := ExtractEmbedded(text)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Topic.String() != "impl.done" {
		t.Fatalf("unexpected topic: %s", events[0].Topic)
	}
	if events[0].Payload != "finished the parser" {
		t.Fatalf("unexpected payload: %q", events[0].Payload)
	}
}

func TestExtractEmbeddedMultiple(t *testing.T) {
	text := `<event topic="task.add">add a task</event>
	<event topic="task.close">close a task</event>`

	events := ExtractEmbedded(text)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Topic.String() != "task.add" || events[1].Topic.String() != "task.close" {
		t.Fatalf("unexpected topics: %v", events)
	}
}

func TestExtractEmbeddedNone(t *testing.T) {
	text := "plain narration with no tags at all"
	if events := ExtractEmbedded(text); events != nil {
		t.Fatalf("expected nil, got %v", events)
	}
}
