package scheduler

import (
	"strings"
	"testing"

	"github.com/hatloop/hatloop/internal/event"
	"github.com/hatloop/hatloop/internal/eventlog"
	"github.com/hatloop/hatloop/internal/hats"
	"github.com/hatloop/hatloop/internal/topic"
)

func TestTickSynthesizesFallbackWhenQueueEmpty(t *testing.T) {
	dir := t.TempDir()
	log, err := eventlog.RotateForNewRun(dir)
	if err != nil {
		t.Fatalf("RotateForNewRun: %v", err)
	}
	defer log.Close()

	registry := hats.NewRegistry(nil)
	s := New(log, registry)

	d, err := s.Tick()
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if d.HatID != hats.FallbackID || d.Event != nil {
		t.Fatalf("expected synthetic fallback tick, got %+v", d)
	}
}

func TestTickDeliversInLogOrderThenFallsBackToFallback(t *testing.T) {
	dir := t.TempDir()
	log, err := eventlog.RotateForNewRun(dir)
	if err != nil {
		t.Fatalf("RotateForNewRun: %v", err)
	}
	defer log.Close()

	builder := hats.Hat{ID: "builder", Subscriptions: []topic.Topic{topic.New("task.*")}}
	registry := hats.NewRegistry([]hats.Hat{builder})
	s := New(log, registry)

	if err := log.Append(event.New(topic.New("task.ready"), "go")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	d1, err := s.Tick()
	if err != nil {
		t.Fatalf("Tick 1: %v", err)
	}
	if d1.HatID != "builder" || d1.Event == nil {
		t.Fatalf("expected builder delivery first, got %+v", d1)
	}

	d2, err := s.Tick()
	if err != nil {
		t.Fatalf("Tick 2: %v", err)
	}
	if d2.HatID != hats.FallbackID || d2.Event == nil {
		t.Fatalf("expected fallback to also receive the event (it subscribes to *), got %+v", d2)
	}

	d3, err := s.Tick()
	if err != nil {
		t.Fatalf("Tick 3: %v", err)
	}
	if d3.HatID != hats.FallbackID || d3.Event != nil {
		t.Fatalf("expected synthetic fallback tick once queue drains, got %+v", d3)
	}
}

func TestComposePromptDispatchesByHatID(t *testing.T) {
	dir := t.TempDir()
	log, err := eventlog.RotateForNewRun(dir)
	if err != nil {
		t.Fatalf("RotateForNewRun: %v", err)
	}
	defer log.Close()

	builder := hats.Hat{ID: "builder", Instructions: "build one task then exit"}
	registry := hats.NewRegistry([]hats.Hat{builder})
	s := New(log, registry)
	composer := NewPromptComposer(CoreConfig{CompletionPromise: "LOOP_COMPLETE"}, registry)

	prompt := s.ComposePrompt(composer, Delivery{HatID: "builder"})
	if !strings.Contains(prompt, "build one task then exit") {
		t.Fatalf("expected builder instructions in prompt, got %q", prompt)
	}

	fallbackPrompt := s.ComposePrompt(composer, Delivery{HatID: hats.FallbackID})
	if !strings.Contains(fallbackPrompt, "MULTI-HAT MODE") {
		t.Fatalf("expected multi-hat section since a custom hat is configured, got %q", fallbackPrompt)
	}
}
