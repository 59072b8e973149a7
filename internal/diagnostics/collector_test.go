package diagnostics

import (
	"testing"
)

func TestRecordAppendsAndTailReturnsInOrder(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, "loop-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := c.Record(KindIterationStarted, "loop-1", map[string]any{"n": float64(1)}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := c.Record(KindHatSelected, "loop-1", map[string]any{"hat": "builder"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	records, err := Tail(dir, "loop-1")
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Kind != KindIterationStarted || records[1].Kind != KindHatSelected {
		t.Fatalf("unexpected record order: %+v", records)
	}
}

func TestTailOnMissingLoopReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	records, err := Tail(dir, "nonexistent")
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %v", records)
	}
}
