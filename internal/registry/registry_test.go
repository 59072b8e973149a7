package registry

import (
	"path/filepath"
	"testing"
	"time"
)

func TestRegisterThenReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.jsonl")

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := r.Register("ralph-1", "/repo/.worktrees/ralph-1", "do the thing"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	reloaded, err := Open(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	entries := reloaded.All()
	if len(entries) != 1 || entries[0].LoopID != "ralph-1" {
		t.Fatalf("unexpected entries: %v", entries)
	}
	if entries[0].Status != StatusRunning {
		t.Fatalf("expected fresh registration to be Running, got %s", entries[0].Status)
	}
}

func TestMarkStatusUpdatesExistingEntry(t *testing.T) {
	dir := t.TempDir()
	r, _ := Open(filepath.Join(dir, "registry.jsonl"))
	r.Register("ralph-1", "/repo/.worktrees/ralph-1", "prompt")

	if err := r.MarkStatus("ralph-1", StatusCompleted); err != nil {
		t.Fatalf("MarkStatus: %v", err)
	}

	entries := r.All()
	if entries[0].Status != StatusCompleted {
		t.Fatalf("expected Completed, got %s", entries[0].Status)
	}
}

func TestMarkStatusUnknownLoopErrors(t *testing.T) {
	r, _ := Open(filepath.Join(t.TempDir(), "registry.jsonl"))
	if err := r.MarkStatus("nonexistent", StatusFailed); err == nil {
		t.Fatal("expected error marking an unregistered loop id")
	}
}

func TestListActiveExcludesTerminalEntries(t *testing.T) {
	r, _ := Open(filepath.Join(t.TempDir(), "registry.jsonl"))
	r.Register("ralph-1", "/a", "p1")
	r.Register("ralph-2", "/b", "p2")
	r.MarkStatus("ralph-2", StatusFailed)

	active := r.ListActive()
	if len(active) != 1 || active[0].LoopID != "ralph-1" {
		t.Fatalf("expected only ralph-1 to be active, got %v", active)
	}
}

func TestFingerprintIsStableForSamePrompt(t *testing.T) {
	if Fingerprint("same prompt") != Fingerprint("same prompt") {
		t.Fatal("expected identical prompts to fingerprint identically")
	}
	if Fingerprint("prompt a") == Fingerprint("prompt b") {
		t.Fatal("expected different prompts to fingerprint differently")
	}
}

func TestGCStaleRemovesRunningEntriesWithMissingWorkspace(t *testing.T) {
	dir := t.TempDir()
	r, _ := Open(filepath.Join(dir, "registry.jsonl"))
	r.Register("ralph-1", filepath.Join(dir, "gone"), "prompt")

	removed, err := r.GCStale(0)
	if err != nil {
		t.Fatalf("GCStale: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if len(r.All()) != 0 {
		t.Fatalf("expected stale entry gone, got %v", r.All())
	}
}

func TestGCStaleKeepsRecentEntries(t *testing.T) {
	dir := t.TempDir()
	r, _ := Open(filepath.Join(dir, "registry.jsonl"))
	r.Register("ralph-1", filepath.Join(dir, "gone"), "prompt")

	removed, err := r.GCStale(24 * time.Hour)
	if err != nil {
		t.Fatalf("GCStale: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected fresh entry to survive a generous max age, got %d removed", removed)
	}
}
