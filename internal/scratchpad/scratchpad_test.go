package scratchpad

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileYieldsNoItems(t *testing.T) {
	items, err := Load(filepath.Join(t.TempDir(), "scratchpad.md"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %v", items)
	}
}

func TestLoadParsesOpenAndClosedItems(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scratchpad.md")
	content := `# Scratchpad

## Tasks

- [ ] write the parser
- [x] wire the event log
- [ ] add tests
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	items, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 checklist items, got %d: %v", len(items), items)
	}

	summary := Summarize(items)
	if summary.Open != 2 || summary.Closed != 1 {
		t.Fatalf("expected 2 open and 1 closed, got %+v", summary)
	}
}

func TestSeedWritesTemplateOnlyWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scratchpad.md")

	if err := Seed(path); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	items, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected the template's one placeholder item, got %v", items)
	}

	if err := os.WriteFile(path, []byte("custom content"), 0o644); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := Seed(path); err != nil {
		t.Fatalf("Seed again: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "custom content" {
		t.Fatal("expected Seed to leave an existing scratchpad untouched")
	}
}
