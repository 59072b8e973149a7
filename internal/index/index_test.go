package index

import (
	"path/filepath"
	"testing"

	"github.com/hatloop/hatloop/internal/registry"
)

func TestRebuildMirrorsRegistryEntries(t *testing.T) {
	dir := t.TempDir()
	reg, err := registry.Open(filepath.Join(dir, "registry.jsonl"))
	if err != nil {
		t.Fatalf("registry.Open: %v", err)
	}
	if err := reg.Register("loop-a", "/work/a", "prompt a"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register("loop-b", "/work/b", "prompt b"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.MarkStatus("loop-b", registry.StatusCompleted); err != nil {
		t.Fatalf("MarkStatus: %v", err)
	}

	db, err := Open(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	n, err := Rebuild(db, reg)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows rebuilt, got %d", n)
	}

	active, err := ListActive(db)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 1 || active[0].LoopID != "loop-a" {
		t.Fatalf("expected only loop-a active, got %+v", active)
	}
}

func TestRebuildTruncatesPriorRows(t *testing.T) {
	dir := t.TempDir()
	reg, err := registry.Open(filepath.Join(dir, "registry.jsonl"))
	if err != nil {
		t.Fatalf("registry.Open: %v", err)
	}
	db, err := Open(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := reg.Register("loop-a", "/work/a", "prompt a"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := Rebuild(db, reg); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	reg2, err := registry.Open(filepath.Join(dir, "registry.jsonl"))
	if err != nil {
		t.Fatalf("re-open registry: %v", err)
	}
	rows, err := Query(db, "", "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row before rebuilding from the reloaded registry, got %d", len(rows))
	}

	n, err := Rebuild(db, reg2)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected rebuild to reflect the reloaded registry's 1 entry, got %d", n)
	}
}
