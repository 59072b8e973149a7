package workspace

import (
	"path/filepath"
	"testing"
)

func TestPrimaryHasNoLoopIDAndUsesRepoRootAsWorkspace(t *testing.T) {
	ctx := Primary("/repo")
	if ctx.Kind != KindPrimary {
		t.Fatalf("expected KindPrimary, got %v", ctx.Kind)
	}
	if ctx.Workspace != "/repo" {
		t.Fatalf("expected workspace to equal repo root, got %s", ctx.Workspace)
	}
	if ctx.LoopID != "" {
		t.Fatalf("expected empty LoopID for a primary context, got %s", ctx.LoopID)
	}
	if ctx.IsWorktree() {
		t.Fatal("primary context must not report IsWorktree")
	}
}

func TestWorktreeIsolatesUnderDotWorktrees(t *testing.T) {
	ctx := Worktree("loop-42", "/repo")
	if ctx.Kind != KindWorktree {
		t.Fatalf("expected KindWorktree, got %v", ctx.Kind)
	}
	want := filepath.Join("/repo", ".worktrees", "loop-42")
	if ctx.Workspace != want {
		t.Fatalf("expected workspace %s, got %s", want, ctx.Workspace)
	}
	if ctx.LoopID != "loop-42" {
		t.Fatalf("expected LoopID to be set, got %s", ctx.LoopID)
	}
	if !ctx.IsWorktree() {
		t.Fatal("worktree context must report IsWorktree")
	}
}
