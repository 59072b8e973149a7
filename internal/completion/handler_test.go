package completion

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hatloop/hatloop/internal/workspace"
)

func TestPrimaryLoopNoAction(t *testing.T) {
	repoRoot := t.TempDir()
	ctx := workspace.Primary(repoRoot)
	handler := NewHandler(true, zap.NewNop())

	action, err := handler.HandleCompletion(ctx, "test prompt")
	if err != nil {
		t.Fatalf("HandleCompletion: %v", err)
	}
	if action.Kind != ActionNone {
		t.Fatalf("expected ActionNone, got %v", action)
	}
}

func TestWorktreeLoopAutoMergeEnqueues(t *testing.T) {
	repoRoot := t.TempDir()
	ctx := workspace.Worktree("ralph-test-1234", repoRoot)
	handler := NewHandler(true, zap.NewNop())

	action, err := handler.HandleCompletion(ctx, "implement feature X")
	if err != nil {
		t.Fatalf("HandleCompletion: %v", err)
	}
	if action.Kind != ActionEnqueued || action.LoopID != "ralph-test-1234" {
		t.Fatalf("expected Enqueued for ralph-test-1234, got %v", action)
	}

	queue := NewMergeQueue(repoRoot)
	entry, ok, err := queue.GetEntry("ralph-test-1234")
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if !ok || entry.Prompt != "implement feature X" {
		t.Fatalf("expected entry to be enqueued with prompt, got %v ok=%v", entry, ok)
	}
}

func TestWorktreeLoopNoAutoMergeManual(t *testing.T) {
	repoRoot := t.TempDir()
	ctx := workspace.Worktree("ralph-test-5678", repoRoot)
	handler := NewHandler(false, zap.NewNop())

	action, err := handler.HandleCompletion(ctx, "test prompt")
	if err != nil {
		t.Fatalf("HandleCompletion: %v", err)
	}
	if action.Kind != ActionManualMerge || action.LoopID != "ralph-test-5678" {
		t.Fatalf("expected ManualMerge for ralph-test-5678, got %v", action)
	}
	if action.WorktreePath != filepath.Join(repoRoot, ".worktrees", "ralph-test-5678") {
		t.Fatalf("unexpected worktree path: %s", action.WorktreePath)
	}

	queue := NewMergeQueue(repoRoot)
	_, ok, err := queue.GetEntry("ralph-test-5678")
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if ok {
		t.Fatal("expected nothing to be enqueued when auto-merge is disabled")
	}
}

func TestMergeQueuePendingIsFIFO(t *testing.T) {
	repoRoot := t.TempDir()
	queue := NewMergeQueue(repoRoot)

	queue.Enqueue("ralph-1", "first")
	queue.Enqueue("ralph-2", "second")

	pending, err := queue.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending entries, got %d", len(pending))
	}
	if pending[0].LoopID != "ralph-1" {
		t.Fatalf("expected FIFO order starting with ralph-1, got %v", pending)
	}
}

func TestMergeQueueSetStateExcludesFromPending(t *testing.T) {
	repoRoot := t.TempDir()
	queue := NewMergeQueue(repoRoot)
	queue.Enqueue("ralph-1", "prompt")

	if err := queue.SetState("ralph-1", MergeDone); err != nil {
		t.Fatalf("SetState: %v", err)
	}

	pending, err := queue.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending entries after marking done, got %v", pending)
	}
}
