package completion

import (
	"go.uber.org/zap"

	"github.com/hatloop/hatloop/internal/workspace"
)

// ActionKind tags the variant of an Action.
type ActionKind string

const (
	ActionNone        ActionKind = "none"
	ActionEnqueued    ActionKind = "enqueued"
	ActionManualMerge ActionKind = "manual_merge"
)

// Action is what the Handler decided to do about a completed loop.
type Action struct {
	Kind         ActionKind
	LoopID       string
	WorktreePath string
}

// Handler decides what happens to a completed loop's worktree: nothing
// (Primary), an auto-merge enqueue, or a hand-off for manual merging.
type Handler struct {
	autoMerge bool
	logger    *zap.Logger
}

// NewHandler builds a Handler. autoMerge comes from the loop.auto_merge
// config key, which defaults to true.
func NewHandler(autoMerge bool, logger *zap.Logger) *Handler {
	return &Handler{autoMerge: autoMerge, logger: logger}
}

// HandleCompletion applies the policy table from the design spec:
// Primary -> None; Worktree+auto_merge -> Enqueued; Worktree without ->
// ManualMerge.
func (h *Handler) HandleCompletion(ctx workspace.Context, prompt string) (Action, error) {
	if !ctx.IsWorktree() {
		h.logger.Debug("primary loop completed, no special action needed")
		return Action{Kind: ActionNone}, nil
	}

	if ctx.LoopID == "" {
		h.logger.Debug("worktree context missing loop id, treating as primary")
		return Action{Kind: ActionNone}, nil
	}

	if h.autoMerge {
		queue := NewMergeQueue(ctx.RepoRoot)
		if err := queue.Enqueue(ctx.LoopID, prompt); err != nil {
			return Action{}, err
		}
		h.logger.Info("loop completed and enqueued for auto-merge",
			zap.String("loop_id", ctx.LoopID),
			zap.String("worktree", ctx.Workspace),
		)
		return Action{Kind: ActionEnqueued, LoopID: ctx.LoopID}, nil
	}

	h.logger.Info("loop completed, worktree preserved for manual merge",
		zap.String("loop_id", ctx.LoopID),
		zap.String("worktree", ctx.Workspace),
	)
	return Action{Kind: ActionManualMerge, LoopID: ctx.LoopID, WorktreePath: ctx.Workspace}, nil
}
