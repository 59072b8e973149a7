// Package workspace implements LoopContext (where a loop runs: the
// primary checkout or an isolated git worktree) and the advisory
// LoopLock that serializes access to one workspace.
package workspace

import "path/filepath"

// Kind distinguishes a Primary loop context from a Worktree one.
type Kind string

const (
	KindPrimary  Kind = "primary"
	KindWorktree Kind = "worktree"
)

// Context describes where a loop's files live. A Primary context always
// has an empty LoopID and never enqueues for auto-merge; a Worktree
// context always carries a non-empty LoopID.
type Context struct {
	Kind      Kind
	Workspace string
	RepoRoot  string
	LoopID    string
}

// Primary builds the context for a loop running directly against the
// repository checkout.
func Primary(repoRoot string) Context {
	return Context{Kind: KindPrimary, Workspace: repoRoot, RepoRoot: repoRoot}
}

// Worktree builds the context for a loop isolated in
// <repoRoot>/.worktrees/<loopID>.
func Worktree(loopID, repoRoot string) Context {
	return Context{
		Kind:      KindWorktree,
		Workspace: filepath.Join(repoRoot, ".worktrees", loopID),
		RepoRoot:  repoRoot,
		LoopID:    loopID,
	}
}

// IsWorktree reports whether this context is an isolated worktree.
func (c Context) IsWorktree() bool {
	return c.Kind == KindWorktree
}
