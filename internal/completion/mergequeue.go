// Package completion implements the Completion Handler policy table and
// the file-per-entry MergeQueue that auto-merge-enabled worktree loops
// feed into.
package completion

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	apperrors "github.com/hatloop/hatloop/pkg/errors"
)

// MergeState is the lifecycle of one merge queue entry.
type MergeState string

const (
	MergePending    MergeState = "pending"
	MergeProcessing MergeState = "processing"
	MergeDone       MergeState = "done"
	MergeFailed     MergeState = "failed"
)

// MergeEntry is one FIFO queue row, persisted as its own JSON file so a
// separate merge-processing command can claim entries without a shared
// index file to contend over.
type MergeEntry struct {
	LoopID     string     `json:"loop_id"`
	Prompt     string     `json:"prompt"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	State      MergeState `json:"state"`
}

// MergeQueue is the ordered FIFO of MergeEntry rows under
// <repoRoot>/.hatloop/merge-queue/.
type MergeQueue struct {
	dir string
}

// NewMergeQueue builds a MergeQueue rooted at repoRoot.
func NewMergeQueue(repoRoot string) *MergeQueue {
	return &MergeQueue{dir: filepath.Join(repoRoot, ".hatloop", "merge-queue")}
}

func (q *MergeQueue) entryPath(loopID string) string {
	return filepath.Join(q.dir, loopID+".json")
}

// Enqueue writes a new Pending entry for loopID. It is not an error to
// enqueue the same loop ID twice; the later write wins.
func (q *MergeQueue) Enqueue(loopID, prompt string) error {
	if err := os.MkdirAll(q.dir, 0o755); err != nil {
		return apperrors.NewIoError("create merge queue directory", err)
	}
	entry := MergeEntry{
		LoopID:     loopID,
		Prompt:     prompt,
		EnqueuedAt: time.Now().UTC(),
		State:      MergePending,
	}
	return q.writeEntry(entry)
}

func (q *MergeQueue) writeEntry(entry MergeEntry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return apperrors.NewIoError("marshal merge queue entry", err)
	}
	if err := os.WriteFile(q.entryPath(entry.LoopID), data, 0o644); err != nil {
		return apperrors.NewIoError("write merge queue entry", err)
	}
	return nil
}

// GetEntry returns the entry for loopID, or false if none is queued.
func (q *MergeQueue) GetEntry(loopID string) (MergeEntry, bool, error) {
	data, err := os.ReadFile(q.entryPath(loopID))
	if err != nil {
		if os.IsNotExist(err) {
			return MergeEntry{}, false, nil
		}
		return MergeEntry{}, false, apperrors.NewIoError("read merge queue entry", err)
	}
	var entry MergeEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return MergeEntry{}, false, apperrors.NewEventParseError("parse merge queue entry", err)
	}
	return entry, true, nil
}

// SetState updates the state of an existing entry.
func (q *MergeQueue) SetState(loopID string, state MergeState) error {
	entry, ok, err := q.GetEntry(loopID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewHatNotFoundError("no such merge queue entry: " + loopID)
	}
	entry.State = state
	return q.writeEntry(entry)
}

// Pending returns every Pending entry, oldest first, for FIFO processing.
func (q *MergeQueue) Pending() ([]MergeEntry, error) {
	files, err := os.ReadDir(q.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.NewIoError("list merge queue directory", err)
	}

	var entries []MergeEntry
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(q.dir, f.Name()))
		if err != nil {
			continue
		}
		var e MergeEntry
		if err := json.Unmarshal(data, &e); err != nil {
			continue
		}
		if e.State == MergePending {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].EnqueuedAt.Before(entries[j].EnqueuedAt) })
	return entries, nil
}
