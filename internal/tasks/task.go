// Package tasks implements the JSONL-backed task store: the durable list
// of work items a loop's hats add, close, and fail as they progress.
package tasks

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a Task.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
	StatusFailed Status = "failed"
)

// Task is a single work item. BlockedBy lists the IDs of tasks that must
// reach StatusClosed before this one is considered ready.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    uint8      `json:"priority"`
	Status      Status     `json:"status"`
	BlockedBy   []string   `json:"blocked_by,omitempty"`
	LoopID      string     `json:"loop_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}

// newTask builds a fresh Open task with a "task-" prefixed opaque ID.
func newTask(title, description string, priority uint8, blockedBy []string, loopID string) Task {
	return Task{
		ID:          fmt.Sprintf("task-%s", uuid.NewString()),
		Title:       title,
		Description: description,
		Priority:    priority,
		Status:      StatusOpen,
		BlockedBy:   blockedBy,
		LoopID:      loopID,
		CreatedAt:   time.Now().UTC(),
	}
}
