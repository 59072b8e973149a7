package tasks

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	apperrors "github.com/hatloop/hatloop/pkg/errors"
)

// Store is a full-rewrite-on-mutation JSONL task store. It is not safe
// for multiple processes to write concurrently; callers are expected to
// hold the loop's advisory lock before mutating.
type Store struct {
	mu    sync.Mutex
	path  string
	tasks []Task
}

// Load reads tasks from path. A missing file yields an empty store;
// malformed lines are silently skipped rather than failing the load.
func Load(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, apperrors.NewIoError("read task store", err)
	}

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var t Task
		if err := json.Unmarshal([]byte(line), &t); err != nil {
			continue
		}
		s.tasks = append(s.tasks, t)
	}
	if err := s.validateLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// validateLocked checks the full blocked_by graph for dangling references
// and cycles, mirroring the DAG executor's validate() in the teacher repo:
// a missing-dependency pass followed by Kahn's-algorithm topological sort
// to detect a cycle. Unlike a DAG, which validates once before a single
// concurrent run, a task store's graph can change on every Add and the
// backing JSONL can also be edited out from under it between loads, so
// this runs on both Load and Add rather than once at construction.
func (s *Store) validateLocked() error {
	byID := make(map[string]bool, len(s.tasks))
	for _, t := range s.tasks {
		byID[t.ID] = true
	}

	for _, t := range s.tasks {
		for _, dep := range t.BlockedBy {
			if !byID[dep] {
				return apperrors.NewCycleDetectedError(
					fmt.Sprintf("task %s is blocked by unknown task %s", t.ID, dep))
			}
		}
	}

	inDegree := make(map[string]int, len(s.tasks))
	adj := make(map[string][]string)
	for _, t := range s.tasks {
		inDegree[t.ID] = len(t.BlockedBy)
		for _, dep := range t.BlockedBy {
			adj[dep] = append(adj[dep], t.ID)
		}
	}

	queue := make([]string, 0, len(s.tasks))
	for _, t := range s.tasks {
		if inDegree[t.ID] == 0 {
			queue = append(queue, t.ID)
		}
	}

	visited := 0
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adj[curr] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if visited != len(s.tasks) {
		return apperrors.NewCycleDetectedError(
			fmt.Sprintf("task store contains a blocked_by cycle (visited %d of %d tasks)", visited, len(s.tasks)))
	}
	return nil
}

// Save performs a full rewrite of the backing JSONL file.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperrors.NewIoError("create task store directory", err)
		}
	}

	var b strings.Builder
	for _, t := range s.tasks {
		data, err := json.Marshal(t)
		if err != nil {
			return apperrors.NewIoError("marshal task", err)
		}
		b.Write(data)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(s.path, []byte(b.String()), 0o644); err != nil {
		return apperrors.NewIoError("write task store", err)
	}
	return nil
}

// Add creates a fresh Open task, persists the store, and returns it.
// The new task's BlockedBy is validated against the rest of the store
// first; a missing dependency or a blocked_by cycle is rejected and
// nothing is appended or saved.
func (s *Store) Add(title, description string, priority uint8, blockedBy []string, loopID string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := newTask(title, description, priority, blockedBy, loopID)
	s.tasks = append(s.tasks, t)
	if err := s.validateLocked(); err != nil {
		s.tasks = s.tasks[:len(s.tasks)-1]
		return Task{}, err
	}
	if err := s.saveLocked(); err != nil {
		s.tasks = s.tasks[:len(s.tasks)-1]
		return Task{}, err
	}
	return t, nil
}

// Get returns the task with the given ID.
func (s *Store) Get(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// Close moves a task to StatusClosed and stamps ClosedAt, then persists.
func (s *Store) Close(id string) (Task, error) {
	return s.terminal(id, StatusClosed)
}

// Fail moves a task to StatusFailed and stamps ClosedAt, then persists.
func (s *Store) Fail(id string) (Task, error) {
	return s.terminal(id, StatusFailed)
}

func (s *Store) terminal(id string, status Status) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks[i].Status = status
			now := time.Now().UTC()
			s.tasks[i].ClosedAt = &now
			if err := s.saveLocked(); err != nil {
				return Task{}, err
			}
			return s.tasks[i], nil
		}
	}
	return Task{}, apperrors.NewHatNotFoundError("no such task: " + id)
}

// All returns every task in the store, in insertion order.
func (s *Store) All() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Open returns every task whose status is not StatusClosed.
func (s *Store) Open() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Task
	for _, t := range s.tasks {
		if t.Status != StatusClosed {
			out = append(out, t)
		}
	}
	return out
}

// Ready returns Open tasks whose blockers are all Closed. When currentLoopID is
// non-empty, the result is further restricted to tasks whose LoopID
// matches it, mirroring the "current loop marker" restriction.
func (s *Store) Ready(currentLoopID string) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := make(map[string]Task, len(s.tasks))
	for _, t := range s.tasks {
		byID[t.ID] = t
	}

	var out []Task
	for _, t := range s.tasks {
		if t.Status != StatusOpen {
			continue
		}
		if currentLoopID != "" && t.LoopID != currentLoopID {
			continue
		}
		blocked := false
		for _, b := range t.BlockedBy {
			if blocker, ok := byID[b]; ok && blocker.Status != StatusClosed {
				blocked = true
				break
			}
		}
		if !blocked {
			out = append(out, t)
		}
	}
	return out
}

// HasOpenTasks reports whether any task remains in StatusOpen.
func (s *Store) HasOpenTasks() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.Status == StatusOpen {
			return true
		}
	}
	return false
}
