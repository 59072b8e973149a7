// Package diagnostics implements the sideband JSONL diagnostics stream.
// Nothing written here ever affects a loop's outcome; it exists purely
// for post-hoc inspection and the read-only dashboard.
package diagnostics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	apperrors "github.com/hatloop/hatloop/pkg/errors"
)

// Kind tags the category of a diagnostics record.
type Kind string

const (
	KindIterationStarted     Kind = "iteration_started"
	KindHatSelected          Kind = "hat_selected"
	KindEventPublished       Kind = "event_published"
	KindBackpressureTriggered Kind = "backpressure_triggered"
	KindLoopTerminated       Kind = "loop_terminated"
	KindTaskAbandoned        Kind = "task_abandoned"
	KindIterationDuration    Kind = "iteration_duration"
	KindAgentLatency         Kind = "agent_latency"
	KindTokenCount           Kind = "token_count"
	KindError                Kind = "error"
)

// Record is one line of the diagnostics log.
type Record struct {
	Kind   Kind                   `json:"kind"`
	Ts     time.Time              `json:"ts"`
	LoopID string                 `json:"loop_id,omitempty"`
	Fields map[string]any         `json:"fields,omitempty"`
}

// Collector appends Records to a per-loop JSONL file. It is safe for
// concurrent use; diagnostics can be written from the Driver's main
// goroutine as well as background watchers.
type Collector struct {
	mu   sync.Mutex
	file *os.File
}

// Open creates (or appends to) the diagnostics file for loopID under
// appDir/diagnostics/<loop-id>.jsonl.
func Open(appDir, loopID string) (*Collector, error) {
	dir := filepath.Join(appDir, "diagnostics")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.NewIoError("create diagnostics directory", err)
	}
	path := filepath.Join(dir, loopID+".jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, apperrors.NewIoError("open diagnostics file", err)
	}
	return &Collector{file: f}, nil
}

// Close releases the underlying file handle.
func (c *Collector) Close() error {
	return c.file.Close()
}

// Record appends one diagnostics record. A write failure is logged by
// the caller but must never abort the loop; Record returns the error so
// callers can decide, per the design's "diagnostics never affect the
// loop outcome" rule.
func (c *Collector) Record(kind Kind, loopID string, fields map[string]any) error {
	rec := Record{Kind: kind, Ts: time.Now().UTC(), LoopID: loopID, Fields: fields}
	data, err := json.Marshal(rec)
	if err != nil {
		return apperrors.NewIoError("marshal diagnostics record", err)
	}
	data = append(data, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.file.Write(data); err != nil {
		return apperrors.NewIoError("append diagnostics record", err)
	}
	return nil
}

// Tail reads every record currently on disk, in append order. Used by
// the CLI and the dashboard's tail endpoint.
func Tail(appDir, loopID string) ([]Record, error) {
	path := filepath.Join(appDir, "diagnostics", loopID+".jsonl")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.NewIoError("read diagnostics file", err)
	}

	var records []Record
	for _, line := range splitLines(data) {
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
