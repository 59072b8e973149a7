// Package eventlog implements the append-only JSONL event log and the
// marker-file indirection that lets the running loop and concurrent
// "emit"-style commands agree on which file is current.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hatloop/hatloop/internal/event"
	apperrors "github.com/hatloop/hatloop/pkg/errors"
)

const (
	markerFileName  = "current-events"
	fallbackLogName = "events.jsonl"
)

// Log is the current event log for one loop workspace. It is safe for
// concurrent use by the scheduler goroutine and an `emit` command writer.
type Log struct {
	dir    string // workspace-local ".hatloop" directory
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *bufio.Writer
}

// Open resolves the current log for dir (a workspace's ".hatloop"
// directory), following the marker file if one exists and falling back to
// the conventional events.jsonl name otherwise. It does not create a new
// log; use RotateForNewRun for that.
func Open(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.NewIoError("create event log directory", err)
	}
	path, err := currentLogPath(dir)
	if err != nil {
		return nil, err
	}
	return openAt(dir, path)
}

// RotateForNewRun creates a fresh timestamped log file and points the
// marker at it. A loop in "continue" mode should call Open instead so it
// reuses whatever marker is already on disk.
func RotateForNewRun(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.NewIoError("create event log directory", err)
	}
	name := fmt.Sprintf("events-%s.jsonl", time.Now().UTC().Format("20060102-150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(filepath.Join(dir, markerFileName), []byte(name), 0o644); err != nil {
		return nil, apperrors.NewIoError("write current-events marker", err)
	}
	return openAt(dir, path)
}

func currentLogPath(dir string) (string, error) {
	markerPath := filepath.Join(dir, markerFileName)
	data, err := os.ReadFile(markerPath)
	if err != nil {
		if os.IsNotExist(err) {
			return filepath.Join(dir, fallbackLogName), nil
		}
		return "", apperrors.NewIoError("read current-events marker", err)
	}
	name := string(data)
	if name == "" {
		return filepath.Join(dir, fallbackLogName), nil
	}
	return filepath.Join(dir, name), nil
}

func openAt(dir, path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, apperrors.NewIoError("open event log", err)
	}
	return &Log{
		dir:    dir,
		path:   path,
		file:   f,
		writer: bufio.NewWriterSize(f, 32*1024),
	}, nil
}

// Path returns the on-disk path of the current log file.
func (l *Log) Path() string {
	return l.path
}

// Close flushes and releases the underlying file handle.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writer.Flush(); err != nil {
		return apperrors.NewIoError("flush event log", err)
	}
	return l.file.Close()
}

// Append atomically writes ev as one JSON line to the current log.
func (l *Log) Append(ev event.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return apperrors.NewEventParseError("marshal event", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(data); err != nil {
		return apperrors.NewIoError("append event", err)
	}
	return nil
}

// TailSince returns every well-formed event after line offset, plus the
// new offset to pass on the next call. A malformed line is skipped and
// does not interrupt the scan; the log itself is never rewritten.
func (l *Log) TailSince(offset int) ([]event.Event, int, error) {
	l.mu.Lock()
	if err := l.writer.Flush(); err != nil {
		l.mu.Unlock()
		return nil, offset, apperrors.NewIoError("flush event log", err)
	}
	l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		return nil, offset, apperrors.NewIoError("reopen event log for read", err)
	}
	defer f.Close()

	var events []event.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if line <= offset {
			continue
		}
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		var ev event.Event
		if err := json.Unmarshal(text, &ev); err != nil {
			continue // MalformedEvent: logged upstream by the caller, line is skipped
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return events, line, apperrors.NewIoError("scan event log", err)
	}
	return events, line, nil
}
