// Package backend executes a configured CLI agent backend to completion,
// either through a pseudo-terminal (the default, for interactive coding
// CLIs) or as a plain piped subprocess, and parses its output into
// structured events for the Scheduler and Driver.
package backend

import (
	"encoding/json"
	"time"
)

// PromptMode describes how the prompt text reaches the child process.
type PromptMode string

const (
	PromptModeArg        PromptMode = "arg"         // appended as a CLI argument
	PromptModeStdin      PromptMode = "stdin"        // written to stdin, then EOF
	PromptModeFlaggedArg PromptMode = "flagged_arg"  // preceded by PromptFlag
	PromptModeTempFile   PromptMode = "temp_file"    // written to a workspace-local temp file, path becomes an arg
)

// OutputFormat describes how to interpret the child's stdout.
type OutputFormat string

const (
	OutputFormatText       OutputFormat = "text"
	OutputFormatStreamJSON OutputFormat = "stream_json"
)

// Termination describes why a backend invocation ended.
type Termination string

const (
	TerminationNatural     Termination = "natural"
	TerminationIdleTimeout Termination = "idle_timeout"
	TerminationHardTimeout Termination = "hard_timeout"
	TerminationCancelled   Termination = "cancelled"
)

// Spec is the static configuration of one backend invocation; it is
// resolved from the global backend config plus any per-hat override.
type Spec struct {
	Command      string
	Args         []string
	PromptMode   PromptMode
	PromptFlag   string // only meaningful under PromptModeFlaggedArg
	OutputFormat OutputFormat
	WorkDir      string

	Cols, Rows int // PTY geometry; ignored by the non-PTY executor

	IdleTimeout time.Duration // zero disables the idle-timeout check
	GraceTimeout time.Duration // SIGTERM→SIGKILL grace window on cancellation
}

// ParsedKind tags the variant of a ParsedEvent, mirroring the
// UxEvent|ToolCall|ToolResult|Error|Complete union from the design spec.
type ParsedKind string

const (
	ParsedKindUxEvent    ParsedKind = "ux_event"
	ParsedKindToolCall   ParsedKind = "tool_call"
	ParsedKindToolResult ParsedKind = "tool_result"
	ParsedKindError      ParsedKind = "error"
	ParsedKindComplete   ParsedKind = "complete"
)

// ParsedEvent is one structured item recovered from the child's output
// stream, whether raw text or a stream-json frame.
type ParsedEvent struct {
	Kind ParsedKind

	Text string // ParsedKindUxEvent

	ToolName  string          // ParsedKindToolCall
	ToolID    string          // ParsedKindToolCall, ParsedKindToolResult
	ToolInput json.RawMessage // ParsedKindToolCall

	ToolContent string // ParsedKindToolResult

	ErrorText string // ParsedKindError

	Complete *CompleteInfo // ParsedKindComplete
}

// CompleteInfo carries the fields of a stream-json "result" frame.
type CompleteInfo struct {
	IsError      bool
	DurationMs   int64
	TotalCostUSD float64
	NumTurns     int
}

// ExecutionResult is what an Executor returns once the child has
// terminated, one way or another.
type ExecutionResult struct {
	ExitCode      *int // nil if the process never produced an exit code (e.g. Cancelled before start)
	StdoutText    string
	ExtractedText string
	ParsedEvents  []ParsedEvent
	Duration      time.Duration
	Termination   Termination
	Cost          *float64
}

// Success reports whether the child exited cleanly.
func (r *ExecutionResult) Success() bool {
	return r.ExitCode != nil && *r.ExitCode == 0
}

// StreamHandler receives callbacks as an Executor parses output, whether
// line-oriented text or stream-json frames.
type StreamHandler interface {
	OnText(line string)
	OnToolCall(name, id string, input json.RawMessage)
	OnToolResult(id, content string)
	OnComplete(info CompleteInfo)
	OnError(text string)
}

// NoopHandler implements StreamHandler by discarding everything; useful
// for callers that only want the aggregated ExecutionResult.
type NoopHandler struct{}

func (NoopHandler) OnText(string)                             {}
func (NoopHandler) OnToolCall(string, string, json.RawMessage) {}
func (NoopHandler) OnToolResult(string, string)                {}
func (NoopHandler) OnComplete(CompleteInfo)                    {}
func (NoopHandler) OnError(string)                             {}
