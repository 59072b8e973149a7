package backend

import (
	"context"

	"go.uber.org/zap"
)

// UsePTY is carried alongside a Spec by callers that need to pick an
// executor; it isn't part of Spec itself since PTY-vs-capture is a
// process-wide backend setting, not something a hat overrides per call.
type UsePTY bool

// SelectingExecutor wraps both concrete executors behind the single
// Execute signature the Driver depends on, choosing PTYExecutor or
// CaptureExecutor per call based on usePTY.
type SelectingExecutor struct {
	pty     *PTYExecutor
	capture *CaptureExecutor
	usePTY  bool
}

// NewSelectingExecutor builds a SelectingExecutor that always dispatches
// to the PTY-backed executor when usePTY is true, and the plain piped
// CaptureExecutor otherwise.
func NewSelectingExecutor(usePTY bool, logger *zap.Logger) *SelectingExecutor {
	return &SelectingExecutor{
		pty:     NewPTYExecutor(logger),
		capture: NewCaptureExecutor(logger),
		usePTY:  usePTY,
	}
}

// Execute dispatches to the configured executor.
func (s *SelectingExecutor) Execute(ctx context.Context, spec Spec, prompt string, handler StreamHandler, cancel *CancelSignal) (*ExecutionResult, error) {
	if s.usePTY {
		return s.pty.Execute(ctx, spec, prompt, handler, cancel)
	}
	return s.capture.ExecuteCapture(ctx, spec, prompt, handler, cancel)
}
