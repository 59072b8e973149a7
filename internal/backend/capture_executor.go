package backend

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/hatloop/hatloop/pkg/errors"
	"github.com/hatloop/hatloop/pkg/safego"
)

// CaptureExecutor runs a backend as a plain piped subprocess, with no
// terminal emulation. Semantics otherwise match PTYExecutor.
type CaptureExecutor struct {
	logger *zap.Logger
}

// NewCaptureExecutor builds a CaptureExecutor that logs through logger.
func NewCaptureExecutor(logger *zap.Logger) *CaptureExecutor {
	return &CaptureExecutor{logger: logger}
}

// ExecuteCapture runs spec.Command with stdout/stderr piped, equivalent
// to PTYExecutor.Execute but without a pseudo-terminal.
func (e *CaptureExecutor) ExecuteCapture(ctx context.Context, spec Spec, prompt string, handler StreamHandler, cancel *CancelSignal) (*ExecutionResult, error) {
	if handler == nil {
		handler = NoopHandler{}
	}
	if cancel == nil {
		cancel = NewCancelSignal()
	}

	prepared, err := preparePrompt(spec, prompt)
	if err != nil {
		return nil, err
	}
	defer prepared.Cleanup()

	workDir, err := resolveWorkDir(spec.WorkDir)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, spec.Command, prepared.Args...)
	cmd.Dir = workDir

	// stdout and stderr are merged onto one pipe so a single scanner
	// goroutine sees everything in arrival order, matching the PTY
	// executor's single-stream view of the child.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, apperrors.NewIoError("create output pipe", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw
	if prepared.Stdin != "" {
		cmd.Stdin = strings.NewReader(prepared.Stdin)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		return nil, apperrors.NewCliExecutionError("start backend process", err)
	}
	pw.Close() // writer is held open by the child now; parent only reads

	lines := make(chan string)
	safego.Go(e.logger, "capture-reader", func() {
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		pr.Close()
		close(lines)
	})

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	var (
		stdoutBuf    strings.Builder
		extractedBuf strings.Builder
		parsedEvents []ParsedEvent
	)

	var idleTimer *time.Timer
	if spec.IdleTimeout > 0 {
		idleTimer = time.NewTimer(spec.IdleTimeout)
		defer idleTimer.Stop()
	}
	resetIdle := func() {
		if idleTimer == nil {
			return
		}
		if !idleTimer.Stop() {
			select {
			case <-idleTimer.C:
			default:
			}
		}
		idleTimer.Reset(spec.IdleTimeout)
	}

	var killOnce sync.Once
	grace := spec.GraceTimeout
	if grace <= 0 {
		grace = 5 * time.Second
	}
	killChild := func() {
		killOnce.Do(func() {
			if cmd.Process != nil {
				_ = cmd.Process.Signal(syscall.SIGTERM)
			}
			go func() {
				select {
				case <-waitCh:
				case <-time.After(grace):
					if cmd.Process != nil {
						_ = cmd.Process.Kill()
					}
				}
			}()
		})
	}

	termination := TerminationNatural
	var waitErr error

drainLoop:
	for {
		var idleCh <-chan time.Time
		if idleTimer != nil {
			idleCh = idleTimer.C
		}
		select {
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			resetIdle()
			appendLine(spec, line, handler, &stdoutBuf, &extractedBuf, &parsedEvents)

		case waitErr = <-waitCh:
			break drainLoop

		case <-idleCh:
			termination = TerminationIdleTimeout
			killChild()
			waitErr = <-waitCh
			break drainLoop

		case <-cancel.Done():
			termination = TerminationCancelled
			killChild()
			waitErr = <-waitCh
			break drainLoop
		}
	}

	result := &ExecutionResult{
		StdoutText:    stdoutBuf.String(),
		ExtractedText: extractedBuf.String(),
		ParsedEvents:  parsedEvents,
		Duration:      time.Since(start),
		Termination:   termination,
	}

	if exitCode, ok := exitCodeOf(waitErr); ok {
		result.ExitCode = &exitCode
	} else if waitErr != nil && waitErr != io.EOF {
		return result, apperrors.NewCliExecutionError("backend process error", waitErr)
	}

	return result, nil
}
