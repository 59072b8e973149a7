package backend

import (
	"bufio"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"go.uber.org/zap"

	apperrors "github.com/hatloop/hatloop/pkg/errors"
	"github.com/hatloop/hatloop/pkg/safego"
)

// PTYExecutor runs a backend attached to a pseudo-terminal. Agents that
// detect an interactive terminal tend to behave better under it (line
// buffering, no "not a tty" fallbacks), which is why it's the default
// for interactive coding CLIs.
type PTYExecutor struct {
	logger *zap.Logger
}

// NewPTYExecutor builds a PTYExecutor that logs through logger.
func NewPTYExecutor(logger *zap.Logger) *PTYExecutor {
	return &PTYExecutor{logger: logger}
}

// Execute allocates a cols×rows PTY, runs the backend attached to its
// slave, and streams the master's output to handler until the child
// exits, the idle timeout fires, or cancel is set.
func (e *PTYExecutor) Execute(ctx context.Context, spec Spec, prompt string, handler StreamHandler, cancel *CancelSignal) (*ExecutionResult, error) {
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

	// Stdin stays a plain pipe (or nil) so the child gets a proper EOF;
	// only stdout/stderr are attached to the PTY slave.
	ptmx, pts, err := pty.Open()
	if err != nil {
		return nil, apperrors.NewCliExecutionError("open pty", err)
	}
	defer ptmx.Close()

	if spec.Cols > 0 && spec.Rows > 0 {
		_ = pty.Setsize(ptmx, &pty.Winsize{Rows: uint16(spec.Rows), Cols: uint16(spec.Cols)})
	}

	cmd.Stdout = pts
	cmd.Stderr = pts
	if prepared.Stdin != "" {
		cmd.Stdin = strings.NewReader(prepared.Stdin)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		pts.Close()
		return nil, apperrors.NewCliExecutionError("start backend process", err)
	}
	pts.Close() // slave is inherited by the child; parent only needs the master

	lines := make(chan string)
	safego.Go(e.logger, "pty-reader", func() {
		scanner := bufio.NewScanner(ptmx)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
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
	linesOpen := true

drainLoop:
	for {
		var idleCh <-chan time.Time
		if idleTimer != nil {
			idleCh = idleTimer.C
		}
		select {
		case line, ok := <-lines:
			if !ok {
				linesOpen = false
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
	_ = linesOpen

	result := &ExecutionResult{
		StdoutText:    stdoutBuf.String(),
		ExtractedText: extractedBuf.String(),
		ParsedEvents:  parsedEvents,
		Duration:      time.Since(start),
		Termination:   termination,
	}

	if exitCode, ok := exitCodeOf(waitErr); ok {
		result.ExitCode = &exitCode
	} else if waitErr != nil && !isExpectedTermination(waitErr) {
		return result, apperrors.NewCliExecutionError("backend process error", waitErr)
	}

	return result, nil
}

// appendLine dispatches one line of PTY output per spec.OutputFormat.
func appendLine(spec Spec, line string, handler StreamHandler, stdoutBuf, extractedBuf *strings.Builder, parsedEvents *[]ParsedEvent) {
	stdoutBuf.WriteString(line)
	stdoutBuf.WriteByte('\n')

	if spec.OutputFormat == OutputFormatStreamJSON {
		events := parseStreamJSONLine(line, handler)
		*parsedEvents = append(*parsedEvents, events...)
		for _, ev := range events {
			if ev.Kind == ParsedKindUxEvent {
				extractedBuf.WriteString(ev.Text)
				extractedBuf.WriteByte('\n')
			}
		}
		return
	}

	handler.OnText(line)
	extractedBuf.WriteString(line)
	extractedBuf.WriteByte('\n')
}

func exitCodeOf(err error) (int, bool) {
	if err == nil {
		return 0, true
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), true
	}
	return 0, false
}

// isExpectedTermination reports whether err is the PTY-read EIO that
// always accompanies a clean exit once the slave closes, or a signal we
// ourselves sent to end the process.
func isExpectedTermination(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, syscall.EIO) {
		return true
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return true
	}
	return false
}
