package looprun

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hatloop/hatloop/internal/backend"
	"github.com/hatloop/hatloop/internal/hats"
	"github.com/hatloop/hatloop/internal/registry"
	"github.com/hatloop/hatloop/internal/workspace"
)

// scriptedExecutor returns one canned ExecutionResult per call, in
// order, so a test can script exactly how an agent invocation "behaves"
// without spawning a real child process.
type scriptedExecutor struct {
	results []*backend.ExecutionResult
	calls   int
}

func (s *scriptedExecutor) Execute(ctx context.Context, spec backend.Spec, prompt string, handler backend.StreamHandler, cancel *backend.CancelSignal) (*backend.ExecutionResult, error) {
	if s.calls >= len(s.results) {
		return &backend.ExecutionResult{Termination: backend.TerminationNatural}, nil
	}
	r := s.results[s.calls]
	s.calls++
	return r, nil
}

func newTestDriver(t *testing.T, exec Executor) (*Driver, workspace.Context) {
	t.Helper()
	repoRoot := t.TempDir()
	loopCtx := workspace.Primary(repoRoot)

	hatRegistry := hats.NewRegistry(nil)
	loopReg, err := registry.Open(repoRoot + "/.hatloop/registry.jsonl")
	if err != nil {
		t.Fatalf("registry.Open: %v", err)
	}

	cfg := Config{
		CompletionPromise: "LOOP_COMPLETE",
		AppDirName:        ".hatloop",
		Limits: Limits{
			MaxIterations:       10,
			MaxRuntime:          time.Hour,
			MaxFailedIterations: 3,
			ComplexityThreshold: 10,
		},
		AutoMerge:   true,
		BackendSpec: backend.Spec{Command: "fake-agent", OutputFormat: backend.OutputFormatText},
	}

	d := NewDriver(cfg, loopCtx, hatRegistry, loopReg, exec, nil, zap.NewNop())
	return d, loopCtx
}

func exitZero() *int {
	n := 0
	return &n
}

func TestRunCompletesOnPromise(t *testing.T) {
	exec := &scriptedExecutor{results: []*backend.ExecutionResult{
		{ExitCode: exitZero(), ExtractedText: "working on it...\nLOOP_COMPLETE\n", Termination: backend.TerminationNatural},
	}}
	d, _ := newTestDriver(t, exec)

	state, err := d.Run(context.Background(), "do the thing")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state != StateCompleted {
		t.Fatalf("expected StateCompleted, got %s (reason: %s)", state, d.lastReason)
	}
	if d.Iterations() != 1 {
		t.Fatalf("expected 1 iteration, got %d", d.Iterations())
	}
}

func TestRunFailsAfterTwoConsecutiveStalls(t *testing.T) {
	exec := &scriptedExecutor{results: []*backend.ExecutionResult{
		{ExitCode: exitZero(), Termination: backend.TerminationIdleTimeout},
		{ExitCode: exitZero(), Termination: backend.TerminationIdleTimeout},
	}}
	d, _ := newTestDriver(t, exec)

	state, err := d.Run(context.Background(), "do the thing")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state != StateFailed {
		t.Fatalf("expected StateFailed, got %s", state)
	}
	if d.lastReason != "Stalled" {
		t.Fatalf("expected Stalled reason, got %q", d.lastReason)
	}
}

func TestRunBackpressureFailureBeatsPromiseInSameOutput(t *testing.T) {
	payload := "tests: fail\nlint: pass\ntypecheck: pass\naudit: pass\ncoverage: pass\nduplication: pass\nperformance: pass\ncomplexity: pass"
	text := fmt.Sprintf(`<event topic="backpressure">%s</event>`+"\nLOOP_COMPLETE\n", payload)

	exec := &scriptedExecutor{results: []*backend.ExecutionResult{
		{ExitCode: exitZero(), ExtractedText: text, Termination: backend.TerminationNatural},
		{ExitCode: exitZero(), ExtractedText: "LOOP_COMPLETE\n", Termination: backend.TerminationNatural},
	}}
	d, _ := newTestDriver(t, exec)

	state, err := d.Run(context.Background(), "do the thing")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state != StateCompleted {
		t.Fatalf("expected eventual StateCompleted, got %s", state)
	}
	if d.Iterations() != 2 {
		t.Fatalf("expected the first iteration's backpressure failure to force a second, got %d iterations", d.Iterations())
	}
}

func TestRunRespectsMaxIterations(t *testing.T) {
	d, _ := newTestDriver(t, &scriptedExecutor{})
	d.cfg.Limits.MaxIterations = 2

	state, err := d.Run(context.Background(), "never finishes")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state != StateTimedOut {
		t.Fatalf("expected StateTimedOut, got %s", state)
	}
}

func TestRunAbortsOnExternalCancellation(t *testing.T) {
	d, _ := newTestDriver(t, &scriptedExecutor{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state, err := d.Run(ctx, "irrelevant")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state != StateAborted {
		t.Fatalf("expected StateAborted, got %s", state)
	}
}
