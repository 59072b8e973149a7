// Package looprun implements the Event Loop Driver: the state machine
// that owns one loop's lifetime end to end, from LoopLock acquisition
// through the Scheduler/Executor tick-and-invoke cycle to whichever
// terminal state the run ends in.
package looprun

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hatloop/hatloop/internal/backend"
	"github.com/hatloop/hatloop/internal/completion"
	"github.com/hatloop/hatloop/internal/diagnostics"
	"github.com/hatloop/hatloop/internal/event"
	"github.com/hatloop/hatloop/internal/eventlog"
	"github.com/hatloop/hatloop/internal/hats"
	"github.com/hatloop/hatloop/internal/proof"
	"github.com/hatloop/hatloop/internal/registry"
	"github.com/hatloop/hatloop/internal/scheduler"
	"github.com/hatloop/hatloop/internal/scratchpad"
	"github.com/hatloop/hatloop/internal/tasks"
	"github.com/hatloop/hatloop/internal/topic"
	"github.com/hatloop/hatloop/internal/workspace"
	apperrors "github.com/hatloop/hatloop/pkg/errors"
)

// State is one of the Driver's lifecycle states.
type State string

const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateAborted   State = "aborted"
	StateTimedOut  State = "timed_out"
)

// Executor is the subset of backend.PTYExecutor/CaptureExecutor the
// Driver depends on, so tests can substitute a fake child process.
type Executor interface {
	Execute(ctx context.Context, spec backend.Spec, prompt string, handler backend.StreamHandler, cancel *backend.CancelSignal) (*backend.ExecutionResult, error)
}

// Limits bounds one loop run, independent of the Executor's own
// idle-timeout handling.
type Limits struct {
	MaxIterations       int
	MaxRuntime          time.Duration
	MaxFailedIterations int
	ComplexityThreshold float64
}

// Config bundles everything the Driver needs to run one loop, besides
// the Scheduler/Executor it is handed at NewDriver time.
type Config struct {
	CompletionPromise string
	AppDirName        string // e.g. ".hatloop", relative to the workspace
	Limits            Limits
	AutoMerge         bool
	BackendSpec       backend.Spec
}

// Driver owns the full lifecycle of one loop: lock, registry, event log
// rotation, scheduler ticks, backend invocation, task/scratchpad
// bookkeeping, and the terminal proof artifact. It is single-threaded
// with respect to state mutation; only one goroutine ever drives Run.
type Driver struct {
	cfg       Config
	ctx       workspace.Context
	logger    *zap.Logger
	executor  Executor
	registry  *hats.Registry
	loopReg   *registry.Registry
	completer *completion.Handler
	diag      *diagnostics.Collector

	state             State
	lock              *workspace.LoopLock
	log               *eventlog.Log
	sched             *scheduler.Scheduler
	store             *tasks.Store
	composer          *scheduler.PromptComposer
	iterations        int
	consecutiveStalls int
	failedIterations  int
	startedAt         time.Time
	lastReason        string
}

// NewDriver builds a Driver for one loop run. ctx describes where the
// loop's files live (primary checkout or isolated worktree); executor is
// the already-selected backend implementation (PTY or capture).
func NewDriver(cfg Config, loopCtx workspace.Context, hatRegistry *hats.Registry, loopReg *registry.Registry, executor Executor, diag *diagnostics.Collector, logger *zap.Logger) *Driver {
	return &Driver{
		cfg:       cfg,
		ctx:       loopCtx,
		logger:    logger,
		executor:  executor,
		registry:  hatRegistry,
		loopReg:   loopReg,
		completer: completion.NewHandler(cfg.AutoMerge, logger),
		diag:      diag,
		state:     StateIdle,
	}
}

// State returns the Driver's current lifecycle state.
func (d *Driver) State() State {
	return d.state
}

// Iterations reports how many Running iterations have completed so far.
func (d *Driver) Iterations() int {
	return d.iterations
}

func (d *Driver) appDir() string {
	return filepath.Join(d.ctx.Workspace, d.cfg.AppDirName)
}

// Run drives the loop from Idle to a terminal state, returning the
// terminal state and any fatal error. A context cancellation (external
// SIGINT/SIGTERM forwarded by the caller) always ends the run Aborted.
func (d *Driver) Run(ctx context.Context, prompt string) (State, error) {
	defer d.release()
	if err := d.start(prompt); err != nil {
		_ = d.transition(StateFailed, err.Error())
		return d.state, err
	}

	for {
		select {
		case <-ctx.Done():
			_ = d.transition(StateAborted, "external cancellation")
			d.recordTerminal(prompt)
			return d.state, nil
		default:
		}

		if d.cfg.Limits.MaxIterations > 0 && d.iterations >= d.cfg.Limits.MaxIterations {
			_ = d.transition(StateTimedOut, "max_iterations exceeded")
			d.recordTerminal(prompt)
			return d.state, nil
		}
		if d.cfg.Limits.MaxRuntime > 0 && time.Since(d.startedAt) >= d.cfg.Limits.MaxRuntime {
			_ = d.transition(StateTimedOut, "max_runtime_seconds exceeded")
			d.recordTerminal(prompt)
			return d.state, nil
		}

		done, err := d.iterate(ctx)
		if err != nil {
			_ = d.transition(StateFailed, err.Error())
			d.recordTerminal(prompt)
			return d.state, err
		}
		if done {
			d.recordTerminal(prompt)
			return d.state, nil
		}
	}
}

// start performs the Idle->Starting->Running transitions: acquire the
// lock, register the loop, rotate the event log, and seed the
// scratchpad and initial task.start event.
func (d *Driver) start(prompt string) error {
	_ = d.transition(StateStarting, "")
	d.startedAt = time.Now()

	lockPath := workspace.Path(d.appDir())
	lock, err := workspace.Acquire(lockPath)
	if err != nil {
		return err
	}
	d.lock = lock

	if err := d.loopReg.Register(d.ctx.LoopID, d.ctx.Workspace, prompt); err != nil {
		return err
	}

	log, err := eventlog.RotateForNewRun(d.appDir())
	if err != nil {
		return err
	}
	d.log = log

	tasksPath := filepath.Join(d.appDir(), "tasks.jsonl")
	store, err := tasks.Load(tasksPath)
	if err != nil {
		return err
	}
	d.store = store

	scratchpadPath := filepath.Join(d.appDir(), "scratchpad.md")
	if err := scratchpad.Seed(scratchpadPath); err != nil {
		return err
	}

	startEvent := event.New(topic.New("task.start"), prompt)
	if err := d.log.Append(startEvent); err != nil {
		return err
	}

	d.sched = scheduler.New(d.log, d.registry)
	d.composer = scheduler.NewPromptComposer(scheduler.CoreConfig{
		Scratchpad:        scratchpadPath,
		SpecsDir:          "specs",
		EventsFile:        d.log.Path(),
		Guardrails:        []string{"Tests/typecheck/lint must pass before claiming done."},
		CompletionPromise: d.cfg.CompletionPromise,
	}, d.registry)

	d.recordDiag(diagnostics.KindIterationStarted, map[string]any{"phase": "starting"})
	if err := d.transition(StateRunning, ""); err != nil {
		return err
	}
	return nil
}

// iterate runs one Running->Running step of the Driver's tick-and-invoke
// cycle. It returns done=true once the iteration pushed the Driver into
// a terminal state.
func (d *Driver) iterate(ctx context.Context) (bool, error) {
	iterStart := time.Now()
	d.iterations++

	delivery, err := d.sched.Tick()
	if err != nil {
		return false, err
	}
	d.recordDiag(diagnostics.KindHatSelected, map[string]any{"hat_id": delivery.HatID, "iteration": d.iterations})

	prompt := d.sched.ComposePrompt(d.composer, delivery)
	spec := d.cfg.BackendSpec
	spec.WorkDir = d.ctx.Workspace
	if override := d.sched.BackendOverride(delivery.HatID); override != "" {
		spec.Command = override
	}

	cancel := backend.NewCancelSignal()
	result, err := d.executor.Execute(ctx, spec, prompt, backend.NoopHandler{}, cancel)
	d.recordDiag(diagnostics.KindIterationDuration, map[string]any{"duration_ms": time.Since(iterStart).Milliseconds()})

	if err != nil {
		d.failedIterations++
		if apperrors.Is(err, apperrors.CodeCliExecution) && d.failedIterations > d.cfg.Limits.MaxFailedIterations {
			_ = d.transition(StateFailed, "max_failed_iterations exceeded: "+err.Error())
			return true, nil
		}
		return false, nil
	}

	if result.Termination == backend.TerminationIdleTimeout {
		d.consecutiveStalls++
		d.recordDiag(diagnostics.KindBackpressureTriggered, map[string]any{"reason": "stall"})
		if d.consecutiveStalls >= 2 {
			_ = d.transition(StateFailed, "Stalled")
			return true, nil
		}
		return false, nil
	}
	d.consecutiveStalls = 0

	for _, ev := range event.ExtractEmbedded(result.ExtractedText) {
		if err := d.log.Append(ev); err != nil {
			return false, err
		}
		d.recordDiag(diagnostics.KindEventPublished, map[string]any{"topic": ev.Topic.String()})
		d.applyTaskEvent(ev)

		if ev.Topic.MatchesString("backpressure") {
			evidence := ParseEvidence(ev.Payload, d.cfg.Limits.ComplexityThreshold)
			if !evidence.AllPassed() {
				d.recordDiag(diagnostics.KindBackpressureTriggered, map[string]any{"failing": strings.Join(evidence.FailingGates(), ",")})
				return false, nil
			}
		}
	}

	hasPromise := strings.Contains(result.ExtractedText, d.cfg.CompletionPromise)
	hasBackpressureFailure := containsFailingBackpressure(result.ExtractedText, d.cfg.Limits.ComplexityThreshold)

	switch {
	case hasBackpressureFailure:
		return false, nil
	case hasPromise:
		_ = d.transition(StateCompleted, "completion promise observed")
		return true, nil
	default:
		return false, nil
	}
}

// containsFailingBackpressure re-scans raw agent text for embedded
// backpressure events, since a promise and a backpressure report can
// appear in the same iteration's output; backpressure wins the race.
func containsFailingBackpressure(text string, complexityThreshold float64) bool {
	for _, ev := range event.ExtractEmbedded(text) {
		if !ev.Topic.MatchesString("backpressure") {
			continue
		}
		if !ParseEvidence(ev.Payload, complexityThreshold).AllPassed() {
			return true
		}
	}
	return false
}

// applyTaskEvent folds a parsed event into the Task Store when its
// topic names a task lifecycle transition the store understands.
func (d *Driver) applyTaskEvent(ev event.Event) {
	switch {
	case ev.Topic.MatchesString("task.closed"):
		if _, err := d.store.Close(ev.Payload); err != nil {
			d.recordDiag(diagnostics.KindTaskAbandoned, map[string]any{"task_id": ev.Payload, "error": err.Error()})
		}
	case ev.Topic.MatchesString("task.failed"):
		if _, err := d.store.Fail(ev.Payload); err != nil {
			d.recordDiag(diagnostics.KindTaskAbandoned, map[string]any{"task_id": ev.Payload, "error": err.Error()})
		}
	}
	_ = d.store.Save()
}

// recordTerminal marks the registry and writes the proof artifact once
// the Driver has landed in a terminal state.
func (d *Driver) recordTerminal(prompt string) {
	d.recordDiag(diagnostics.KindLoopTerminated, map[string]any{"state": string(d.state), "reason": d.lastReason})

	status := registry.StatusFailed
	switch d.state {
	case StateCompleted:
		status = registry.StatusCompleted
	case StateAborted:
		status = registry.StatusAborted
	case StateTimedOut:
		status = registry.StatusTimedOut
	}
	if err := d.loopReg.MarkStatus(d.ctx.LoopID, status); err != nil {
		d.logger.Error("failed to mark terminal status in loop registry", zap.Error(err))
	}

	exitCode := 1
	if d.state == StateCompleted {
		exitCode = 0
	}
	artifact := proof.Artifact{
		Iterations:   d.iterations,
		DurationSecs: time.Since(d.startedAt).Seconds(),
		ExitCode:     exitCode,
	}
	if err := proof.Write(d.appDir(), d.ctx.LoopID, artifact); err != nil {
		d.logger.Error("failed to write proof artifact", zap.Error(err))
	}

	if d.state == StateCompleted {
		if _, err := d.completer.HandleCompletion(d.ctx, prompt); err != nil {
			d.logger.Error("completion handler failed", zap.Error(err))
		}
	}
}

func (d *Driver) recordDiag(kind diagnostics.Kind, fields map[string]any) {
	if d.diag == nil {
		return
	}
	if err := d.diag.Record(kind, d.ctx.LoopID, fields); err != nil {
		d.logger.Warn("diagnostics write failed", zap.Error(err))
	}
}

// release unwinds Starting/Running resources regardless of how the run
// ended: close the event log and release the advisory lock.
func (d *Driver) release() {
	if d.log != nil {
		if err := d.log.Close(); err != nil {
			d.logger.Warn("failed to close event log", zap.Error(err))
		}
	}
	if d.lock != nil {
		if err := d.lock.Release(); err != nil {
			d.logger.Warn("failed to release loop lock", zap.Error(err))
		}
	}
}
