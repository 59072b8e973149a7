// Package preflight implements the `hatloop preflight` checks: a set of
// fast, side-effect-free probes over the resolved config and workspace
// that catch the ways a `run` invocation would fail before any backend
// process is ever spawned.
//
// It is grounded on the teacher's process sandbox: where that sandbox
// validated a command against an allow-list before executing it, a
// check here fails when the *configured* backend command does not
// resolve on PATH, and only warns when it resolves but sits outside the
// default allow-list, without ever executing it.
package preflight

import (
	"os"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hatloop/hatloop/internal/config"
	"github.com/hatloop/hatloop/internal/workspace"
)

// Status is the outcome of one Check.
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Check is one named probe and its outcome.
type Check struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Result aggregates every check run for one invocation.
type Result struct {
	Passed   bool    `json:"passed"`
	Failures int     `json:"failures"`
	Warnings int     `json:"warnings"`
	Checks   []Check `json:"checks"`
}

// AllowedBackends is the default set of CLI coding-agent backends
// hatloop trusts out of the box; a config-configured command outside
// this list only warns, it never fails outright, since operators
// routinely point hatloop at a local wrapper script.
var AllowedBackends = []string{
	"claude", "codex", "gemini", "aider", "cursor-agent", "true", "bash", "sh",
}

// checkFunc runs one probe against the resolved config and workspace root.
type checkFunc func(cfg *config.Config, repoRoot string) Check

var registry = map[string]checkFunc{
	"backend-binary":   checkBackendBinary,
	"workspace-lock":   checkWorkspaceLock,
	"app-dir-writable": checkAppDirWritable,
	"hats-config":      checkHatsConfig,
	"database-path":    checkDatabasePath,
}

// Names returns every registered check name, for `--check` completion
// and for running the full suite when no filter is given.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// Run executes every check in names (or the full registry if names is
// empty) against cfg and repoRoot, in registration order.
func Run(cfg *config.Config, repoRoot string, names []string, logger *zap.Logger) Result {
	if len(names) == 0 {
		names = Names()
	}

	var result Result
	result.Passed = true
	for _, order := range orderedNames(names) {
		fn, ok := registry[order]
		if !ok {
			continue
		}
		check := fn(cfg, repoRoot)
		result.Checks = append(result.Checks, check)
		switch check.Status {
		case StatusFail:
			result.Failures++
			result.Passed = false
		case StatusWarn:
			result.Warnings++
		}
		logger.Debug("preflight check", zap.String("name", check.Name), zap.String("status", string(check.Status)))
	}
	return result
}

// orderedNames walks the canonical registration order, filtered to the
// requested subset, so output is stable regardless of map iteration.
func orderedNames(requested []string) []string {
	canonical := []string{"backend-binary", "workspace-lock", "app-dir-writable", "hats-config", "database-path"}
	want := make(map[string]bool, len(requested))
	for _, n := range requested {
		want[n] = true
	}
	var out []string
	for _, n := range canonical {
		if want[n] {
			out = append(out, n)
		}
	}
	return out
}

func checkBackendBinary(cfg *config.Config, _ string) Check {
	c := Check{Name: "backend-binary", Label: "backend binary resolves"}

	if _, err := exec.LookPath(cfg.Backend.Command); err != nil {
		c.Status = StatusFail
		c.Message = "backend command not found on PATH: " + cfg.Backend.Command
		return c
	}

	allowed := false
	for _, a := range AllowedBackends {
		if a == cfg.Backend.Command {
			allowed = true
			break
		}
	}
	if !allowed {
		c.Status = StatusWarn
		c.Message = "backend command is not in the default allow-list: " + cfg.Backend.Command
		return c
	}

	c.Status = StatusPass
	return c
}

func checkWorkspaceLock(cfg *config.Config, repoRoot string) Check {
	c := Check{Name: "workspace-lock", Label: "loop lock available"}

	appDir := filepath.Join(repoRoot, cfg.Loop.AppDir)
	state, err := workspace.Inspect(workspace.Path(appDir))
	if err != nil {
		c.Status = StatusFail
		c.Message = err.Error()
		return c
	}
	if state == workspace.LockActive {
		c.Status = StatusFail
		c.Message = "a loop is already running against this workspace"
		return c
	}

	c.Status = StatusPass
	return c
}

func checkAppDirWritable(cfg *config.Config, repoRoot string) Check {
	c := Check{Name: "app-dir-writable", Label: "app directory is writable"}

	appDir := filepath.Join(repoRoot, cfg.Loop.AppDir)
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		c.Status = StatusFail
		c.Message = err.Error()
		return c
	}
	probe := filepath.Join(appDir, ".preflight-write-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		c.Status = StatusFail
		c.Message = err.Error()
		return c
	}
	_ = os.Remove(probe)

	c.Status = StatusPass
	return c
}

func checkHatsConfig(cfg *config.Config, _ string) Check {
	c := Check{Name: "hats-config", Label: "hats configuration is well-formed"}

	seen := make(map[string]bool, len(cfg.Hats))
	for _, h := range cfg.Hats {
		if h.ID == "" {
			c.Status = StatusFail
			c.Message = "a configured hat is missing its id"
			return c
		}
		if seen[h.ID] {
			c.Status = StatusFail
			c.Message = "duplicate hat id: " + h.ID
			return c
		}
		seen[h.ID] = true
	}

	c.Status = StatusPass
	return c
}

func checkDatabasePath(cfg *config.Config, repoRoot string) Check {
	c := Check{Name: "database-path", Label: "registry index directory is writable"}

	dsn := cfg.Database.DSN
	if !filepath.IsAbs(dsn) {
		dsn = filepath.Join(repoRoot, dsn)
	}
	if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
		c.Status = StatusFail
		c.Message = err.Error()
		return c
	}

	c.Status = StatusPass
	return c
}
