package preflight

import (
	"testing"

	"go.uber.org/zap"

	"github.com/hatloop/hatloop/internal/config"
)

func testConfig() *config.Config {
	var cfg config.Config
	cfg.Loop.AppDir = ".hatloop"
	cfg.Backend.Command = "true"
	cfg.Database.DSN = ".hatloop/index.db"
	return &cfg
}

func TestRunAllChecksPassOnCleanWorkspace(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()

	result := Run(cfg, dir, nil, zap.NewNop())
	if !result.Passed {
		t.Fatalf("expected all checks to pass, got %+v", result.Checks)
	}
	if result.Failures != 0 {
		t.Fatalf("expected zero failures, got %d", result.Failures)
	}
}

func TestRunFlagsMissingBackendBinary(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.Backend.Command = "definitely-not-a-real-binary-xyz"

	result := Run(cfg, dir, []string{"backend-binary"}, zap.NewNop())
	if result.Passed {
		t.Fatalf("expected backend-binary check to fail for a missing command")
	}
	if len(result.Checks) != 1 || result.Checks[0].Status != StatusFail {
		t.Fatalf("unexpected checks: %+v", result.Checks)
	}
}

func TestRunWarnsOnBackendOutsideAllowList(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.Backend.Command = "ls" // resolves on PATH but isn't in AllowedBackends

	result := Run(cfg, dir, []string{"backend-binary"}, zap.NewNop())
	if !result.Passed {
		t.Fatalf("a warn-level check should not fail the overall result")
	}
	if result.Warnings != 1 {
		t.Fatalf("expected one warning, got %d", result.Warnings)
	}
}

func TestRunFlagsDuplicateHatIDs(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.Hats = []config.HatConfig{{ID: "reviewer"}, {ID: "reviewer"}}

	result := Run(cfg, dir, []string{"hats-config"}, zap.NewNop())
	if result.Passed {
		t.Fatalf("expected duplicate hat ids to fail the hats-config check")
	}
}

func TestNamesReturnsEveryRegisteredCheck(t *testing.T) {
	names := Names()
	if len(names) != 5 {
		t.Fatalf("expected 5 registered checks, got %d: %v", len(names), names)
	}
}
