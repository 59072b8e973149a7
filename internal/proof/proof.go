// Package proof implements the ProofArtifact the Driver writes at every
// terminal transition, summarizing one loop run for external consumption
// (CI gates, the reporter, the dashboard).
package proof

import (
	"encoding/json"
	"os"
	"path/filepath"

	apperrors "github.com/hatloop/hatloop/pkg/errors"
)

// Artifact is the JSON shape recorded to
// .hatloop/proofs/<loop-id>.json at Completed/Failed/Aborted/TimedOut.
type Artifact struct {
	SpecFile       string  `json:"spec_file"`
	ScenariosTotal int     `json:"scenarios_total"`
	TestsPass      int     `json:"tests_pass"`
	TestsFail      int     `json:"tests_fail"`
	Iterations     int     `json:"iterations"`
	DurationSecs   float64 `json:"duration_secs"`
	FilesChanged   int     `json:"files_changed"`
	GitSHA         string  `json:"git_sha"`
	ExitCode       int     `json:"exit_code"`
}

// IsSuccess reports whether the run can be considered a clean pass:
// a zero exit code and no failing tests.
func (a Artifact) IsSuccess() bool {
	return a.ExitCode == 0 && a.TestsFail == 0
}

// Path returns the conventional path for a loop's proof artifact under
// the app directory, e.g. ".hatloop/proofs/<loop-id>.json".
func Path(appDir, loopID string) string {
	return filepath.Join(appDir, "proofs", loopID+".json")
}

// Write persists a to Path(appDir, loopID), creating the proofs
// directory if needed.
func Write(appDir, loopID string, a Artifact) error {
	path := Path(appDir, loopID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.NewIoError("create proofs directory", err)
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return apperrors.NewIoError("marshal proof artifact", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperrors.NewIoError("write proof artifact", err)
	}
	return nil
}

// Read loads the proof artifact for loopID from appDir.
func Read(appDir, loopID string) (Artifact, error) {
	data, err := os.ReadFile(Path(appDir, loopID))
	if err != nil {
		return Artifact{}, apperrors.NewIoError("read proof artifact", err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return Artifact{}, apperrors.NewEventParseError("parse proof artifact", err)
	}
	return a, nil
}
