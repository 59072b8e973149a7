package reporter

import (
	"encoding/json"

	"github.com/hatloop/hatloop/internal/looprun"
	"github.com/hatloop/hatloop/internal/proof"
)

// report is the stable machine-readable shape CI pipelines parse.
type report struct {
	State  string        `json:"state"`
	Reason string        `json:"reason,omitempty"`
	Proof  proof.Artifact `json:"proof"`
}

// JSON renders a loop's outcome as a single JSON object, suitable for
// piping into `jq` or a CI annotation step.
type JSON struct{}

// NewJSON builds a JSON reporter.
func NewJSON() *JSON {
	return &JSON{}
}

// Render marshals state, reason, and the proof artifact into a single
// indented JSON document.
func (j *JSON) Render(state looprun.State, reason string, a proof.Artifact) (string, error) {
	data, err := json.MarshalIndent(report{
		State:  string(state),
		Reason: reason,
		Proof:  a,
	}, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
