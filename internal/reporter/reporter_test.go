package reporter

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/hatloop/hatloop/internal/looprun"
	"github.com/hatloop/hatloop/internal/proof"
)

func TestHumanRenderIncludesStateAndIterations(t *testing.T) {
	h := NewHuman(100)
	out := h.Render(looprun.StateCompleted, "completion promise observed", proof.Artifact{
		Iterations:   3,
		DurationSecs: 12.5,
		TestsPass:    10,
		TestsFail:    0,
	})
	if !strings.Contains(out, "COMPLETED") {
		t.Fatalf("expected rendered state, got %q", out)
	}
	if !strings.Contains(out, "3") {
		t.Fatalf("expected iteration count in output, got %q", out)
	}
}

func TestJSONRenderRoundTrips(t *testing.T) {
	j := NewJSON()
	out, err := j.Render(looprun.StateFailed, "Stalled", proof.Artifact{Iterations: 2, ExitCode: 1})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	var decoded report
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("unmarshal rendered json: %v", err)
	}
	if decoded.State != "failed" || decoded.Reason != "Stalled" || decoded.Proof.Iterations != 2 {
		t.Fatalf("unexpected decoded report: %+v", decoded)
	}
}
