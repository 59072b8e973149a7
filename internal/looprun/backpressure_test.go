package looprun

import "testing"

func TestParseEvidenceAllPass(t *testing.T) {
	payload := "tests: pass\nlint: pass\ntypecheck: pass\naudit: pass\ncoverage: pass\nduplication: pass\nperformance: pass\ncomplexity: pass\n"
	ev := ParseEvidence(payload, 10)
	if !ev.AllPassed() {
		t.Fatalf("expected all passed, got %+v", ev)
	}
	if len(ev.FailingGates()) != 0 {
		t.Fatalf("expected no failing gates, got %v", ev.FailingGates())
	}
}

func TestParseEvidenceFailingTestsBlocksAllPassed(t *testing.T) {
	payload := "tests: fail\nlint: pass\ntypecheck: pass\naudit: pass\ncoverage: pass\nduplication: pass\nperformance: pass\ncomplexity: pass\n"
	ev := ParseEvidence(payload, 10)
	if ev.AllPassed() {
		t.Fatal("expected AllPassed false when tests fail")
	}
	failing := ev.FailingGates()
	if len(failing) != 1 || failing[0] != "tests" {
		t.Fatalf("expected only tests failing, got %v", failing)
	}
}

func TestComplexityPassesUnderThreshold(t *testing.T) {
	payload := "tests: pass\nlint: pass\ntypecheck: pass\naudit: pass\ncoverage: pass\nduplication: pass\nperformance: pass\ncomplexity: 8\n"
	ev := ParseEvidence(payload, 10)
	if !ev.AllPassed() {
		t.Fatalf("expected complexity 8 <= threshold 10 to pass, got %+v", ev)
	}
}

func TestComplexityFailsOverThreshold(t *testing.T) {
	payload := "tests: pass\nlint: pass\ntypecheck: pass\naudit: pass\ncoverage: pass\nduplication: pass\nperformance: pass\ncomplexity: 15\n"
	ev := ParseEvidence(payload, 10)
	if ev.AllPassed() {
		t.Fatal("expected complexity 15 > threshold 10 to fail")
	}
}

func TestMissingFieldsDefaultToFailing(t *testing.T) {
	ev := ParseEvidence("tests: pass\n", 10)
	if ev.AllPassed() {
		t.Fatal("expected missing fields to count as failing")
	}
}
