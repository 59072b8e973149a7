package looprun

import (
	"strconv"
	"strings"
)

// Evidence is the parsed payload of a "backpressure" event: the fallback
// hat reports the health of every required gate as "key: value" lines.
type Evidence struct {
	Tests       string
	Lint        string
	Typecheck   string
	Audit       string
	Coverage    string
	Duplication string
	Performance string
	Complexity  string

	// ComplexityThreshold is the configured ceiling a numeric complexity
	// value is allowed to satisfy in place of a literal "pass".
	ComplexityThreshold float64
}

// ParseEvidence parses a backpressure event payload of "key: value" lines,
// one per required gate. Unknown keys are ignored; missing keys default to
// the empty string, which AllPassed treats as a failure.
func ParseEvidence(payload string, complexityThreshold float64) Evidence {
	ev := Evidence{ComplexityThreshold: complexityThreshold}
	for _, line := range strings.Split(payload, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch strings.ToLower(key) {
		case "tests":
			ev.Tests = value
		case "lint":
			ev.Lint = value
		case "typecheck":
			ev.Typecheck = value
		case "audit":
			ev.Audit = value
		case "coverage":
			ev.Coverage = value
		case "duplication":
			ev.Duplication = value
		case "performance":
			ev.Performance = value
		case "complexity":
			ev.Complexity = value
		}
	}
	return ev
}

const passStatus = "pass"

// AllPassed reports whether every required gate is satisfied: every field
// reads "pass" except complexity, which also passes when it parses as a
// number at or below ComplexityThreshold.
func (e Evidence) AllPassed() bool {
	for _, status := range []string{e.Tests, e.Lint, e.Typecheck, e.Audit, e.Coverage, e.Duplication, e.Performance} {
		if !strings.EqualFold(status, passStatus) {
			return false
		}
	}
	return e.complexityPassed()
}

func (e Evidence) complexityPassed() bool {
	if strings.EqualFold(e.Complexity, passStatus) {
		return true
	}
	n, err := strconv.ParseFloat(e.Complexity, 64)
	if err != nil {
		return false
	}
	return n <= e.ComplexityThreshold
}

// FailingGates lists the required gates that did not pass, for diagnostics
// and for composing the next iteration's builder-hat prompt.
func (e Evidence) FailingGates() []string {
	gates := map[string]string{
		"tests":       e.Tests,
		"lint":        e.Lint,
		"typecheck":   e.Typecheck,
		"audit":       e.Audit,
		"coverage":    e.Coverage,
		"duplication": e.Duplication,
		"performance": e.Performance,
	}
	var failing []string
	for _, name := range []string{"tests", "lint", "typecheck", "audit", "coverage", "duplication", "performance"} {
		if !strings.EqualFold(gates[name], passStatus) {
			failing = append(failing, name)
		}
	}
	if !e.complexityPassed() {
		failing = append(failing, "complexity")
	}
	return failing
}
