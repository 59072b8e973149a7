// Package reporter renders a loop's outcome for the two audiences that
// care: a human watching the CLI (lipgloss-styled) and a CI pipeline
// (plain JSON with the terminal state, reason, and the ProofArtifact
// nested under "proof").
package reporter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hatloop/hatloop/internal/looprun"
	"github.com/hatloop/hatloop/internal/proof"
)

var (
	colorCyan   = lipgloss.Color("#00D7FF")
	colorGray   = lipgloss.Color("#6C6C6C")
	colorGreen  = lipgloss.Color("#00FF87")
	colorRed    = lipgloss.Color("#FF5F5F")
	colorYellow = lipgloss.Color("#FFD75F")
)

// Human renders a loop's terminal state and proof artifact as a
// colored summary for an interactive terminal.
type Human struct {
	width int
}

// NewHuman builds a Human reporter sized to width columns.
func NewHuman(width int) *Human {
	if width <= 0 {
		width = 80
	}
	return &Human{width: width}
}

// Render formats state and a (possibly zero-value) proof artifact into
// a short multi-line summary.
func (h *Human) Render(state looprun.State, reason string, a proof.Artifact) string {
	icon, style := h.stateStyle(state)

	titleStyle := lipgloss.NewStyle().Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(colorGray)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", style.Render(icon), titleStyle.Render(strings.ToUpper(string(state))))
	if reason != "" {
		fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render("reason:"), reason)
	}
	fmt.Fprintf(&b, "  %s %d\n", labelStyle.Render("iterations:"), a.Iterations)
	fmt.Fprintf(&b, "  %s %.1fs\n", labelStyle.Render("duration:"), a.DurationSecs)
	if a.TestsPass+a.TestsFail > 0 {
		fmt.Fprintf(&b, "  %s %d/%d\n", labelStyle.Render("tests passing:"), a.TestsPass, a.TestsPass+a.TestsFail)
	}

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(style.GetForeground()).
		Padding(0, 1).
		Width(h.width - 4)
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (h *Human) stateStyle(state looprun.State) (string, lipgloss.Style) {
	switch state {
	case looprun.StateCompleted:
		return "✓", lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	case looprun.StateFailed, looprun.StateAborted:
		return "✗", lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	case looprun.StateTimedOut:
		return "⏱", lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	default:
		return "•", lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	}
}
