package scheduler

import (
	"fmt"
	"strings"

	"github.com/hatloop/hatloop/internal/hats"
)

// CoreConfig is the handful of paths and guardrails every composed prompt
// references regardless of hat type.
type CoreConfig struct {
	Scratchpad         string
	SpecsDir           string
	EventsFile         string
	Guardrails         []string
	CompletionPromise  string
}

// PromptComposer builds the per-hat prompt the Scheduler hands to the
// Executor. It never mutates orchestrator state; composition is a pure
// function of config, registry topology, and the hat being prompted (the
// triggering event is not part of the prompt).
type PromptComposer struct {
	core     CoreConfig
	registry *hats.Registry
}

// NewPromptComposer builds a composer over the given registry and core
// settings.
func NewPromptComposer(core CoreConfig, registry *hats.Registry) *PromptComposer {
	return &PromptComposer{core: core, registry: registry}
}

// ComposeFallback builds the fallback agent's prompt: a solo-mode preamble
// when no custom hats are configured, or a multi-hat coordination preamble
// that enumerates the registry's topology otherwise.
func (p *PromptComposer) ComposeFallback() string {
	var b strings.Builder
	b.WriteString(p.corePrompt())
	if p.registry.SoloMode() {
		b.WriteString(p.soloModeSection())
	} else {
		b.WriteString(p.multiHatSection())
	}
	b.WriteString(p.eventWritingSection())
	b.WriteString(p.doneSection())
	return b.String()
}

// ComposeHat builds a custom hat's prompt: its own configured instructions
// plus the standard event-writing and completion-promise rubric every hat
// shares with the fallback agent.
func (p *PromptComposer) ComposeHat(h hats.Hat) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.\n\n", displayName(h))
	b.WriteString(h.Instructions)
	b.WriteString("\n\n")
	b.WriteString(p.eventWritingSection())
	b.WriteString(p.doneSection())
	return b.String()
}

func displayName(h hats.Hat) string {
	if h.DisplayName != "" {
		return h.DisplayName
	}
	return h.ID
}

func (p *PromptComposer) corePrompt() string {
	var guardrails strings.Builder
	for _, g := range p.core.Guardrails {
		guardrails.WriteString("- ")
		guardrails.WriteString(g)
		guardrails.WriteByte('\n')
	}

	return fmt.Sprintf(`You are the coordinator.

## CORE BEHAVIORS
**Scratchpad:** %s is shared state. Read it. Update it.
**Specs:** %s is the source of truth. Implementations must match.
**Backpressure:** tests/typecheck/lint must pass.

### Guardrails
%s
`, p.core.Scratchpad, p.core.SpecsDir, guardrails.String())
}

func (p *PromptComposer) soloModeSection() string {
	return `## SOLO MODE

You're doing everything yourself. Plan, implement, validate.

1. Gap analysis: compare specs against the codebase.
2. Own the scratchpad: create or update it with prioritized tasks.
3. Implement: pick one task, write code, validate.
4. Commit: mark the task done in the scratchpad.
5. Repeat until all tasks are done.

`
}

func (p *PromptComposer) multiHatSection() string {
	var b strings.Builder
	b.WriteString("## MULTI-HAT MODE\n\nYou coordinate a team. Delegate to hats or handle orphaned events yourself.\n\n### TEAM\n\n")
	b.WriteString("| Hat | Subscribes To | Publishes |\n")
	b.WriteString("|-----|---------------|-----------|\n")
	for _, h := range p.registry.All() {
		if h.ID == hats.FallbackID {
			continue
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", displayName(h), joinTopics(h.Subscriptions), joinTopics(h.Publishes))
	}
	b.WriteString("\nYour role: catch orphaned events, coordinate work, ensure completion.\n\n")
	return b.String()
}

func joinTopics[T fmt.Stringer](topics []T) string {
	parts := make([]string, len(topics))
	for i, t := range topics {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

func (p *PromptComposer) eventWritingSection() string {
	return fmt.Sprintf(`## EVENT WRITING

Write events to %s, embedded in your output, as:
<event topic="build.task">payload text</event>

`, p.core.EventsFile)
}

func (p *PromptComposer) doneSection() string {
	return fmt.Sprintf(`## DONE

Output %s when all tasks are complete.
`, p.core.CompletionPromise)
}
