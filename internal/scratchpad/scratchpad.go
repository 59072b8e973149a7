// Package scratchpad reads the loop's shared-state markdown file and
// reports checklist progress; hatloop never writes prose into it, that's
// the agent's job, but it can seed a template and summarize counts for
// diagnostics and preflight.
package scratchpad

import (
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	apperrors "github.com/hatloop/hatloop/pkg/errors"
)

// Item is one checklist line, e.g. "- [ ] write the parser".
type Item struct {
	Text string
	Done bool
}

var checklistParser = goldmark.New(goldmark.WithExtensions(extension.TaskList))

const defaultTemplate = `# Scratchpad

## Tasks

- [ ] (add your first task here)
`

// Load parses the scratchpad at path into its checklist items. A missing
// file is not an error; it simply yields no items, matching a loop that
// hasn't seeded one yet.
func Load(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.NewIoError("read scratchpad", err)
	}
	return parseChecklist(data), nil
}

// parseChecklist walks the goldmark AST for task-list items. With the
// TaskList extension enabled, "- [ ]"/"- [x]" list items carry a
// TaskCheckBox node as the first child of their text block, so we don't
// need our own regex over the markdown.
func parseChecklist(source []byte) []Item {
	reader := text.NewReader(source)
	doc := checklistParser.Parser().Parse(reader)

	var items []Item
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		listItem, ok := n.(*ast.ListItem)
		if !ok {
			return ast.WalkContinue, nil
		}

		block := listItem.FirstChild()
		if block == nil || block.FirstChild() == nil {
			return ast.WalkContinue, nil
		}
		checkbox, ok := block.FirstChild().(*east.TaskCheckBox)
		if !ok {
			return ast.WalkSkipChildren, nil
		}

		text := strings.TrimSpace(string(block.Text(source)))
		items = append(items, Item{Text: text, Done: checkbox.IsChecked})
		return ast.WalkSkipChildren, nil
	})

	return items
}

// Summary counts open vs. closed checklist items.
type Summary struct {
	Open   int
	Closed int
}

// Summarize reduces a set of items to open/closed counts.
func Summarize(items []Item) Summary {
	var s Summary
	for _, it := range items {
		if it.Done {
			s.Closed++
		} else {
			s.Open++
		}
	}
	return s
}

// Seed writes the default scratchpad template to path if nothing exists
// there yet. It is called on a loop's Idle->Starting transition.
func Seed(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(defaultTemplate), 0o644); err != nil {
		return apperrors.NewIoError("seed scratchpad", err)
	}
	return nil
}
