// Package report renders trees, edit scripts and heuristic spans for the
// terminal and serializes them for tooling.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sergi/go-diff/diffmatchpatch"

	"arbor/internal/diff"
	"arbor/internal/fallback"
	"arbor/internal/history"
	"arbor/internal/syntax"
)

var (
	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	fieldStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	spanStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	textStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24"))

	insertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	deleteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	moveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	updateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

// RenderTree prints the snapshot as an indented outline. Anonymous nodes
// are folded into their text; maxDepth <= 0 means unlimited.
func RenderTree(t *syntax.Tree, maxDepth int) string {
	if t == nil || t.Len() == 0 {
		return dimStyle.Render("(empty tree)") + "\n"
	}

	var b strings.Builder
	t.Walk(func(_ int32, n *syntax.Node, depth int) bool {
		if maxDepth > 0 && depth > maxDepth {
			return false
		}
		if !n.Named {
			return true
		}
		b.WriteString(strings.Repeat("  ", depth))
		if n.Field != "" {
			b.WriteString(fieldStyle.Render(n.Field + ":"))
			b.WriteString(" ")
		}
		if n.Error || n.Missing {
			b.WriteString(errorStyle.Render(n.Kind))
		} else {
			b.WriteString(kindStyle.Render(n.Kind))
		}
		b.WriteString(" ")
		b.WriteString(spanStyle.Render(fmt.Sprintf("[%d:%d-%d:%d]",
			n.Start.Row, n.Start.Column, n.End.Row, n.End.Column)))
		if n.IsLeaf() && n.Text != "" {
			b.WriteString(" ")
			b.WriteString(textStyle.Render(truncate(n.Text, 40)))
		}
		b.WriteString("\n")
		return true
	})
	return b.String()
}

// RenderOps prints an edit script one operation per line. Update ops get a
// word-level preview of the text change.
func RenderOps(ops []diff.Op) string {
	if len(ops) == 0 {
		return dimStyle.Render("(no changes)") + "\n"
	}

	var b strings.Builder
	for _, op := range ops {
		switch op.Kind {
		case diff.OpInsert:
			b.WriteString(insertStyle.Render("+ " + op.String()))
		case diff.OpDelete:
			b.WriteString(deleteStyle.Render("- " + op.String()))
		case diff.OpMove:
			b.WriteString(moveStyle.Render("~ " + op.String()))
		case diff.OpUpdate:
			b.WriteString(updateStyle.Render("* " + op.String()))
			if op.OldText != op.NewText {
				b.WriteString("\n    ")
				b.WriteString(wordDiff(op.OldText, op.NewText))
			}
		default:
			b.WriteString(op.String())
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderSpans prints heuristic findings with their confidence.
func RenderSpans(spans []fallback.Span) string {
	if len(spans) == 0 {
		return dimStyle.Render("(no matches)") + "\n"
	}

	var b strings.Builder
	for _, s := range spans {
		b.WriteString(kindStyle.Render(string(s.Kind)))
		if s.Name != "" {
			b.WriteString(" ")
			b.WriteString(textStyle.Render(s.Name))
		}
		b.WriteString(" ")
		b.WriteString(spanStyle.Render(fmt.Sprintf("[%d:%d]", s.Start.Row, s.Start.Column)))
		b.WriteString(" ")
		b.WriteString(dimStyle.Render(fmt.Sprintf("confidence %.2f", s.Confidence)))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderRuns prints recorded history entries newest first.
func RenderRuns(runs []history.Run) string {
	if len(runs) == 0 {
		return dimStyle.Render("(no recorded runs)") + "\n"
	}

	var b strings.Builder
	for _, run := range runs {
		status := insertStyle.Render("ok")
		if !run.OK {
			status = errorStyle.Render("failed")
		}
		b.WriteString(spanStyle.Render(run.Timestamp.Format("2006-01-02 15:04:05")))
		b.WriteString(" ")
		b.WriteString(kindStyle.Render(string(run.Kind)))
		b.WriteString(" ")
		b.WriteString(status)
		if run.Language != "" {
			b.WriteString(dimStyle.Render(" " + run.Language))
		}
		if run.Path != "" {
			b.WriteString(" ")
			b.WriteString(run.Path)
		}
		if run.Ops > 0 {
			b.WriteString(dimStyle.Render(fmt.Sprintf(" %d ops", run.Ops)))
		}
		if run.Nodes > 0 {
			b.WriteString(dimStyle.Render(fmt.Sprintf(" %d nodes", run.Nodes)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// wordDiff renders an inline old/new comparison.
func wordDiff(oldText, newText string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldText, newText, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			b.WriteString(insertStyle.Render(d.Text))
		case diffmatchpatch.DiffDelete:
			b.WriteString(deleteStyle.Render(strikethrough(d.Text)))
		default:
			b.WriteString(d.Text)
		}
	}
	return b.String()
}

func strikethrough(s string) string {
	return lipgloss.NewStyle().Strikethrough(true).Render(s)
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", `\n`)
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
