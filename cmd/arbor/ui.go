package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"arbor/internal/syntax"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	cleanStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

type nodeItem struct {
	title, desc string
	hasError    bool
}

func (i nodeItem) Title() string       { return i.title }
func (i nodeItem) Description() string { return i.desc }
func (i nodeItem) FilterValue() string { return i.title + i.desc }

type treeModel struct {
	list       list.Model
	path       string
	language   string
	nodeCount  int
	errorCount int
}

func (m treeModel) Init() tea.Cmd {
	return nil
}

func (m treeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v-4)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m treeModel) View() string {
	status := statusStyle.Render(fmt.Sprintf("%s | %s | %d nodes",
		m.path, m.language, m.nodeCount))

	var summary string
	if m.errorCount == 0 {
		summary = cleanStyle.Render("no syntax errors")
	} else {
		summary = errStyle.Render(fmt.Sprintf("%d error nodes", m.errorCount))
	}

	header := fmt.Sprintf("%s\n%s | %s\n", titleStyle("Syntax Tree"), status, summary)
	return docStyle.Render(header + "\n" + m.list.View())
}

func runUI(out *ParseOutput) error {
	items := []list.Item{}
	out.Tree.Walk(func(_ int32, n *syntax.Node, depth int) bool {
		if !n.Named {
			return true
		}
		title := strings.Repeat("  ", depth) + n.Kind
		if n.Field != "" {
			title = strings.Repeat("  ", depth) + n.Field + ": " + n.Kind
		}
		desc := fmt.Sprintf("[%d:%d-%d:%d]", n.Start.Row, n.Start.Column, n.End.Row, n.End.Column)
		if n.IsLeaf() && n.Text != "" {
			desc += " " + strings.ReplaceAll(n.Text, "\n", `\n`)
		}
		items = append(items, nodeItem{
			title:    title,
			desc:     desc,
			hasError: n.Error || n.Missing,
		})
		return true
	})

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Nodes"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)

	m := treeModel{
		list:       l,
		path:       out.Path,
		language:   string(out.Language),
		nodeCount:  out.Tree.Len(),
		errorCount: out.Tree.ErrorCount(),
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
