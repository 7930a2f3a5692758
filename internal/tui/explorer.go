package tui

import (
	"fmt"
	"strings"

	"github.com/agenticgokit/traceval/internal/trace"
	"github.com/agenticgokit/traceval/internal/transcript"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	CtrlC   = "ctrl+c"
	KeyUp   = "up"
	KeyDown = "down"
)

// ViewMode represents the current viewing mode
type ViewMode int

const (
	EntryListView ViewMode = iota
	TreeView
)

// Model is the bubbletea model of the transcript explorer.
type Model struct {
	entries     []transcript.Entry
	entryCursor int
	maxDepth    int

	// Selected entry
	selected     int
	roots        []*Node
	visibleNodes []*Node
	cursor       int

	viewMode       ViewMode
	detailViewport viewport.Model
	ready          bool
	width          int
	height         int
}

// NewExplorer creates an explorer over entries. maxDepth bounds how deep
// delegations are expanded.
func NewExplorer(entries []transcript.Entry, maxDepth int) Model {
	return Model{
		entries:        entries,
		maxDepth:       maxDepth,
		detailViewport: viewport.New(40, 10),
		width:          100,
		height:         30,
	}
}

// NewEntryExplorer opens directly on the trace tree of entries[index].
func NewEntryExplorer(entries []transcript.Entry, index, maxDepth int) Model {
	m := NewExplorer(entries, maxDepth)
	if index >= 0 && index < len(entries) {
		m.entryCursor = index
		m.loadEntry(index)
		m.viewMode = TreeView
	}
	return m
}

// Run starts the explorer in the alternate screen and blocks until exit.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func (m *Model) loadEntry(index int) {
	m.selected = index
	m.roots = BuildTree(m.entries[index].Trace, m.maxDepth)
	m.visibleNodes = FlattenTree(m.roots)
	m.cursor = 0
	m.updateDetailViewport()
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.viewMode {
		case EntryListView:
			return m.updateEntryListView(msg)
		case TreeView:
			return m.updateTreeView(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.detailViewport.Width = max(msg.Width/2-4, 20)
		m.detailViewport.Height = max(msg.Height-8, 5)
		m.ready = true
		m.updateDetailViewport()
	}

	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m Model) updateEntryListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", CtrlC:
		return m, tea.Quit

	case KeyUp, "k":
		if m.entryCursor > 0 {
			m.entryCursor--
		}

	case KeyDown, "j":
		if m.entryCursor < len(m.entries)-1 {
			m.entryCursor++
		}

	case "enter", "l", "right":
		if m.entryCursor < len(m.entries) {
			m.loadEntry(m.entryCursor)
			m.viewMode = TreeView
		}
	}

	return m, nil
}

func (m Model) updateTreeView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", CtrlC:
		return m, tea.Quit

	case "esc", "backspace":
		m.viewMode = EntryListView
		return m, nil

	case KeyUp, "k":
		if m.cursor > 0 {
			m.cursor--
			m.updateDetailViewport()
		}

	case KeyDown, "j":
		if m.cursor < len(m.visibleNodes)-1 {
			m.cursor++
			m.updateDetailViewport()
		}

	case "h", "left":
		m = m.handleTreeCollapse()

	case "l", "right", "enter":
		m = m.handleTreeExpand()

	case " ":
		if node := m.current(); node != nil && node.HasChildren() {
			node.Expanded = !node.Expanded
			m.visibleNodes = FlattenTree(m.roots)
		}

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.detailViewport, cmd = m.detailViewport.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) current() *Node {
	if m.cursor < 0 || m.cursor >= len(m.visibleNodes) {
		return nil
	}
	return m.visibleNodes[m.cursor]
}

// handleTreeCollapse collapses the current node, or moves to its parent.
func (m Model) handleTreeCollapse() Model {
	node := m.current()
	if node == nil {
		return m
	}
	if node.HasChildren() && node.Expanded {
		node.Expanded = false
		m.visibleNodes = FlattenTree(m.roots)
		return m
	}
	if node.Parent != nil {
		for i, n := range m.visibleNodes {
			if n == node.Parent {
				m.cursor = i
				m.updateDetailViewport()
				break
			}
		}
	}
	return m
}

func (m Model) handleTreeExpand() Model {
	if node := m.current(); node != nil && node.HasChildren() && !node.Expanded {
		node.Expanded = true
		m.visibleNodes = FlattenTree(m.roots)
	}
	return m
}

func (m *Model) updateDetailViewport() {
	if node := m.current(); node != nil {
		m.detailViewport.SetContent(node.Details())
	} else {
		m.detailViewport.SetContent(MutedStyle.Render("No calls recorded."))
	}
	m.detailViewport.GotoTop()
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("traceval Transcript Explorer"))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", max(m.width-6, 10)))
	b.WriteString("\n")

	switch m.viewMode {
	case TreeView:
		b.WriteString(m.renderTreeView())
	default:
		b.WriteString(m.renderEntryListView())
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m Model) renderEntryListView() string {
	var b strings.Builder
	if len(m.entries) == 0 {
		b.WriteString(MutedStyle.Render("No entries in report."))
		return b.String()
	}
	for i, e := range m.entries {
		calls := len(trace.FlattenToolCalls(e.Trace))
		line := fmt.Sprintf("%-30s %-20s %3d tool calls", e.ID, e.TaskType, calls)
		if e.Trace != nil && e.Trace.Error != "" {
			line += ErrorStyle.Render(" [ERR]")
		}
		if i == m.entryCursor {
			b.WriteString(CursorStyle.Render("→ ") + SelectedStyle.Render(line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderTreeView() string {
	e := m.entries[m.selected]

	var header strings.Builder
	fmt.Fprintf(&header, "%s %s  %s %s\n", AttributeKeyStyle.Render("Entry:"), e.ID,
		AttributeKeyStyle.Render("Task:"), e.TaskType)
	if e.Input != nil {
		fmt.Fprintf(&header, "%s %s\n", AttributeKeyStyle.Render("Input:"), firstLine(*e.Input, 80))
	}
	if e.Trace != nil && e.Trace.Error != "" {
		fmt.Fprintf(&header, "%s %s\n", ErrorStyle.Render("Error:"), firstLine(e.Trace.Error, 80))
	}

	var tree strings.Builder
	if len(m.visibleNodes) == 0 {
		tree.WriteString(MutedStyle.Render("No calls recorded."))
	}
	for i, node := range m.visibleNodes {
		tree.WriteString(m.renderNodeLine(node, i == m.cursor))
		tree.WriteString("\n")
	}

	half := max(m.width/2-4, 20)
	left := BoxStyle.Width(half).Render(tree.String())
	right := BoxStyle.Width(half).Render(m.detailViewport.View())
	return header.String() + lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func (m Model) renderNodeLine(node *Node, selected bool) string {
	indent := strings.Repeat("  ", node.Depth)

	var prefix string
	switch {
	case node.HasChildren() && node.Expanded:
		prefix = "▼ "
	case node.HasChildren():
		prefix = "▶ "
	default:
		prefix = "  "
	}

	name := KindStyle(node.Call.Kind).Render(node.Label())
	iteration := MutedStyle.Render(fmt.Sprintf(" #%d", node.Iteration))

	status := ""
	switch {
	case node.Failed():
		status = ErrorStyle.Render(" [ERR]")
	case node.Truncated:
		status = WarningStyle.Render(" [depth limit]")
	case node.Call.MCP != nil:
		if _, ok := trace.ResultText(node.Call.MCP.Result); ok {
			status = SuccessStyle.Render(" ✓")
		}
	}

	line := indent + prefix + name + iteration + status
	if selected {
		return CursorStyle.Render("→ ") + SelectedStyle.Render(line)
	}
	return "  " + line
}

func (m Model) renderStatusBar() string {
	keys := []string{"↑/↓ move", "enter open", "q quit"}
	if m.viewMode == TreeView {
		keys = []string{"↑/↓ move", "←/→ collapse/expand", "space toggle", "pgup/pgdn scroll", "esc back", "q quit"}
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		key, desc, _ := strings.Cut(k, " ")
		parts[i] = HelpKeyStyle.Render(key) + " " + desc
	}
	return HelpStyle.Render(strings.Join(parts, "  •  "))
}

func firstLine(s string, n int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
