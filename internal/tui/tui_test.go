package tui

import (
	"encoding/json"
	"testing"

	"github.com/agenticgokit/traceval/internal/trace"
	"github.com/agenticgokit/traceval/internal/transcript"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const delegation = `{"iterationHistory":[
  {"structuredThought":{"functionCalls":[{"type":"mcp","function":"A","args":{"x":1},"result":"a"}]}},
  {"structuredThought":{"functionCalls":[{"type":"agent","function":"X","internalRouterProcess":{"iterationHistory":[
    {"structuredThought":{"functionCalls":[{"type":"mcp","function":"B","result":"Error: not found"}]}}
  ]}}]}},
  {"structuredThought":{"functionCalls":[{"type":"mcp","function":"C","result":null}]}}
]}`

func sampleEntries(t *testing.T) []transcript.Entry {
	t.Helper()
	var tr trace.Trace
	require.NoError(t, json.Unmarshal([]byte(delegation), &tr))
	return []transcript.Entry{
		{ID: "deadline-1", TaskType: "deadline_lookup", Input: transcript.Str("Wann?"), Trace: &tr},
		{ID: "empty", TaskType: "unknown"},
	}
}

func labels(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Label()
	}
	return out
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestBuildTree(t *testing.T) {
	roots := BuildTree(sampleEntries(t)[0].Trace, 0)
	require.Len(t, roots, 3)

	assert.Equal(t, []string{"A", "X", "X.B", "C"}, labels(FlattenTree(roots)))
	assert.Equal(t, 2, roots[1].Iteration)
	assert.Equal(t, 1, roots[1].Children[0].Depth)
	assert.True(t, roots[1].Children[0].Failed())
	assert.False(t, roots[0].Failed())

	roots[1].Expanded = false
	assert.Equal(t, []string{"A", "X", "C"}, labels(FlattenTree(roots)))
}

func TestBuildTreeDepthLimit(t *testing.T) {
	roots := BuildTree(sampleEntries(t)[0].Trace, 0)
	limited := BuildTree(sampleEntries(t)[0].Trace, 1)
	assert.Len(t, FlattenTree(limited), len(FlattenTree(roots)))

	var tr trace.Trace
	require.NoError(t, json.Unmarshal([]byte(`{"iterationHistory":[{"structuredThought":{"functionCalls":[
		{"type":"agent","function":"X","internalRouterProcess":{"iterationHistory":[{"structuredThought":{"functionCalls":[
			{"type":"agent","function":"Y","internalRouterProcess":{"iterationHistory":[{"structuredThought":{"functionCalls":[
				{"type":"mcp","function":"B"}]}}]}}]}}]}}]}}]}`), &tr))
	nodes := FlattenTree(BuildTree(&tr, 1))
	assert.Equal(t, []string{"X", "Y"}, labels(nodes))
	assert.True(t, nodes[1].Truncated)
	assert.Contains(t, nodes[1].Details(), "depth limit")
}

func TestBuildTreeNil(t *testing.T) {
	assert.Empty(t, BuildTree(nil, 0))
	assert.Empty(t, FlattenTree(nil))
}

func TestNodeDetails(t *testing.T) {
	roots := BuildTree(sampleEntries(t)[0].Trace, 0)
	d := roots[0].Details()
	assert.Contains(t, d, "Function:")
	assert.Contains(t, d, `"x": 1`)

	assert.Contains(t, roots[2].Details(), "(no result)")
}

func TestExplorerNavigation(t *testing.T) {
	var m tea.Model = NewExplorer(sampleEntries(t), 0)
	assert.Contains(t, m.View(), "deadline-1")
	assert.Contains(t, m.View(), "3 tool calls")

	m, _ = m.Update(key("enter"))
	model := m.(Model)
	assert.Equal(t, TreeView, model.viewMode)
	assert.Len(t, model.visibleNodes, 4)
	assert.Contains(t, m.View(), "X.B")

	m, _ = m.Update(key("j"))
	m, _ = m.Update(key("h"))
	model = m.(Model)
	assert.Equal(t, 1, model.cursor)
	assert.Len(t, model.visibleNodes, 3)

	m, _ = m.Update(key("l"))
	assert.Len(t, m.(Model).visibleNodes, 4)

	m, _ = m.Update(key("j"))
	m, _ = m.Update(key("h"))
	assert.Equal(t, 1, m.(Model).cursor, "collapse on a leaf moves to its parent")

	m, _ = m.Update(key("esc"))
	assert.Equal(t, EntryListView, m.(Model).viewMode)

	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestEntryExplorerWithoutTrace(t *testing.T) {
	m := NewEntryExplorer(sampleEntries(t), 1, 0)
	assert.Equal(t, TreeView, m.viewMode)
	assert.Contains(t, m.View(), "No calls recorded.")
}

func TestExplorerWindowResize(t *testing.T) {
	var m tea.Model = NewEntryExplorer(sampleEntries(t), 0, 0)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	model := m.(Model)
	assert.True(t, model.ready)
	assert.Equal(t, 66, model.detailViewport.Width)
}
