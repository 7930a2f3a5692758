package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agenticgokit/traceval/internal/trace"
)

// Node is one function call in the delegation tree.
type Node struct {
	Call      *trace.FunctionCall
	Iteration int
	Depth     int
	Expanded  bool
	Parent    *Node
	Children  []*Node
	// Truncated marks an agent whose process lies beyond the depth limit.
	Truncated bool
}

// HasChildren reports whether the node can be expanded.
func (n *Node) HasChildren() bool {
	return len(n.Children) > 0
}

// Label is the call name prefixed with its enclosing agent.
func (n *Node) Label() string {
	name := n.Call.Name()
	if name == "" {
		name = "(" + n.Call.Tag + ")"
	}
	if n.Parent != nil && n.Call.Kind == trace.KindMCP {
		name = n.Parent.Call.Name() + "." + name
	}
	return name
}

// Failed reports whether an MCP result mentions an error.
func (n *Node) Failed() bool {
	if n.Call.MCP == nil {
		return false
	}
	text, ok := trace.ResultText(n.Call.MCP.Result)
	return ok && strings.Contains(strings.ToLower(text), "error")
}

// BuildTree turns t into a forest of call nodes, descending at most
// maxDepth delegation levels. Agent nodes start expanded.
func BuildTree(t *trace.Trace, maxDepth int) []*Node {
	if maxDepth <= 0 {
		maxDepth = trace.DefaultMaxDepth
	}
	return buildNodes(t, nil, 0, maxDepth)
}

func buildNodes(t *trace.Trace, parent *Node, depth, maxDepth int) []*Node {
	if t == nil {
		return nil
	}
	var nodes []*Node
	for i := range t.IterationHistory {
		calls := t.IterationHistory[i].StructuredThought.FunctionCalls
		for j := range calls {
			n := &Node{Call: &calls[j], Iteration: i + 1, Depth: depth, Expanded: true, Parent: parent}
			if calls[j].Agent != nil {
				if depth < maxDepth {
					n.Children = buildNodes(calls[j].Agent.Process, n, depth+1, maxDepth)
				} else {
					n.Truncated = true
				}
			}
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// FlattenTree returns a flat list of visible nodes for display
func FlattenTree(roots []*Node) []*Node {
	var result []*Node
	for _, root := range roots {
		flattenNode(root, &result)
	}
	return result
}

func flattenNode(node *Node, result *[]*Node) {
	*result = append(*result, node)
	if node.Expanded {
		for _, child := range node.Children {
			flattenNode(child, result)
		}
	}
}

// Details renders the call's arguments and result for the detail panel.
func (n *Node) Details() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", AttributeKeyStyle.Render("Function:"), n.Label())
	fmt.Fprintf(&b, "%s %s\n", AttributeKeyStyle.Render("Type:"), n.Call.Tag)
	fmt.Fprintf(&b, "%s %d\n", AttributeKeyStyle.Render("Iteration:"), n.Iteration)

	switch {
	case n.Call.MCP != nil:
		b.WriteString(SectionHeaderStyle.Render("Arguments"))
		b.WriteString("\n")
		b.WriteString(prettyJSON(trace.CanonicalArgs(n.Call.MCP.Args)))
		b.WriteString("\n")
		b.WriteString(SectionHeaderStyle.Render("Result"))
		b.WriteString("\n")
		if text, ok := trace.ResultText(n.Call.MCP.Result); ok {
			b.WriteString(prettyJSON(text))
		} else {
			b.WriteString(MutedStyle.Render("(no result)"))
		}
		b.WriteString("\n")
	case n.Call.Agent != nil:
		fmt.Fprintf(&b, "%s %d\n", AttributeKeyStyle.Render("Nested calls:"), len(n.Children))
		if n.Truncated {
			b.WriteString(WarningStyle.Render("Nested process not shown: depth limit reached"))
			b.WriteString("\n")
		}
		if p := n.Call.Agent.Process; p != nil && p.Error != "" {
			b.WriteString(SectionHeaderStyle.Render("Error"))
			b.WriteString("\n")
			b.WriteString(ErrorStyle.Render(p.Error))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func prettyJSON(s string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(s), "", "  "); err != nil {
		return s
	}
	return buf.String()
}
