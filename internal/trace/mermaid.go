package trace

import (
	"fmt"
	"strings"

	"github.com/TyphonHill/go-mermaid/diagrams/flowchart"
)

const maxLabelLen = 60

// Render draws the delegation tree of t as a fenced Mermaid flowchart.
// Each agent call links to the calls of its nested process; root calls
// hang off a node labelled with title.
func (w *Walker) Render(t *Trace, title string) string {
	diagram := flowchart.NewFlowchart()
	diagram.EnableMarkdownFence()
	diagram.SetDirection(flowchart.FlowchartDirectionTopDown)
	diagram.Config.SetHtmlLabels(true)

	if title == "" {
		title = "transcript"
	}
	root := diagram.AddNode(sanitizeLabel("🧑 " + title))
	root.SetShape(flowchart.NodeShapeTerminal)

	w.render(diagram, root, t, 0)

	if t != nil && t.Error != "" {
		errNode := diagram.AddNode(sanitizeLabel("⚠ " + firstLine(t.Error)))
		errNode.SetShape(flowchart.NodeShapeDecision)
		errNode.SetStyle(nodeStyle("#ffebee", "#b71c1c"))
		diagram.AddLink(root, errNode)
	}

	return diagram.String()
}

// Render draws t with the default walker.
func Render(t *Trace, title string) string {
	return defaultWalker.Render(t, title)
}

func (w *Walker) render(diagram *flowchart.Flowchart, parent *flowchart.Node, t *Trace, depth int) {
	if t == nil {
		return
	}
	for i, it := range t.IterationHistory {
		for _, call := range it.StructuredThought.FunctionCalls {
			switch call.Kind {
			case KindMCP:
				node := diagram.AddNode(sanitizeLabel(mcpLabel(i+1, call.MCP)))
				node.SetShape(flowchart.NodeShapeSubprocess)
				node.SetStyle(nodeStyle("#e8f5e9", "#1b5e20"))
				diagram.AddLink(parent, node)
			case KindAgent:
				node := diagram.AddNode(sanitizeLabel(fmt.Sprintf("🤖 %s<br/>iteration %d", call.Agent.Function, i+1)))
				node.SetShape(flowchart.NodeShapePrepare)
				node.SetStyle(nodeStyle("#f3e5f5", "#4a148c"))
				diagram.AddLink(parent, node)
				if depth < w.MaxDepth {
					w.render(diagram, node, call.Agent.Process, depth+1)
				}
			}
		}
	}
}

func mcpLabel(iteration int, call *MCPCall) string {
	status := "no result"
	if text, ok := ResultText(call.Result); ok {
		status = fmt.Sprintf("%d chars", len(text))
		if strings.Contains(strings.ToLower(text), "error") {
			status = "error"
		}
	}
	return fmt.Sprintf("🔧 %s<br/>iteration %d · %s", call.Function, iteration, status)
}

func nodeStyle(fill, stroke string) *flowchart.NodeStyle {
	style := flowchart.NewNodeStyle()
	style.StrokeWidth = 1
	style.Fill = fill
	style.Stroke = stroke
	return style
}

func sanitizeLabel(label string) string {
	return truncate(strings.ReplaceAll(label, `"`, "'"), maxLabelLen+16)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return truncate(s, maxLabelLen)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
