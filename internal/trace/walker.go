package trace

import (
	"encoding/json"
	"fmt"
)

// DefaultMaxDepth bounds delegation recursion.
const DefaultMaxDepth = 32

// ToolCall is one flattened tool invocation. Calls issued inside a
// delegation carry the delegating agent's name as a prefix.
type ToolCall struct {
	Name            string         `json:"name"`
	InputParameters map[string]any `json:"input_parameters"`
}

// Visit describes a call reached during a walk.
type Visit struct {
	Call   *FunctionCall
	Prefix string // name of the immediately enclosing agent, empty at the root
	Depth  int    // delegation level, 0 at the root
}

// Walker traverses traces depth-first in iteration order.
type Walker struct {
	MaxDepth int
}

// NewWalker returns a walker descending at most maxDepth delegation levels.
// Non-positive values select DefaultMaxDepth.
func NewWalker(maxDepth int) *Walker {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Walker{MaxDepth: maxDepth}
}

var defaultWalker = NewWalker(DefaultMaxDepth)

// FlattenToolCalls flattens t with the default walker.
func FlattenToolCalls(t *Trace) []ToolCall {
	return defaultWalker.ToolCalls(t)
}

// FlattenContext collects tool results from t with the default walker.
func FlattenContext(t *Trace) []string {
	return defaultWalker.Context(t)
}

// Walk calls fn for every known call in t. Agent calls are visited before
// their nested process. Processes nested deeper than MaxDepth are skipped.
func (w *Walker) Walk(t *Trace, fn func(Visit)) {
	w.walk(t, "", 0, fn)
}

func (w *Walker) walk(t *Trace, prefix string, depth int, fn func(Visit)) {
	if t == nil {
		return
	}
	for i := range t.IterationHistory {
		calls := t.IterationHistory[i].StructuredThought.FunctionCalls
		for j := range calls {
			call := &calls[j]
			switch call.Kind {
			case KindMCP:
				fn(Visit{Call: call, Prefix: prefix, Depth: depth})
			case KindAgent:
				fn(Visit{Call: call, Prefix: prefix, Depth: depth})
				if depth < w.MaxDepth {
					w.walk(call.Agent.Process, call.Agent.Function, depth+1, fn)
				}
			}
		}
	}
}

// ToolCalls returns every MCP invocation in traversal order.
func (w *Walker) ToolCalls(t *Trace) []ToolCall {
	calls := []ToolCall{}
	w.Walk(t, func(v Visit) {
		if v.Call.MCP == nil {
			return
		}
		name := v.Call.MCP.Function
		if v.Prefix != "" {
			name = v.Prefix + "." + name
		}
		calls = append(calls, ToolCall{Name: name, InputParameters: v.Call.MCP.Args})
	})
	return calls
}

// Context returns every MCP result that is present, in traversal order.
func (w *Walker) Context(t *Trace) []string {
	items := []string{}
	w.Walk(t, func(v Visit) {
		if v.Call.MCP == nil {
			return
		}
		if text, ok := ResultText(v.Call.MCP.Result); ok {
			items = append(items, text)
		}
	})
	return items
}

// ToolDescriptions returns the agentTools descriptions of t. Tools without
// a description are skipped.
func ToolDescriptions(t *Trace) []string {
	if t == nil {
		return []string{}
	}
	out := make([]string, 0, len(t.AgentTools))
	for _, tool := range t.AgentTools {
		if tool.Description != nil {
			out = append(out, *tool.Description)
		}
	}
	return out
}

// CanonicalArgs renders args as JSON with sorted keys. Nil and empty maps
// render identically.
func CanonicalArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	out, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(out)
}
