// Package trace models the nested execution traces recorded for each
// transcript and flattens them into tool-call and context sequences.
package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind tags a FunctionCall.
type Kind string

const (
	// KindMCP is a direct tool invocation through an MCP connector.
	KindMCP Kind = "mcp"
	// KindAgent is a delegation to a sub-agent carrying its own trace.
	KindAgent Kind = "agent"
	// KindUnknown is any other tag. It is kept but never traversed.
	KindUnknown Kind = "unknown"
)

// Trace is the execution record of one agent run.
type Trace struct {
	AgentTools       []AgentTool `json:"agentTools,omitempty"`
	IterationHistory []Iteration `json:"iterationHistory,omitempty"`
	Error            string      `json:"error,omitempty"`
}

// AgentTool is a tool description advertised to the agent.
type AgentTool struct {
	Description *string `json:"description,omitempty"`
}

// Iteration is one reasoning step of the agent.
type Iteration struct {
	StructuredThought StructuredThought `json:"structuredThought"`
}

// StructuredThought holds the calls issued in an iteration. Raw keeps the
// original JSON for diagnostics that look beyond functionCalls.
type StructuredThought struct {
	FunctionCalls []FunctionCall
	Raw           json.RawMessage
}

// UnmarshalJSON decodes the thought and keeps its raw form.
func (s *StructuredThought) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*s = StructuredThought{}
		return nil
	}
	var wire struct {
		FunctionCalls []FunctionCall `json:"functionCalls"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	s.FunctionCalls = wire.FunctionCalls
	s.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON returns the raw thought when present.
func (s StructuredThought) MarshalJSON() ([]byte, error) {
	if len(s.Raw) > 0 {
		return s.Raw, nil
	}
	calls := s.FunctionCalls
	if calls == nil {
		calls = []FunctionCall{}
	}
	return json.Marshal(struct {
		FunctionCalls []FunctionCall `json:"functionCalls"`
	}{calls})
}

// FunctionCall is a tagged union: exactly one of MCP or Agent is set for the
// known kinds, neither for KindUnknown.
type FunctionCall struct {
	Kind  Kind
	Tag   string
	MCP   *MCPCall
	Agent *AgentCall
}

// MCPCall invokes a tool directly.
type MCPCall struct {
	Function string
	Args     map[string]any
	Result   json.RawMessage
}

// AgentCall delegates to a sub-agent. Process is never nil after decoding.
type AgentCall struct {
	Function string
	Process  *Trace
}

type wireCall struct {
	Type                  string          `json:"type"`
	Function              string          `json:"function,omitempty"`
	Args                  map[string]any  `json:"args,omitempty"`
	Result                json.RawMessage `json:"result,omitempty"`
	InternalRouterProcess *Trace          `json:"internalRouterProcess,omitempty"`
}

// UnmarshalJSON resolves the "type" tag into a concrete variant.
func (c *FunctionCall) UnmarshalJSON(data []byte) error {
	var w wireCall
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("function call: %w", err)
	}

	*c = FunctionCall{Tag: w.Type}
	switch Kind(w.Type) {
	case KindMCP:
		c.Kind = KindMCP
		result := w.Result
		if isNull(result) {
			result = nil
		}
		c.MCP = &MCPCall{Function: w.Function, Args: w.Args, Result: result}
	case KindAgent:
		c.Kind = KindAgent
		process := w.InternalRouterProcess
		if process == nil {
			process = &Trace{}
		}
		c.Agent = &AgentCall{Function: w.Function, Process: process}
	default:
		c.Kind = KindUnknown
	}
	return nil
}

// MarshalJSON encodes the call in its wire form.
func (c FunctionCall) MarshalJSON() ([]byte, error) {
	w := wireCall{Type: c.Tag}
	switch {
	case c.MCP != nil:
		w.Function, w.Args, w.Result = c.MCP.Function, c.MCP.Args, c.MCP.Result
	case c.Agent != nil:
		w.Function, w.InternalRouterProcess = c.Agent.Function, c.Agent.Process
	}
	if w.Type == "" {
		w.Type = string(c.Kind)
	}
	return json.Marshal(w)
}

// Name returns the invoked function or agent name.
func (c *FunctionCall) Name() string {
	switch {
	case c.MCP != nil:
		return c.MCP.Function
	case c.Agent != nil:
		return c.Agent.Function
	}
	return ""
}

// Depth reports the deepest delegation level. A trace without agent calls
// has depth 0.
func (t *Trace) Depth() int {
	if t == nil {
		return 0
	}
	deepest := 0
	for _, it := range t.IterationHistory {
		for _, call := range it.StructuredThought.FunctionCalls {
			if call.Agent == nil {
				continue
			}
			if d := call.Agent.Process.Depth() + 1; d > deepest {
				deepest = d
			}
		}
	}
	return deepest
}

// ResultText renders a call result as a context string. JSON strings are
// unquoted, so an empty string result stays an empty string; other values
// keep their original JSON text. Null and absent results report false.
func ResultText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isNull(raw) {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s, true
		}
	}
	return string(raw), true
}

func isNull(data []byte) bool {
	return len(data) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}
