// Package transcript loads recorded agent transcripts and turns them into
// judge-ready test cases.
package transcript

import (
	"github.com/agenticgokit/traceval/internal/trace"
)

// DefaultTaskType groups entries that carry no task_type.
const DefaultTaskType = "unknown"

// Report is the input document: a list of transcripts plus provenance.
type Report struct {
	Entries   []Entry `json:"testEntries"`
	GitHash   string  `json:"gitHash,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`

	// Path is the file the report was loaded from.
	Path string `json:"-"`
}

// Entry is one recorded interaction.
type Entry struct {
	ID                      string             `json:"id,omitempty"`
	TaskType                string             `json:"task_type,omitempty"`
	Input                   *string            `json:"input"`
	ActualOutput            *string            `json:"actual_output"`
	ExpectedOutput          *string            `json:"expected_output,omitempty"`
	CompletionTime          *float64           `json:"completion_time,omitempty"`
	ExtendedEvaluationInput string             `json:"extended_evaluation_input,omitempty"`
	ExpectedToolCalls       []ExpectedToolCall `json:"expected_tool_calls,omitempty"`
	Trace                   *trace.Trace       `json:"trace,omitempty"`
}

// ExpectedToolCall is a tool invocation the agent should have made.
type ExpectedToolCall struct {
	Function string         `json:"function"`
	Args     map[string]any `json:"args,omitempty"`
}

// TestCase is what the judging engine scores. Context and tool lists are
// never nil so they encode as JSON arrays.
type TestCase struct {
	Input          string           `json:"input"`
	ActualOutput   string           `json:"actual_output"`
	ExpectedOutput *string          `json:"expected_output,omitempty"`
	Context        []string         `json:"context"`
	CompletionTime *float64         `json:"completion_time,omitempty"`
	ExpectedTools  []trace.ToolCall `json:"expected_tools"`
	ToolsCalled    []trace.ToolCall `json:"tools_called"`
}

// Key identifies a test case by its content.
type Key struct {
	Input        string
	ActualOutput string
}

// Key returns the content key of tc.
func (tc TestCase) Key() Key {
	return Key{Input: tc.Input, ActualOutput: tc.ActualOutput}
}

// Str returns a pointer to s, for building optional fields.
func Str(s string) *string {
	return &s
}
