package analysis

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/agenticgokit/traceval/internal/config"
	"github.com/agenticgokit/traceval/internal/judge"
	"github.com/agenticgokit/traceval/internal/trace"
	"github.com/agenticgokit/traceval/internal/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mcp(fn string, args map[string]any, result string) trace.FunctionCall {
	return trace.FunctionCall{
		Kind: trace.KindMCP,
		Tag:  string(trace.KindMCP),
		MCP:  &trace.MCPCall{Function: fn, Args: args, Result: json.RawMessage(result)},
	}
}

func iteration(calls ...trace.FunctionCall) trace.Iteration {
	return trace.Iteration{StructuredThought: trace.StructuredThought{FunctionCalls: calls}}
}

func decode(t *testing.T, raw string) *trace.Trace {
	t.Helper()
	var tr trace.Trace
	require.NoError(t, json.Unmarshal([]byte(raw), &tr))
	return &tr
}

func TestLoop(t *testing.T) {
	a := mcp("A", map[string]any{"q": 1}, `"ok"`)
	tests := []struct {
		name string
		tr   *trace.Trace
		want bool
	}{
		{"nil trace", nil, false},
		{"repeated call", &trace.Trace{IterationHistory: []trace.Iteration{iteration(a), iteration(a)}}, true},
		{"empty iterations", &trace.Trace{IterationHistory: []trace.Iteration{iteration(), iteration()}}, false},
		{"different args", &trace.Trace{IterationHistory: []trace.Iteration{
			iteration(a), iteration(mcp("A", map[string]any{"q": 2}, `"ok"`)),
		}}, false},
		{"same args different result", &trace.Trace{IterationHistory: []trace.Iteration{
			iteration(a), iteration(mcp("A", map[string]any{"q": 1}, `"other"`)),
		}}, true},
		{"order matters", &trace.Trace{IterationHistory: []trace.Iteration{
			iteration(a, mcp("B", nil, `""`)), iteration(mcp("B", nil, `""`), a),
		}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Loop(tt.tr))
		})
	}
}

func TestGoalDrift(t *testing.T) {
	tr := &trace.Trace{IterationHistory: make([]trace.Iteration, 8)}
	assert.True(t, GoalDrift(tr, 8))
	tr.IterationHistory = tr.IterationHistory[:7]
	assert.False(t, GoalDrift(tr, 8))
	assert.False(t, GoalDrift(nil, 8))
}

func TestJSONError(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"parse keyword", `{"error":"Unexpected token < in JSON at position 0"}`, true},
		{"syntax keyword", `{"error":"SyntaxError: bad input"}`, true},
		{"unrelated error", `{"error":"Timeout after 30s"}`, false},
		{"thought error key", `{"iterationHistory":[{"structuredThought":{"error":"x","functionCalls":[]}}]}`, true},
		{"thought mentions Error", `{"iterationHistory":[{"structuredThought":{"functionCalls":[{"type":"mcp","function":"f","result":"TypeError"}]}}]}`, true},
		{"clean thought", `{"iterationHistory":[{"structuredThought":{"functionCalls":[{"type":"mcp","function":"f","result":"ok"}]}}]}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, JSONError(decode(t, tt.raw)))
		})
	}
	assert.False(t, JSONError(nil))
}

func TestSuccessfulSteps(t *testing.T) {
	tr := decode(t, `{"iterationHistory":[
		{"structuredThought":{"functionCalls":[
			{"type":"mcp","function":"A","result":"done"},
			{"type":"mcp","function":"B","result":"ERROR: not found"},
			{"type":"mcp","function":"C","result":null},
			{"type":"mcp","function":"D","result":""},
			{"type":"mcp","function":"E","result":"[]"}
		]}},
		{"structuredThought":{"functionCalls":[
			{"type":"mcp","function":"F","result":[]},
			{"type":"mcp","function":"G","result":{}},
			{"type":"mcp","function":"H","result":0},
			{"type":"mcp","function":"I","result":false},
			{"type":"mcp","function":"J","result":{"items":[1]}}
		]}}
	]}`)
	assert.Equal(t, 3, SuccessfulSteps(tr))
	assert.Equal(t, 0, SuccessfulSteps(nil))
}

func TestSuccessfulStepsIgnoresDelegatedCalls(t *testing.T) {
	tr := decode(t, `{"iterationHistory":[
		{"structuredThought":{"functionCalls":[
			{"type":"mcp","function":"a","result":"ok"},
			{"type":"agent","function":"X","internalRouterProcess":{"iterationHistory":[
				{"structuredThought":{"functionCalls":[
					{"type":"mcp","function":"b","result":"ok"},
					{"type":"mcp","function":"c","result":"ok"}
				]}}
			]}}
		]}}
	]}`)
	assert.Equal(t, 1, SuccessfulSteps(tr))
}

func TestCommonErrors(t *testing.T) {
	withErr := func(msg string) transcript.Entry {
		return transcript.Entry{Trace: &trace.Trace{Error: msg}}
	}
	long := strings.Repeat("x", 150)
	entries := []transcript.Entry{
		withErr("timeout\nstack trace"),
		withErr("rate limited"),
		withErr("timeout"),
		withErr(long),
		withErr("rate limited"),
		withErr("bad gateway"),
		{},
	}

	got := CommonErrors(entries, 3, 100)
	assert.Equal(t, []string{"timeout", "rate limited", strings.Repeat("x", 100)}, got)
	assert.Empty(t, CommonErrors(nil, 3, 100))
}

func TestAnalyze(t *testing.T) {
	cfg := config.Default().Analysis
	metrics := judge.DefaultMetrics()
	faith, ok := FaithfulnessMetric(metrics)
	require.True(t, ok)

	rep := func(a trace.FunctionCall, n int) *trace.Trace {
		tr := &trace.Trace{}
		for i := 0; i < n; i++ {
			tr.IterationHistory = append(tr.IterationHistory, iteration(a))
		}
		return tr
	}
	entries := []transcript.Entry{
		{ID: "a", TaskType: "deadline", Trace: rep(mcp("moodle.get_upcoming_assignments", nil, `"ok"`), 1)},
		{ID: "b", TaskType: "calendar", Trace: &trace.Trace{Error: "JSON parse failed\nat line 1"}},
		{ID: "c", TaskType: "deadline", Trace: rep(mcp("moodle.get_upcoming_assignments", nil, `"ok"`), 8)},
		{ID: "d"},
	}
	verdicts := map[string]judge.CaseResult{
		"a": {Success: true, Verdicts: []judge.MetricVerdict{{Metric: faith.Name, Score: 0.9}}},
		"b": {Success: false, Verdicts: []judge.MetricVerdict{{Metric: faith.Name, Score: 0.3}}},
		"c": {Success: false, Verdicts: []judge.MetricVerdict{{Metric: faith.Name, Score: 0.7}}},
	}

	res := New(cfg).Analyze(entries, verdicts, metrics)

	require.Len(t, res.Categories, 3)
	deadline := res.Categories[0]
	assert.Equal(t, "deadline", deadline.TaskType)
	assert.Equal(t, 2, deadline.N)
	assert.Equal(t, 1, deadline.Passed)
	assert.Equal(t, 50.0, deadline.PassRatePercent)
	assert.Equal(t, 4.5, deadline.AvgStepsSuccess)
	assert.Empty(t, deadline.CommonErrors)

	calendar := res.Categories[1]
	assert.Equal(t, "calendar", calendar.TaskType)
	assert.Equal(t, 0.0, calendar.PassRatePercent)
	assert.Equal(t, []string{"JSON parse failed"}, calendar.CommonErrors)

	unknown := res.Categories[2]
	assert.Equal(t, transcript.DefaultTaskType, unknown.TaskType)
	assert.Equal(t, 1, unknown.N)
	assert.Equal(t, 0, unknown.Passed)

	assert.Equal(t, FailureCounts{GoalDrifting: 1, Loops: 1, JSONErrors: 1, FaithfulnessFail: 1}, res.Failures)
}

func TestAnalyzeWithoutFaithfulnessMetric(t *testing.T) {
	entries := []transcript.Entry{{ID: "a", TaskType: "t"}}
	verdicts := map[string]judge.CaseResult{"a": {Verdicts: []judge.MetricVerdict{{Metric: "Faithfulness", Score: 0}}}}
	metrics := []judge.MetricSpec{{Name: "Task Completion", Threshold: 0.7}}

	res := New(config.Default().Analysis).Analyze(entries, verdicts, metrics)
	assert.Zero(t, res.Failures.FaithfulnessFail)
}

func TestFaithfulnessThresholdFallback(t *testing.T) {
	entries := []transcript.Entry{{ID: "a"}}
	verdicts := map[string]judge.CaseResult{"a": {Verdicts: []judge.MetricVerdict{{Metric: "faithfulness", Score: 0.6}}}}
	metrics := []judge.MetricSpec{{Name: "faithfulness"}}

	res := New(config.Default().Analysis).Analyze(entries, verdicts, metrics)
	assert.Equal(t, 1, res.Failures.FaithfulnessFail)
}
