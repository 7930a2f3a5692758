package trace

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunctionCallDecoding(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		kind  Kind
		check func(t *testing.T, c FunctionCall)
	}{
		{
			name: "mcp",
			raw:  `{"type":"mcp","function":"get_courses","args":{"id":7},"result":"ok"}`,
			kind: KindMCP,
			check: func(t *testing.T, c FunctionCall) {
				require.NotNil(t, c.MCP)
				assert.Equal(t, "get_courses", c.Name())
				assert.JSONEq(t, `"ok"`, string(c.MCP.Result))
			},
		},
		{
			name: "mcp null result",
			raw:  `{"type":"mcp","function":"f","result":null}`,
			kind: KindMCP,
			check: func(t *testing.T, c FunctionCall) {
				assert.Nil(t, c.MCP.Result)
			},
		},
		{
			name: "agent without process",
			raw:  `{"type":"agent","function":"moodle"}`,
			kind: KindAgent,
			check: func(t *testing.T, c FunctionCall) {
				require.NotNil(t, c.Agent)
				assert.NotNil(t, c.Agent.Process)
			},
		},
		{
			name: "unknown tag",
			raw:  `{"type":"thought","function":"f"}`,
			kind: KindUnknown,
			check: func(t *testing.T, c FunctionCall) {
				assert.Nil(t, c.MCP)
				assert.Nil(t, c.Agent)
				assert.Equal(t, "thought", c.Tag)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c FunctionCall
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &c))
			assert.Equal(t, tt.kind, c.Kind)
			tt.check(t, c)
		})
	}
}

func TestStructuredThoughtKeepsRaw(t *testing.T) {
	raw := `{"functionCalls":[],"error":"Error: bad"}`
	var st StructuredThought
	require.NoError(t, json.Unmarshal([]byte(raw), &st))
	assert.Equal(t, raw, string(st.Raw))

	out, err := json.Marshal(st)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestResultText(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{`"plain"`, "plain", true},
		{`"line\nbreak"`, "line\nbreak", true},
		{`""`, "", true},
		{`null`, "", false},
		{``, "", false},
		{`{"b": 2, "a": 1}`, `{"b": 2, "a": 1}`, true},
		{`42`, "42", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ResultText(json.RawMessage(tt.raw))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTraceRoundTripsThroughWireForm(t *testing.T) {
	tr := decodeTrace(t, delegatedTrace)
	out, err := json.Marshal(tr)
	require.NoError(t, err)

	var again Trace
	require.NoError(t, json.Unmarshal(out, &again))
	assert.Equal(t, FlattenToolCalls(tr), FlattenToolCalls(&again))

	ctx := FlattenContext(&again)
	assert.Len(t, ctx, 2)
	assert.Equal(t, "ra", ctx[0])
	assert.JSONEq(t, `{"items":[1,2]}`, ctx[1])
}
