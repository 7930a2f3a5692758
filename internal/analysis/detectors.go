package analysis

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/agenticgokit/traceval/internal/judge"
	"github.com/agenticgokit/traceval/internal/trace"
)

var jsonErrorKeywords = []string{"json", "parse", "syntax", "unexpected token"}

// GoalDrift reports whether the agent needed at least limit iterations.
func GoalDrift(t *trace.Trace, limit int) bool {
	if t == nil {
		return false
	}
	return len(t.IterationHistory) >= limit
}

// Loop reports whether two iterations issued the same non-empty sequence of
// calls with the same arguments.
func Loop(t *trace.Trace) bool {
	if t == nil {
		return false
	}
	seen := make(map[string]struct{}, len(t.IterationHistory))
	for _, it := range t.IterationHistory {
		sig := signature(it.StructuredThought.FunctionCalls)
		if sig == "" {
			continue
		}
		if _, ok := seen[sig]; ok {
			return true
		}
		seen[sig] = struct{}{}
	}
	return false
}

func signature(calls []trace.FunctionCall) string {
	if len(calls) == 0 {
		return ""
	}
	var b strings.Builder
	for i := range calls {
		c := &calls[i]
		var args map[string]any
		if c.MCP != nil {
			args = c.MCP.Args
		}
		b.WriteString(c.Name())
		b.WriteByte(0)
		b.WriteString(trace.CanonicalArgs(args))
		b.WriteByte('\n')
	}
	return b.String()
}

// JSONError reports whether the trace shows signs of a malformed model
// response: a parse-related top-level error, or an iteration whose thought
// carries an error.
func JSONError(t *trace.Trace) bool {
	if t == nil {
		return false
	}
	msg := strings.ToLower(t.Error)
	for _, kw := range jsonErrorKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	for _, it := range t.IterationHistory {
		if thoughtHasError(it.StructuredThought.Raw) {
			return true
		}
	}
	return false
}

func thoughtHasError(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err == nil {
		if _, ok := fields["error"]; ok {
			return true
		}
	}
	return strings.Contains(string(raw), "Error")
}

// SuccessfulSteps counts the MCP calls in the root iteration history whose
// result is truthy and does not mention an error. Calls made inside
// delegations are not counted.
func SuccessfulSteps(t *trace.Trace) int {
	if t == nil {
		return 0
	}
	n := 0
	for _, it := range t.IterationHistory {
		for _, call := range it.StructuredThought.FunctionCalls {
			if call.Kind != trace.KindMCP || call.MCP == nil || !truthy(call.MCP.Result) {
				continue
			}
			text, _ := trace.ResultText(call.MCP.Result)
			if !strings.Contains(strings.ToLower(text), "error") {
				n++
			}
		}
	}
	return n
}

// truthy reports whether raw holds a value other than null, false, zero, or
// an empty string, array, or object.
func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return true
	}
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	return true
}

// FaithfulnessMetric returns the first metric whose name mentions
// faithfulness.
func FaithfulnessMetric(metrics []judge.MetricSpec) (judge.MetricSpec, bool) {
	for _, m := range metrics {
		if strings.Contains(strings.ToLower(m.Name), "faithfulness") {
			return m, true
		}
	}
	return judge.MetricSpec{}, false
}

// FaithfulnessFailed reports whether r scored below threshold on metric.
func FaithfulnessFailed(r judge.CaseResult, metric string, threshold float64) bool {
	v, ok := r.Verdict(metric)
	return ok && v.Score < threshold
}
