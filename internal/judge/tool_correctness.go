package judge

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenticgokit/traceval/internal/trace"
	"github.com/agenticgokit/traceval/internal/transcript"
)

// ToolCorrectnessScorer compares expected tool calls with the calls the
// agent made. The score is the share of expected calls that were matched.
// Ordered metrics count the longest in-order match.
type ToolCorrectnessScorer struct{}

// Score implements Scorer.
func (ToolCorrectnessScorer) Score(_ context.Context, tc transcript.TestCase, m MetricSpec) (Score, error) {
	expected := tc.ExpectedTools
	if len(expected) == 0 {
		return Score{Value: 1, Reason: "no tool calls expected"}, nil
	}

	same := func(a, b trace.ToolCall) bool {
		if a.Name != b.Name {
			return false
		}
		return !m.CheckArgs || trace.CanonicalArgs(a.InputParameters) == trace.CanonicalArgs(b.InputParameters)
	}

	var matched int
	var missing []string
	if m.Ordered {
		matched = longestCommonSubsequence(expected, tc.ToolsCalled, same)
		if matched < len(expected) {
			missing = append(missing, "order or calls differ")
		}
	} else {
		used := make([]bool, len(tc.ToolsCalled))
		for _, exp := range expected {
			found := false
			for i, called := range tc.ToolsCalled {
				if !used[i] && same(exp, called) {
					used[i] = true
					found = true
					break
				}
			}
			if found {
				matched++
			} else {
				missing = append(missing, exp.Name)
			}
		}
	}

	reason := fmt.Sprintf("matched %d/%d expected tool calls", matched, len(expected))
	if len(missing) > 0 {
		reason += "; missing: " + strings.Join(missing, ", ")
	}
	return Score{Value: float64(matched) / float64(len(expected)), Reason: reason}, nil
}

func longestCommonSubsequence(a, b []trace.ToolCall, same func(x, y trace.ToolCall) bool) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case same(a[i-1], b[j-1]):
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func formatTools(calls []trace.ToolCall) string {
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = fmt.Sprintf("- %s %s", c.Name, trace.CanonicalArgs(c.InputParameters))
	}
	return strings.Join(lines, "\n")
}
