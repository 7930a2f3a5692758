// Package judge scores test cases against metric definitions. Engine is the
// boundary the rest of the evaluator depends on; Local and Remote are its
// implementations.
package judge

import (
	"context"

	"github.com/agenticgokit/traceval/internal/transcript"
)

// Kind selects how a metric is scored.
type Kind string

const (
	// KindLLMRubric asks an LLM to score the case against evaluation steps.
	KindLLMRubric Kind = "llm_rubric"
	// KindToolCorrectness compares expected tools with tools called.
	KindToolCorrectness Kind = "tool_correctness"
	// KindEmbeddingSimilarity compares actual and expected output embeddings.
	KindEmbeddingSimilarity Kind = "embedding_similarity"
)

// Param names a test case field a rubric may look at.
type Param string

const (
	ParamInput          Param = "input"
	ParamActualOutput   Param = "actual_output"
	ParamExpectedOutput Param = "expected_output"
	ParamContext        Param = "context"
	ParamExpectedTools  Param = "expected_tools"
	ParamToolsCalled    Param = "tools_called"
)

// MetricSpec defines one metric.
type MetricSpec struct {
	Name            string   `yaml:"name" json:"name"`
	Kind            Kind     `yaml:"kind" json:"kind"`
	Threshold       float64  `yaml:"threshold" json:"threshold"`
	Criteria        string   `yaml:"criteria,omitempty" json:"criteria,omitempty"`
	EvaluationSteps []string `yaml:"evaluation_steps,omitempty" json:"evaluation_steps,omitempty"`
	Params          []Param  `yaml:"params,omitempty" json:"params,omitempty"`

	// Tool correctness options.
	CheckArgs bool `yaml:"check_args,omitempty" json:"check_args,omitempty"`
	Ordered   bool `yaml:"ordered,omitempty" json:"ordered,omitempty"`
}

// MetricVerdict is the outcome of one metric on one case.
type MetricVerdict struct {
	Metric    string  `json:"metric"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Passed    bool    `json:"passed"`
	Reason    string  `json:"reason,omitempty"`
}

// CaseResult holds all verdicts for one submitted case. Index is the
// position of the case in the submitted batch; results may come back in
// any order.
type CaseResult struct {
	Index        int             `json:"index"`
	Input        string          `json:"input"`
	ActualOutput string          `json:"actual_output"`
	Verdicts     []MetricVerdict `json:"verdicts"`
	Success      bool            `json:"success"`
}

// Key returns the content key of the judged case.
func (r CaseResult) Key() transcript.Key {
	return transcript.Key{Input: r.Input, ActualOutput: r.ActualOutput}
}

// Verdict returns the verdict for the named metric.
func (r CaseResult) Verdict(metric string) (MetricVerdict, bool) {
	for _, v := range r.Verdicts {
		if v.Metric == metric {
			return v, true
		}
	}
	return MetricVerdict{}, false
}

// Engine judges a batch of cases. A non-nil error means the whole batch
// failed.
type Engine interface {
	Evaluate(ctx context.Context, cases []transcript.TestCase, metrics []MetricSpec) ([]CaseResult, error)
}

// Score is a raw scorer output in [0, 1].
type Score struct {
	Value  float64
	Reason string
}

// Scorer scores one case on one metric.
type Scorer interface {
	Score(ctx context.Context, tc transcript.TestCase, metric MetricSpec) (Score, error)
}

// NewVerdict applies the metric threshold to a score.
func NewVerdict(metric MetricSpec, s Score) MetricVerdict {
	value := clamp(s.Value)
	return MetricVerdict{
		Metric:    metric.Name,
		Score:     value,
		Threshold: metric.Threshold,
		Passed:    value >= metric.Threshold,
		Reason:    s.Reason,
	}
}

// AllPassed reports whether every verdict passed. An empty list passes.
func AllPassed(verdicts []MetricVerdict) bool {
	for _, v := range verdicts {
		if !v.Passed {
			return false
		}
	}
	return true
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
