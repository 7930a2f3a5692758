package eval

import (
	"time"

	"github.com/agenticgokit/traceval/internal/analysis"
	"github.com/agenticgokit/traceval/internal/calibration"
	"github.com/agenticgokit/traceval/internal/config"
	"github.com/agenticgokit/traceval/internal/judge"
	"github.com/agenticgokit/traceval/internal/transcript"
)

// Confidence levels attached to a run.
const (
	ConfidenceNormal = "normal"
	ConfidenceLow    = "low"
)

// Case pairs an input entry with its test case and verdict.
type Case struct {
	Entry    transcript.Entry
	TestCase transcript.TestCase
	Result   judge.CaseResult
	// Judged is false when the engine returned no result for this case.
	Judged bool
}

// Passed reports whether the case was judged and every metric passed.
func (c Case) Passed() bool {
	return c.Judged && c.Result.Success
}

// MetricStats summarises one metric over the main batch.
type MetricStats struct {
	Name      string  `json:"name"`
	Average   float64 `json:"average"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Threshold float64 `json:"threshold"`
	PassRate  float64 `json:"pass_rate"`
	Count     int     `json:"count"`
}

// Healthy reports whether at least 70% of cases passed the metric.
func (m MetricStats) Healthy() bool {
	return m.PassRate >= 70
}

// RunResult is everything a single evaluation produced.
type RunResult struct {
	Report      *transcript.Report
	Cases       []Case
	Metrics     []MetricStats
	Calibration *calibration.Summary
	Analysis    analysis.Result
	Confidence  string

	TotalTests  int
	PassedTests int
	FailedTests int

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// AllPassed returns true if all tests passed.
func (r *RunResult) AllPassed() bool {
	return r.FailedTests == 0
}

// PassRate returns the pass rate as a percentage.
func (r *RunResult) PassRate() float64 {
	if r.TotalTests == 0 {
		return 0
	}
	return float64(r.PassedTests) / float64(r.TotalTests) * 100
}

// ExperimentResult is the outcome of one experiment in a comparison.
type ExperimentResult struct {
	Experiment config.Experiment
	Result     *RunResult
	// Skipped is set when the report file does not exist.
	Skipped bool
	Err     error
}

// Comparison holds every experiment result and the best performer.
type Comparison struct {
	Calibration *calibration.Summary
	Experiments []ExperimentResult
	// Best indexes Experiments; -1 when nothing was evaluated.
	Best int
}

// BestResult returns the best performing experiment.
func (c *Comparison) BestResult() (ExperimentResult, bool) {
	if c.Best < 0 || c.Best >= len(c.Experiments) {
		return ExperimentResult{}, false
	}
	return c.Experiments[c.Best], true
}
