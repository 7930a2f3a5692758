// Package analysis breaks evaluation results down by task type and tallies
// heuristic failure signals found in the traces. Nothing here affects
// whether a case passed.
package analysis

import (
	"math"
	"sort"
	"strings"

	"github.com/agenticgokit/traceval/internal/config"
	"github.com/agenticgokit/traceval/internal/judge"
	"github.com/agenticgokit/traceval/internal/transcript"
)

// Category summarises the entries of one task type.
type Category struct {
	TaskType        string   `json:"-"`
	N               int      `json:"n"`
	Passed          int      `json:"passed"`
	PassRatePercent float64  `json:"pass_rate_percent"`
	AvgStepsSuccess float64  `json:"avg_steps_success"`
	CommonErrors    []string `json:"common_errors"`
}

// FailureCounts tallies detector hits across all entries.
type FailureCounts struct {
	GoalDrifting     int `json:"goal_drifting_count"`
	Loops            int `json:"loop_count"`
	JSONErrors       int `json:"json_error_count"`
	FaithfulnessFail int `json:"faithfulness_fail"`
}

// Result is the output of Analyze. Categories are in order of first
// appearance.
type Result struct {
	Categories []Category
	Failures   FailureCounts
}

// Analyzer runs the breakdown.
type Analyzer struct {
	cfg config.AnalysisConfig
}

// New creates an Analyzer.
func New(cfg config.AnalysisConfig) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Analyze groups entries by task type. verdicts maps entry IDs to judged
// results; an entry without a verdict counts as failed.
func (a *Analyzer) Analyze(entries []transcript.Entry, verdicts map[string]judge.CaseResult, metrics []judge.MetricSpec) Result {
	var res Result

	faith, hasFaith := FaithfulnessMetric(metrics)
	threshold := faith.Threshold
	if threshold <= 0 {
		threshold = a.cfg.FaithfulnessThreshold
	}

	type group struct {
		cat    Category
		steps  int
		failed []transcript.Entry
	}
	var order []string
	groups := make(map[string]*group)

	for _, e := range entries {
		taskType := e.TaskType
		if taskType == "" {
			taskType = transcript.DefaultTaskType
		}
		g, ok := groups[taskType]
		if !ok {
			g = &group{cat: Category{TaskType: taskType}}
			groups[taskType] = g
			order = append(order, taskType)
		}
		g.cat.N++

		r, judged := verdicts[e.ID]
		if judged && r.Success {
			g.cat.Passed++
		} else {
			g.failed = append(g.failed, e)
		}
		g.steps += SuccessfulSteps(e.Trace)

		if GoalDrift(e.Trace, a.cfg.GoalDriftIterations) {
			res.Failures.GoalDrifting++
		}
		if Loop(e.Trace) {
			res.Failures.Loops++
		}
		if JSONError(e.Trace) {
			res.Failures.JSONErrors++
		}
		if judged && hasFaith && FaithfulnessFailed(r, faith.Name, threshold) {
			res.Failures.FaithfulnessFail++
		}
	}

	for _, name := range order {
		g := groups[name]
		g.cat.PassRatePercent = Round(float64(g.cat.Passed)/float64(g.cat.N)*100, 2)
		g.cat.AvgStepsSuccess = Round(float64(g.steps)/float64(g.cat.N), 2)
		g.cat.CommonErrors = CommonErrors(g.failed, a.cfg.CommonErrorLimit, a.cfg.ErrorMessageMaxLen)
		res.Categories = append(res.Categories, g.cat)
	}
	return res
}

// CommonErrors returns up to limit of the most frequent trace errors, each
// reduced to its first line and at most maxLen characters. Ties keep the
// order of first occurrence.
func CommonErrors(entries []transcript.Entry, limit, maxLen int) []string {
	type count struct {
		msg string
		n   int
	}
	var counts []count
	index := make(map[string]int)
	for _, e := range entries {
		if e.Trace == nil || e.Trace.Error == "" {
			continue
		}
		msg := simplify(e.Trace.Error, maxLen)
		if i, ok := index[msg]; ok {
			counts[i].n++
			continue
		}
		index[msg] = len(counts)
		counts = append(counts, count{msg: msg, n: 1})
	}

	sort.SliceStable(counts, func(i, j int) bool { return counts[i].n > counts[j].n })

	out := make([]string, 0, limit)
	for i := 0; i < len(counts) && i < limit; i++ {
		out = append(out, counts[i].msg)
	}
	return out
}

func simplify(msg string, maxLen int) string {
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	if r := []rune(msg); maxLen > 0 && len(r) > maxLen {
		msg = string(r[:maxLen])
	}
	return msg
}

// Round rounds f to the given number of decimal places.
func Round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}
