package eval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/agenticgokit/traceval/internal/calibration"
	"github.com/agenticgokit/traceval/internal/config"
	"github.com/agenticgokit/traceval/internal/judge"
	"github.com/agenticgokit/traceval/internal/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = "testdata/report.json"

// fakeEngine scores each case with score(tc) on every metric and returns
// the results in reverse order.
type fakeEngine struct {
	score func(tc transcript.TestCase) float64
	fail  func(cases []transcript.TestCase) error
	calls atomic.Int32
}

func (f *fakeEngine) Evaluate(_ context.Context, cases []transcript.TestCase, metrics []judge.MetricSpec) ([]judge.CaseResult, error) {
	f.calls.Add(1)
	if f.fail != nil {
		if err := f.fail(cases); err != nil {
			return nil, err
		}
	}
	out := make([]judge.CaseResult, 0, len(cases))
	for i := len(cases) - 1; i >= 0; i-- {
		tc := cases[i]
		var verdicts []judge.MetricVerdict
		for _, m := range metrics {
			verdicts = append(verdicts, judge.NewVerdict(m, judge.Score{Value: f.score(tc)}))
		}
		out = append(out, judge.CaseResult{
			Index:        i,
			Input:        tc.Input,
			ActualOutput: tc.ActualOutput,
			Verdicts:     verdicts,
			Success:      judge.AllPassed(verdicts),
		})
	}
	return out, nil
}

func nonEmptyOutput(tc transcript.TestCase) float64 {
	if tc.ActualOutput == "" {
		return 0.1
	}
	return 0.9
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Calibration.Enabled = false
	return cfg
}

func faithfulnessOnly() []judge.MetricSpec {
	return []judge.MetricSpec{{Name: "Faithfulness (to context)", Kind: judge.KindLLMRubric, Threshold: 0.7}}
}

func TestRunJoinsVerdictsByIndex(t *testing.T) {
	engine := &fakeEngine{score: nonEmptyOutput}
	r := NewRunner(testConfig(), engine, faithfulnessOnly(), nil)

	res, err := r.Run(context.Background(), fixture)
	require.NoError(t, err)

	require.Len(t, res.Cases, 3)
	assert.Equal(t, "deadline-1", res.Cases[0].Entry.ID)
	assert.True(t, res.Cases[0].Passed())
	assert.Equal(t, 0, res.Cases[0].Result.Index)
	assert.Equal(t, "calendar-1", res.Cases[1].Entry.ID)
	assert.False(t, res.Cases[1].Passed())
	assert.True(t, res.Cases[2].Passed())

	assert.Equal(t, 3, res.TotalTests)
	assert.Equal(t, 2, res.PassedTests)
	assert.Equal(t, 1, res.FailedTests)
	assert.InDelta(t, 66.67, res.PassRate(), 0.01)
	assert.Equal(t, ConfidenceNormal, res.Confidence)
	assert.Nil(t, res.Calibration)
	assert.Equal(t, "3f2a9c1", res.Report.GitHash)
	assert.Equal(t, int32(1), engine.calls.Load())
}

func TestRunBuildsToolsAndContext(t *testing.T) {
	r := NewRunner(testConfig(), &fakeEngine{score: nonEmptyOutput}, faithfulnessOnly(), nil)

	res, err := r.Run(context.Background(), fixture)
	require.NoError(t, err)

	tc := res.Cases[0].TestCase
	require.Len(t, tc.ToolsCalled, 1)
	assert.Equal(t, "moodle.get_upcoming_assignments", tc.ToolsCalled[0].Name)
	assert.Equal(t, tc.ExpectedTools[0].Name, tc.ToolsCalled[0].Name)
	assert.Equal(t, tc.ExpectedTools[0].InputParameters, tc.ToolsCalled[0].InputParameters)
	assert.Contains(t, tc.Context, "Übungsblatt 1 due 2025-12-14T23:59:00Z")
	assert.NotContains(t, tc.Context[0], "Current date for evaluation")
}

func TestRunDateContext(t *testing.T) {
	cfg := testConfig()
	cfg.Eval.DateContext = true
	r := NewRunner(cfg, &fakeEngine{score: nonEmptyOutput}, faithfulnessOnly(), nil)

	res, err := r.Run(context.Background(), fixture)
	require.NoError(t, err)
	assert.Equal(t, "Current date for evaluation: 2025-12-10", res.Cases[0].TestCase.Context[0])
}

func TestRunAnalysis(t *testing.T) {
	r := NewRunner(testConfig(), &fakeEngine{score: nonEmptyOutput}, faithfulnessOnly(), nil)

	res, err := r.Run(context.Background(), fixture)
	require.NoError(t, err)

	require.Len(t, res.Analysis.Categories, 2)
	deadline := res.Analysis.Categories[0]
	assert.Equal(t, "deadline_lookup", deadline.TaskType)
	assert.Equal(t, 2, deadline.N)
	assert.Equal(t, 2, deadline.Passed)
	assert.Equal(t, 1.0, deadline.AvgStepsSuccess)

	calendar := res.Analysis.Categories[1]
	assert.Equal(t, []string{"Unexpected token < in JSON"}, calendar.CommonErrors)

	assert.Equal(t, 1, res.Analysis.Failures.Loops)
	assert.Equal(t, 1, res.Analysis.Failures.JSONErrors)
	assert.Equal(t, 1, res.Analysis.Failures.FaithfulnessFail)
}

func TestRunJudgeFailureIsFatal(t *testing.T) {
	boom := errors.New("rate limited")
	engine := &fakeEngine{score: nonEmptyOutput, fail: func([]transcript.TestCase) error { return boom }}
	r := NewRunner(testConfig(), engine, faithfulnessOnly(), nil)

	_, err := r.Run(context.Background(), fixture)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "judging failed")
}

func TestRunMissingReport(t *testing.T) {
	r := NewRunner(testConfig(), &fakeEngine{score: nonEmptyOutput}, faithfulnessOnly(), nil)
	_, err := r.Run(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestRunCalibrationFailOpen(t *testing.T) {
	cfg := config.Default()
	engine := &fakeEngine{score: func(transcript.TestCase) float64 { return 0.9 }}
	r := NewRunner(cfg, engine, faithfulnessOnly(), nil)

	res, err := r.Run(context.Background(), fixture)
	require.NoError(t, err)

	require.NotNil(t, res.Calibration)
	assert.False(t, res.Calibration.Valid)
	assert.Equal(t, ConfidenceLow, res.Confidence)
	assert.Equal(t, 3, res.TotalTests)
	assert.Equal(t, int32(2), engine.calls.Load())
}

func TestRunCalibrationJudgeErrorIsFatal(t *testing.T) {
	engine := &fakeEngine{
		score: nonEmptyOutput,
		fail: func(cases []transcript.TestCase) error {
			if len(cases) == 15 {
				return errors.New("judge down during calibration")
			}
			return nil
		},
	}
	r := NewRunner(config.Default(), engine, faithfulnessOnly(), nil)

	res, err := r.Run(context.Background(), fixture)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "calibration judging failed")
	assert.Contains(t, err.Error(), "judge down during calibration")
	assert.Equal(t, int32(1), engine.calls.Load())
}

func TestRunRejectsBadReportBeforeCalibrating(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"testEntries": [{"input": "hi"}]}`), 0o644))

	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(t.TempDir(), "missing.json")},
		{"invalid", bad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{score: nonEmptyOutput}
			r := NewRunner(config.Default(), engine, faithfulnessOnly(), nil)

			_, err := r.Run(context.Background(), tt.path)
			require.Error(t, err)
			assert.Zero(t, engine.calls.Load())
		})
	}
}

func TestRunCalibrationValid(t *testing.T) {
	cfg := config.Default()
	positives := make(map[transcript.Key]bool)
	for _, c := range calibration.DefaultCatalog(cfg.Eval.CurrentDate) {
		positives[c.TestCase.Key()] = c.Positive
	}
	engine := &fakeEngine{score: func(tc transcript.TestCase) float64 {
		if ok, known := positives[tc.Key()]; known && !ok {
			return 0.2
		}
		return 0.95
	}}
	r := NewRunner(cfg, engine, faithfulnessOnly(), nil)

	res, err := r.Run(context.Background(), fixture)
	require.NoError(t, err)
	require.NotNil(t, res.Calibration)
	assert.True(t, res.Calibration.Valid)
	assert.Equal(t, ConfidenceNormal, res.Confidence)
}

func TestRunInvalidExtraCalibrationCases(t *testing.T) {
	cfg := config.Default()
	cfg.Calibration.ExtraCasesFile = filepath.Join(t.TempDir(), "missing.yaml")
	r := NewRunner(cfg, &fakeEngine{score: nonEmptyOutput}, faithfulnessOnly(), nil)

	_, err := r.Run(context.Background(), fixture)
	assert.ErrorContains(t, err, "invalid calibration set")
}

func TestJoinRejectsBadIndexes(t *testing.T) {
	entries := []transcript.Entry{{ID: "a"}}
	cases := []transcript.TestCase{{}}

	_, err := join(entries, cases, []judge.CaseResult{{Index: 3}})
	assert.ErrorContains(t, err, "unknown case index 3")

	_, err = join(entries, cases, []judge.CaseResult{{Index: 0}, {Index: 0}})
	assert.ErrorContains(t, err, "more than one result")

	got, err := join(entries, cases, nil)
	require.NoError(t, err)
	assert.False(t, got[0].Judged)
	assert.False(t, got[0].Passed())
}

func TestMetricSummary(t *testing.T) {
	metrics := []judge.MetricSpec{
		{Name: "Task Completion", Threshold: 0.7},
		{Name: "Unused", Threshold: 0.5},
	}
	mk := func(score float64) Case {
		return Case{Judged: true, Result: judge.CaseResult{Verdicts: []judge.MetricVerdict{{Metric: "Task Completion", Score: score}}}}
	}
	stats := MetricSummary([]Case{mk(0.9), mk(0.5), mk(0.8), {}}, metrics)

	require.Len(t, stats, 1)
	s := stats[0]
	assert.Equal(t, "Task Completion", s.Name)
	assert.Equal(t, 0.733, s.Average)
	assert.Equal(t, 0.5, s.Min)
	assert.Equal(t, 0.9, s.Max)
	assert.Equal(t, 66.67, s.PassRate)
	assert.Equal(t, 3, s.Count)
	assert.False(t, s.Healthy())
}

func TestCompare(t *testing.T) {
	engine := &fakeEngine{score: func(tc transcript.TestCase) float64 {
		if strings.Contains(tc.ActualOutput, "Übungsblatt") {
			return 0.9
		}
		return 0.1
	}}
	r := NewRunner(config.Default(), engine, faithfulnessOnly(), nil)

	experiments := []config.Experiment{
		{Name: "baseline", ReportPath: fixture},
		{Name: "missing", ReportPath: filepath.Join(t.TempDir(), "nope.json")},
	}
	cmp, err := r.Compare(context.Background(), experiments)
	require.NoError(t, err)

	require.Len(t, cmp.Experiments, 2)
	assert.False(t, cmp.Experiments[0].Skipped)
	require.NotNil(t, cmp.Experiments[0].Result)
	assert.True(t, cmp.Experiments[1].Skipped)
	assert.Nil(t, cmp.Experiments[1].Result)

	best, ok := cmp.BestResult()
	require.True(t, ok)
	assert.Equal(t, "baseline", best.Experiment.Name)
	assert.NotNil(t, cmp.Calibration)
	// One calibration batch shared by all experiments plus one main batch.
	assert.Equal(t, int32(2), engine.calls.Load())
}

func TestCompareNothingEvaluated(t *testing.T) {
	r := NewRunner(testConfig(), &fakeEngine{score: nonEmptyOutput}, faithfulnessOnly(), nil)
	cmp, err := r.Compare(context.Background(), []config.Experiment{{Name: "x", ReportPath: "does/not/exist.json"}})
	require.NoError(t, err)

	_, ok := cmp.BestResult()
	assert.False(t, ok)
}
