package calibration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agenticgokit/traceval/internal/judge"
	"github.com/agenticgokit/traceval/internal/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedEngine scores each case with a fixed value chosen by its key.
type scriptedEngine struct {
	score func(tc transcript.TestCase) float64
	err   error
	extra []judge.CaseResult
}

func (e *scriptedEngine) Evaluate(_ context.Context, cases []transcript.TestCase, metrics []judge.MetricSpec) ([]judge.CaseResult, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([]judge.CaseResult, 0, len(cases))
	for i, tc := range cases {
		var verdicts []judge.MetricVerdict
		for _, m := range metrics {
			verdicts = append(verdicts, judge.NewVerdict(m, judge.Score{Value: e.score(tc)}))
		}
		out = append(out, judge.CaseResult{
			Index:        i,
			Input:        tc.Input,
			ActualOutput: tc.ActualOutput,
			Verdicts:     verdicts,
			Success:      judge.AllPassed(verdicts),
		})
	}
	return append(out, e.extra...), nil
}

func testMetrics() []judge.MetricSpec {
	return []judge.MetricSpec{{Name: "Task Completion", Kind: judge.KindLLMRubric, Threshold: 0.7}}
}

func mustSet(t *testing.T, cases []Case) *Set {
	t.Helper()
	s, err := NewSet(cases)
	require.NoError(t, err)
	return s
}

func TestDefaultCatalog(t *testing.T) {
	cases := DefaultCatalog("2025-12-10")
	require.Len(t, cases, 15)

	s := mustSet(t, cases)
	pos, neg := s.Counts()
	assert.Equal(t, 4, pos)
	assert.Equal(t, 11, neg)

	for _, c := range cases {
		assert.Equal(t, "Current date for evaluation: 2025-12-10", c.TestCase.Context[0], c.Name)
		assert.NotNil(t, c.TestCase.ToolsCalled, c.Name)
		assert.NotNil(t, c.TestCase.ExpectedTools, c.Name)
	}
}

func TestNewSetDuplicateKey(t *testing.T) {
	cases := DefaultCatalog("2025-12-10")
	dup := cases[0]
	dup.Name = "POSITIVE Z: Copy"
	cases = append(cases, dup)

	_, err := NewSet(cases)
	var dupErr *DuplicateKeyError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "POSITIVE A: Perfect Answer", dupErr.First)
	assert.Equal(t, "POSITIVE Z: Copy", dupErr.Second)
}

func TestNewSetEmptyGroup(t *testing.T) {
	var positives []Case
	for _, c := range DefaultCatalog("2025-12-10") {
		if c.Positive {
			positives = append(positives, c)
		}
	}
	_, err := NewSet(positives)
	assert.ErrorIs(t, err, ErrEmptyGroup)

	_, err = NewSet(nil)
	assert.ErrorIs(t, err, ErrEmptyGroup)
}

func TestBand(t *testing.T) {
	assert.Equal(t, BandStrong, Band(0.75))
	assert.Equal(t, BandAcceptable, Band(0.7))
	assert.Equal(t, BandAcceptable, Band(0.6))
	assert.Equal(t, BandWeak, Band(0.5))
	assert.Equal(t, BandWeak, Band(-0.2))
}

func TestValidatePerfectSeparation(t *testing.T) {
	s := mustSet(t, DefaultCatalog("2025-12-10"))
	positive := make(map[transcript.Key]bool)
	for _, c := range s.Cases() {
		positive[c.TestCase.Key()] = c.Positive
	}
	engine := &scriptedEngine{score: func(tc transcript.TestCase) float64 {
		if positive[tc.Key()] {
			return 0.9
		}
		return 0.15
	}}

	summary, err := NewValidator(engine, DefaultBar, nil).Validate(context.Background(), s, testMetrics())
	require.NoError(t, err)

	assert.True(t, summary.Valid)
	assert.Equal(t, PositiveControls{Total: 4, Passed: 4, PassRate: 100}, summary.PositiveControls)
	assert.Equal(t, NegativeControls{Total: 11, Failed: 11, FailRate: 100}, summary.NegativeControls)

	sep := summary.MetricsSeparation["Task Completion"]
	assert.Equal(t, 0.9, sep.PositiveAvg)
	assert.Equal(t, 0.15, sep.NegativeAvg)
	assert.Equal(t, 0.75, sep.Separation)
	assert.Equal(t, BandStrong, sep.Band())
	assert.Equal(t, []string{"Task Completion"}, summary.MetricOrder)
	assert.Len(t, summary.Outcomes, 15)
	assert.Zero(t, summary.Unmatched)
}

func TestValidateBelowBar(t *testing.T) {
	s := mustSet(t, DefaultCatalog("2025-12-10"))
	engine := &scriptedEngine{score: func(transcript.TestCase) float64 { return 1 }}

	summary, err := NewValidator(engine, DefaultBar, nil).Validate(context.Background(), s, testMetrics())
	require.NoError(t, err)

	assert.False(t, summary.Valid)
	assert.Equal(t, 0, summary.NegativeControls.Failed)
	assert.Equal(t, 0.0, summary.MetricsSeparation["Task Completion"].Separation)
	for _, o := range summary.Outcomes {
		assert.Equal(t, o.Positive, o.Correct, o.Name)
	}
}

func TestSummarizeRates(t *testing.T) {
	s := mustSet(t, DefaultCatalog("2025-12-10"))
	failing := map[string]bool{
		"POSITIVE D: Complex Query Correct Reasoning": true,
		"NEGATIVE A: Hallucination":                   true,
		"NEGATIVE B: Format Violation":                true,
	}
	byKey := make(map[transcript.Key]string)
	for _, c := range s.Cases() {
		byKey[c.TestCase.Key()] = c.Name
	}
	engine := &scriptedEngine{score: func(tc transcript.TestCase) float64 {
		if failing[byKey[tc.Key()]] {
			return 0.2
		}
		return 0.8
	}}
	results, err := engine.Evaluate(context.Background(), s.TestCases(), testMetrics())
	require.NoError(t, err)

	summary := Summarize(s, results, testMetrics(), DefaultBar)
	assert.Equal(t, 3, summary.PositiveControls.Passed)
	assert.Equal(t, 75.0, summary.PositiveControls.PassRate)
	assert.Equal(t, 2, summary.NegativeControls.Failed)
	assert.Equal(t, 18.18, summary.NegativeControls.FailRate)
	assert.False(t, summary.Valid)
}

func TestValidateUnmatchedResults(t *testing.T) {
	s := mustSet(t, DefaultCatalog("2025-12-10"))
	engine := &scriptedEngine{
		score: func(transcript.TestCase) float64 { return 0.5 },
		extra: []judge.CaseResult{{Input: "unknown", ActualOutput: "unknown", Success: true}},
	}

	summary, err := NewValidator(engine, DefaultBar, nil).Validate(context.Background(), s, testMetrics())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Unmatched)
	assert.Len(t, summary.Outcomes, 15)
}

func TestValidateEngineError(t *testing.T) {
	s := mustSet(t, DefaultCatalog("2025-12-10"))
	boom := errors.New("judge unavailable")

	_, err := NewValidator(&scriptedEngine{err: boom}, DefaultBar, nil).Validate(context.Background(), s, testMetrics())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "calibration judging failed")
}

func TestSeparationNeedsBothGroups(t *testing.T) {
	s := mustSet(t, DefaultCatalog("2025-12-10"))
	var results []judge.CaseResult
	for i, c := range s.Cases() {
		if !c.Positive {
			continue
		}
		results = append(results, judge.CaseResult{
			Index: i, Input: c.TestCase.Input, ActualOutput: c.TestCase.ActualOutput, Success: true,
			Verdicts: []judge.MetricVerdict{{Metric: "Task Completion", Score: 1, Passed: true}},
		})
	}

	summary := Summarize(s, results, testMetrics(), DefaultBar)
	assert.Empty(t, summary.MetricsSeparation)
	assert.Equal(t, 4, summary.PositiveControls.Passed)
	assert.False(t, summary.Valid)
}

func TestLoadExtraCases(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cases.yaml")
	body := strings.Join([]string{
		"cases:",
		"  - name: \"NEGATIVE X: Wrong Course\"",
		"    positive: false",
		"    input: \"Wann ist die nächste Abgabe für Datenbanken?\"",
		"    actual_output: \"Die nächste Abgabe ist 'Übungsblatt 1' am 14. Dezember 2025.\"",
		"    context: [\"Course: Verteilte Systeme\"]",
		"    expected_tools:",
		"      - name: moodle.get_upcoming_assignments",
		"        args: {course_name: Datenbanken}",
		"    tools_called:",
		"      - name: moodle.get_upcoming_assignments",
		"        args: {course_name: Verteilte Systeme}",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cases, err := LoadExtraCases(path)
	require.NoError(t, err)
	require.Len(t, cases, 1)

	c := cases[0]
	assert.Equal(t, "NEGATIVE X: Wrong Course", c.Name)
	assert.False(t, c.Positive)
	assert.Nil(t, c.TestCase.ExpectedOutput)
	assert.Equal(t, []string{"Course: Verteilte Systeme"}, c.TestCase.Context)
	require.Len(t, c.TestCase.ToolsCalled, 1)
	assert.Equal(t, "Verteilte Systeme", c.TestCase.ToolsCalled[0].InputParameters["course_name"])

	s := mustSet(t, append(DefaultCatalog("2025-12-10"), cases...))
	_, neg := s.Counts()
	assert.Equal(t, 12, neg)
}

func TestLoadExtraCasesRequiresName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cases:\n  - input: x\n"), 0o644))

	_, err := LoadExtraCases(path)
	assert.ErrorContains(t, err, "name and input are required")
}
