// Package eval drives an evaluation run: load transcripts, build test
// cases, calibrate the judge, judge the batch and analyse the outcome.
package eval

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/agenticgokit/traceval/internal/analysis"
	"github.com/agenticgokit/traceval/internal/calibration"
	"github.com/agenticgokit/traceval/internal/config"
	"github.com/agenticgokit/traceval/internal/judge"
	"github.com/agenticgokit/traceval/internal/trace"
	"github.com/agenticgokit/traceval/internal/transcript"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/agenticgokit/traceval/internal/eval"

// Runner executes evaluations against one judging engine.
type Runner struct {
	cfg     config.Config
	engine  judge.Engine
	metrics []judge.MetricSpec
	walker  *trace.Walker
	logger  *zerolog.Logger
}

// NewRunner creates a runner.
func NewRunner(cfg config.Config, engine judge.Engine, metrics []judge.MetricSpec, logger *zerolog.Logger) *Runner {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Runner{
		cfg:     cfg,
		engine:  engine,
		metrics: metrics,
		walker:  trace.NewWalker(cfg.Trace.MaxDepth),
		logger:  logger,
	}
}

// Metrics returns the metric definitions used for judging.
func (r *Runner) Metrics() []judge.MetricSpec {
	return r.metrics
}

// CalibrationSet assembles the built-in control cases plus any configured
// extra cases.
func (r *Runner) CalibrationSet() (*calibration.Set, error) {
	cases := calibration.DefaultCatalog(r.cfg.Eval.CurrentDate)
	if path := r.cfg.Calibration.ExtraCasesFile; path != "" {
		extra, err := calibration.LoadExtraCases(path)
		if err != nil {
			return nil, err
		}
		cases = append(cases, extra...)
	}
	return calibration.NewSet(cases)
}

// Calibrate runs the control cases through the engine.
func (r *Runner) Calibrate(ctx context.Context) (*calibration.Summary, error) {
	set, err := r.CalibrationSet()
	if err != nil {
		return nil, fmt.Errorf("invalid calibration set: %w", err)
	}
	return r.validate(ctx, set)
}

func (r *Runner) validate(ctx context.Context, set *calibration.Set) (*calibration.Summary, error) {
	pos, neg := set.Counts()
	r.logger.Info().Int("positive", pos).Int("negative", neg).Msg("running calibration")

	bar := calibration.Bar{
		PositivePassRate: r.cfg.Calibration.PositivePassRateMin,
		NegativeFailRate: r.cfg.Calibration.NegativeFailRateMin,
	}
	return calibration.NewValidator(r.engine, bar, r.logger).Validate(ctx, set, r.metrics)
}

// CalibrateIfEnabled runs calibration when configured and returns nil
// otherwise. An invalid set and a failed judge call are both errors; a
// calibration below the bar is only logged.
func (r *Runner) CalibrateIfEnabled(ctx context.Context) (*calibration.Summary, error) {
	if !r.cfg.Calibration.Enabled {
		return nil, nil
	}
	summary, err := r.Calibrate(ctx)
	if err != nil {
		return nil, err
	}
	if !summary.Valid {
		r.logger.Warn().Msg("calibration below the acceptance bar, results may not be reliable")
	}
	return summary, nil
}

// Run evaluates the report at reportPath. The report is loaded and built
// first, so a bad report fails before any judge call; calibration then runs
// when enabled, ahead of the main batch.
func (r *Runner) Run(ctx context.Context, reportPath string) (*RunResult, error) {
	return r.evaluate(ctx, reportPath, nil, true)
}

// Evaluate judges the report at reportPath. cal is an already computed
// calibration summary, or nil.
func (r *Runner) Evaluate(ctx context.Context, reportPath string, cal *calibration.Summary) (*RunResult, error) {
	return r.evaluate(ctx, reportPath, cal, false)
}

func (r *Runner) evaluate(ctx context.Context, reportPath string, cal *calibration.Summary, calibrate bool) (*RunResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "eval.run")
	defer span.End()
	span.SetAttributes(attribute.String("eval.report", reportPath))

	result := &RunResult{StartTime: time.Now()}

	rep, err := transcript.LoadReport(reportPath, transcript.LoadOptions{MaxDepth: r.cfg.Trace.MaxDepth})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return nil, err
	}
	result.Report = rep
	r.logger.Info().Str("report", reportPath).Int("entries", len(rep.Entries)).Msg("loaded report")

	opts := []transcript.BuilderOption{transcript.WithWalker(r.walker)}
	if r.cfg.Eval.DateContext {
		opts = append(opts, transcript.WithCurrentDate(r.cfg.Eval.CurrentDate))
	}
	cases, err := transcript.NewBuilder(opts...).BuildAll(ctx, rep.Entries, r.cfg.Build.Concurrency)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build failed")
		return nil, err
	}

	if calibrate {
		if cal, err = r.CalibrateIfEnabled(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "calibration failed")
			return nil, err
		}
	}
	result.Calibration = cal
	result.Confidence = ConfidenceNormal
	if (cal == nil && r.cfg.Calibration.Enabled) || (cal != nil && !cal.Valid) {
		result.Confidence = ConfidenceLow
	}

	r.logger.Info().Int("cases", len(cases)).Int("metrics", len(r.metrics)).Msg("judging test cases")
	judged, err := r.engine.Evaluate(ctx, cases, r.metrics)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "judging failed")
		return nil, fmt.Errorf("judging failed: %w", err)
	}

	result.Cases, err = join(rep.Entries, cases, judged)
	if err != nil {
		return nil, err
	}

	verdicts := make(map[string]judge.CaseResult, len(result.Cases))
	for _, c := range result.Cases {
		result.TotalTests++
		if c.Passed() {
			result.PassedTests++
		} else {
			result.FailedTests++
		}
		if c.Judged {
			verdicts[c.Entry.ID] = c.Result
		}
	}

	result.Metrics = MetricSummary(result.Cases, r.metrics)
	result.Analysis = analysis.New(r.cfg.Analysis).Analyze(rep.Entries, verdicts, r.metrics)

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	span.SetAttributes(
		attribute.Int("eval.total", result.TotalTests),
		attribute.Int("eval.passed", result.PassedTests),
	)
	return result, nil
}

// join attaches each judged result to its entry by batch index.
func join(entries []transcript.Entry, cases []transcript.TestCase, judged []judge.CaseResult) ([]Case, error) {
	out := make([]Case, len(entries))
	for i := range entries {
		out[i] = Case{Entry: entries[i], TestCase: cases[i]}
	}
	for _, res := range judged {
		if res.Index < 0 || res.Index >= len(out) {
			return nil, fmt.Errorf("judge returned result for unknown case index %d", res.Index)
		}
		if out[res.Index].Judged {
			return nil, fmt.Errorf("judge returned more than one result for case index %d", res.Index)
		}
		out[res.Index].Result = res
		out[res.Index].Judged = true
	}
	return out, nil
}

// MetricSummary computes per-metric statistics in definition order.
// Metrics without any verdict are omitted.
func MetricSummary(cases []Case, metrics []judge.MetricSpec) []MetricStats {
	var out []MetricStats
	for _, m := range metrics {
		s := MetricStats{Name: m.Name, Threshold: m.Threshold, Min: math.Inf(1), Max: math.Inf(-1)}
		var sum float64
		passed := 0
		for _, c := range cases {
			v, ok := c.Result.Verdict(m.Name)
			if !c.Judged || !ok {
				continue
			}
			s.Count++
			sum += v.Score
			s.Min = math.Min(s.Min, v.Score)
			s.Max = math.Max(s.Max, v.Score)
			if v.Score >= m.Threshold {
				passed++
			}
		}
		if s.Count == 0 {
			continue
		}
		s.Average = analysis.Round(sum/float64(s.Count), 3)
		s.PassRate = analysis.Round(float64(passed)/float64(s.Count)*100, 2)
		out = append(out, s)
	}
	return out
}
