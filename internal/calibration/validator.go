package calibration

import (
	"context"
	"fmt"
	"math"

	"github.com/agenticgokit/traceval/internal/judge"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Separation bands.
const (
	BandStrong     = "strong"
	BandAcceptable = "acceptable"
	BandWeak       = "weak"
)

// Band classifies a metric's separation between control groups.
func Band(separation float64) string {
	switch {
	case separation > 0.7:
		return BandStrong
	case separation > 0.5:
		return BandAcceptable
	}
	return BandWeak
}

// Bar is the minimum share of correctly classified controls.
type Bar struct {
	PositivePassRate float64
	NegativeFailRate float64
}

// DefaultBar is the standard acceptance bar.
var DefaultBar = Bar{PositivePassRate: 0.8, NegativeFailRate: 0.8}

// PositiveControls summarises the positive group.
type PositiveControls struct {
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	PassRate float64 `json:"pass_rate"`
}

// NegativeControls summarises the negative group.
type NegativeControls struct {
	Total    int     `json:"total"`
	Failed   int     `json:"failed"`
	FailRate float64 `json:"fail_rate"`
}

// Separation compares a metric's mean score across groups.
type Separation struct {
	PositiveAvg float64 `json:"positive_avg"`
	NegativeAvg float64 `json:"negative_avg"`
	Separation  float64 `json:"separation"`
}

// Band classifies s.
func (s Separation) Band() string {
	return Band(s.Separation)
}

// CaseOutcome is the judged outcome of one control case.
type CaseOutcome struct {
	Name     string                `json:"name"`
	Positive bool                  `json:"positive"`
	Passed   bool                  `json:"passed"`
	Correct  bool                  `json:"correct"`
	Verdicts []judge.MetricVerdict `json:"verdicts,omitempty"`
}

// Summary is the calibration result.
type Summary struct {
	PositiveControls  PositiveControls      `json:"positive_controls"`
	NegativeControls  NegativeControls      `json:"negative_controls"`
	MetricsSeparation map[string]Separation `json:"metrics_separation"`
	Valid             bool                  `json:"calibration_valid"`

	// MetricOrder lists metric names in definition order.
	MetricOrder []string      `json:"-"`
	Outcomes    []CaseOutcome `json:"-"`
	Unmatched   int           `json:"-"`
}

// Validator runs a calibration set through a judging engine.
type Validator struct {
	engine judge.Engine
	bar    Bar
	logger *zerolog.Logger
}

// NewValidator creates a validator.
func NewValidator(engine judge.Engine, bar Bar, logger *zerolog.Logger) *Validator {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Validator{engine: engine, bar: bar, logger: logger}
}

// Validate judges every case in set and compares the outcome with the
// expected one. A judge failure is returned as an error; a calibration
// below the bar is reported through Summary.Valid.
func (v *Validator) Validate(ctx context.Context, set *Set, metrics []judge.MetricSpec) (*Summary, error) {
	ctx, span := otel.Tracer("github.com/agenticgokit/traceval/internal/calibration").Start(ctx, "calibration.validate")
	defer span.End()

	results, err := v.engine.Evaluate(ctx, set.TestCases(), metrics)
	if err != nil {
		return nil, fmt.Errorf("calibration judging failed: %w", err)
	}

	summary := Summarize(set, results, metrics, v.bar)
	if summary.Unmatched > 0 {
		v.logger.Warn().Int("unmatched", summary.Unmatched).Msg("judge returned results for unknown calibration cases")
	}
	span.SetAttributes(
		attribute.Int("calibration.positive_passed", summary.PositiveControls.Passed),
		attribute.Int("calibration.negative_failed", summary.NegativeControls.Failed),
		attribute.Bool("calibration.valid", summary.Valid),
	)
	return summary, nil
}

// Summarize joins results to set by content key and computes the summary.
func Summarize(set *Set, results []judge.CaseResult, metrics []judge.MetricSpec, bar Bar) *Summary {
	pos, neg := set.Counts()
	s := &Summary{MetricsSeparation: make(map[string]Separation)}

	posScores := make(map[string][]float64)
	negScores := make(map[string][]float64)
	for _, r := range results {
		c, ok := set.Lookup(r.Key())
		if !ok {
			s.Unmatched++
			continue
		}

		correct := r.Success == c.Positive
		switch {
		case c.Positive && r.Success:
			s.PositiveControls.Passed++
		case !c.Positive && !r.Success:
			s.NegativeControls.Failed++
		}
		s.Outcomes = append(s.Outcomes, CaseOutcome{
			Name:     c.Name,
			Positive: c.Positive,
			Passed:   r.Success,
			Correct:  correct,
			Verdicts: r.Verdicts,
		})

		for _, vd := range r.Verdicts {
			if c.Positive {
				posScores[vd.Metric] = append(posScores[vd.Metric], vd.Score)
			} else {
				negScores[vd.Metric] = append(negScores[vd.Metric], vd.Score)
			}
		}
	}

	for _, m := range metrics {
		p, n := posScores[m.Name], negScores[m.Name]
		if len(p) == 0 || len(n) == 0 {
			continue
		}
		pAvg, nAvg := mean(p), mean(n)
		s.MetricsSeparation[m.Name] = Separation{
			PositiveAvg: round(pAvg, 3),
			NegativeAvg: round(nAvg, 3),
			Separation:  round(pAvg-nAvg, 3),
		}
		s.MetricOrder = append(s.MetricOrder, m.Name)
	}

	s.PositiveControls.Total = pos
	s.PositiveControls.PassRate = round(percent(s.PositiveControls.Passed, pos), 2)
	s.NegativeControls.Total = neg
	s.NegativeControls.FailRate = round(percent(s.NegativeControls.Failed, neg), 2)
	s.Valid = float64(s.PositiveControls.Passed) >= bar.PositivePassRate*float64(pos) &&
		float64(s.NegativeControls.Failed) >= bar.NegativeFailRate*float64(neg)
	return s
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}
