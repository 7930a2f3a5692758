package judge

import (
	"context"
	"fmt"

	"github.com/agenticgokit/traceval/internal/transcript"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/agenticgokit/traceval/internal/judge"

// Local scores cases in-process, dispatching each metric to the scorer
// registered for its kind.
type Local struct {
	scorers     map[Kind]Scorer
	concurrency int
	logger      *zerolog.Logger
}

// NewLocal creates a local engine running at most concurrency scorer calls
// at once.
func NewLocal(scorers map[Kind]Scorer, concurrency int, logger *zerolog.Logger) *Local {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Local{scorers: scorers, concurrency: concurrency, logger: logger}
}

// Evaluate implements Engine. The first scorer failure cancels the batch.
func (l *Local) Evaluate(ctx context.Context, cases []transcript.TestCase, metrics []MetricSpec) ([]CaseResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "judge.batch")
	defer span.End()
	span.SetAttributes(
		attribute.Int("judge.cases", len(cases)),
		attribute.Int("judge.metrics", len(metrics)),
		attribute.String("judge.engine", "local"),
	)

	for _, m := range metrics {
		if _, ok := l.scorers[m.Kind]; !ok {
			err := fmt.Errorf("no scorer registered for metric %q (kind %q)", m.Name, m.Kind)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	results := make([]CaseResult, len(cases))
	for i, tc := range cases {
		results[i] = CaseResult{
			Index:        i,
			Input:        tc.Input,
			ActualOutput: tc.ActualOutput,
			Verdicts:     make([]MetricVerdict, len(metrics)),
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i := range cases {
		for j := range metrics {
			g.Go(func() error {
				m := metrics[j]
				score, err := l.scorers[m.Kind].Score(gctx, cases[i], m)
				if err != nil {
					return fmt.Errorf("metric %q on case %d: %w", m.Name, i, err)
				}
				results[i].Verdicts[j] = NewVerdict(m, score)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("judging failed: %w", err)
	}

	passed := 0
	for i := range results {
		results[i].Success = AllPassed(results[i].Verdicts)
		if results[i].Success {
			passed++
		}
	}
	span.SetAttributes(attribute.Int("judge.passed", passed))
	l.logger.Debug().Int("cases", len(cases)).Int("passed", passed).Msg("judged batch")
	return results, nil
}
