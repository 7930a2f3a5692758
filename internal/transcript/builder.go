package transcript

import (
	"context"
	"errors"
	"fmt"

	"github.com/agenticgokit/traceval/internal/trace"
	"github.com/agenticgokit/traceval/internal/utils"
	"golang.org/x/sync/errgroup"
)

// Builder converts entries into test cases.
type Builder struct {
	walker *trace.Walker
	// currentDate, when set, is prepended to every context as the date the
	// judge should treat as "today".
	currentDate string
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithWalker sets the walker used to flatten traces.
func WithWalker(w *trace.Walker) BuilderOption {
	return func(b *Builder) { b.walker = w }
}

// WithCurrentDate prepends "Current date for evaluation: <date>" to contexts.
func WithCurrentDate(date string) BuilderOption {
	return func(b *Builder) { b.currentDate = date }
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{walker: trace.NewWalker(trace.DefaultMaxDepth)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// DateContext renders the evaluation-date context line.
func DateContext(date string) string {
	return "Current date for evaluation: " + date
}

// BuildTestCase builds a test case with default settings.
func BuildTestCase(e Entry) (TestCase, error) {
	return NewBuilder().Build(0, e)
}

// Build converts one entry. index is used to name the entry in errors.
func (b *Builder) Build(index int, e Entry) (TestCase, error) {
	var errs []error
	if e.Input == nil {
		errs = append(errs, entryError(index, e.ID, "input"))
	}
	if e.ActualOutput == nil {
		errs = append(errs, entryError(index, e.ID, "actual_output"))
	}
	if len(errs) > 0 {
		return TestCase{}, errors.Join(errs...)
	}

	input := *e.Input
	if e.ExtendedEvaluationInput != "" {
		input += "\n\n" + e.ExtendedEvaluationInput
	}

	items := make([]string, 0)
	if b.currentDate != "" {
		items = append(items, DateContext(b.currentDate))
	}
	items = append(items, trace.ToolDescriptions(e.Trace)...)
	items = append(items, b.walker.Context(e.Trace)...)

	expected := make([]trace.ToolCall, 0, len(e.ExpectedToolCalls))
	for _, tc := range e.ExpectedToolCalls {
		expected = append(expected, trace.ToolCall{Name: tc.Function, InputParameters: tc.Args})
	}

	return TestCase{
		Input:          input,
		ActualOutput:   *e.ActualOutput,
		ExpectedOutput: e.ExpectedOutput,
		Context:        items,
		CompletionTime: e.CompletionTime,
		ExpectedTools:  expected,
		ToolsCalled:    b.walker.ToolCalls(e.Trace),
	}, nil
}

// BuildAll converts entries concurrently. The result has the same order as
// entries. All entry errors are returned together.
func (b *Builder) BuildAll(ctx context.Context, entries []Entry, concurrency int) ([]TestCase, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	cases := make([]TestCase, len(entries))
	entryErrs := make([]error, len(entries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cases[i], entryErrs[i] = b.Build(i, entries[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := joinErrors(entryErrs); err != nil {
		return nil, fmt.Errorf("failed to build test cases: %w", err)
	}
	return cases, nil
}

func entryError(index int, id, field string) error {
	path := utils.FieldPath("testEntries", index, field)
	msg := "is required"
	if id != "" {
		msg = fmt.Sprintf("is required (entry %q)", id)
	}
	return utils.NewValidationError(path, msg)
}
