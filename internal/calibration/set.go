// Package calibration checks that the judging metrics separate known-good
// answers from known-bad ones before their verdicts are trusted.
package calibration

import (
	"errors"
	"fmt"
	"os"

	"github.com/agenticgokit/traceval/internal/trace"
	"github.com/agenticgokit/traceval/internal/transcript"
	"gopkg.in/yaml.v3"
)

// ErrEmptyGroup is returned when a set has no positive or no negative cases.
var ErrEmptyGroup = errors.New("calibration set needs at least one positive and one negative case")

// Case is a control case with a known expected outcome.
type Case struct {
	Name     string
	Positive bool
	TestCase transcript.TestCase
}

// DuplicateKeyError reports two cases sharing the same input and output.
type DuplicateKeyError struct {
	Key    transcript.Key
	First  string
	Second string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("calibration cases %q and %q share the same input and actual output", e.First, e.Second)
}

// Set is a validated collection of control cases. Judge results are joined
// back to cases by content key.
type Set struct {
	cases []Case
	byKey map[transcript.Key]int
	pos   int
	neg   int
}

// NewSet validates cases and indexes them by key.
func NewSet(cases []Case) (*Set, error) {
	s := &Set{cases: cases, byKey: make(map[transcript.Key]int, len(cases))}
	for i, c := range cases {
		key := c.TestCase.Key()
		if j, dup := s.byKey[key]; dup {
			return nil, &DuplicateKeyError{Key: key, First: cases[j].Name, Second: c.Name}
		}
		s.byKey[key] = i
		if c.Positive {
			s.pos++
		} else {
			s.neg++
		}
	}
	if s.pos == 0 || s.neg == 0 {
		return nil, fmt.Errorf("%w (have %d positive, %d negative)", ErrEmptyGroup, s.pos, s.neg)
	}
	return s, nil
}

// Cases returns the cases in catalog order.
func (s *Set) Cases() []Case {
	return s.cases
}

// TestCases returns the test cases in catalog order.
func (s *Set) TestCases() []transcript.TestCase {
	out := make([]transcript.TestCase, len(s.cases))
	for i, c := range s.cases {
		out[i] = c.TestCase
	}
	return out
}

// Lookup finds the case with the given key.
func (s *Set) Lookup(key transcript.Key) (Case, bool) {
	i, ok := s.byKey[key]
	if !ok {
		return Case{}, false
	}
	return s.cases[i], true
}

// Counts returns the number of positive and negative cases.
func (s *Set) Counts() (positive, negative int) {
	return s.pos, s.neg
}

// extraCase is the YAML form of a user-supplied control case.
type extraCase struct {
	Name           string     `yaml:"name"`
	Positive       bool       `yaml:"positive"`
	Input          string     `yaml:"input"`
	ActualOutput   string     `yaml:"actual_output"`
	ExpectedOutput *string    `yaml:"expected_output"`
	Context        []string   `yaml:"context"`
	ExpectedTools  []yamlTool `yaml:"expected_tools"`
	ToolsCalled    []yamlTool `yaml:"tools_called"`
}

type yamlTool struct {
	Name string         `yaml:"name"`
	Args map[string]any `yaml:"args"`
}

// LoadExtraCases reads additional control cases from a YAML file:
//
//	cases:
//	  - name: "NEGATIVE X: Wrong Course"
//	    positive: false
//	    input: ...
func LoadExtraCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calibration cases: %w", err)
	}

	var file struct {
		Cases []extraCase `yaml:"cases"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	out := make([]Case, 0, len(file.Cases))
	for i, c := range file.Cases {
		if c.Name == "" || c.Input == "" {
			return nil, fmt.Errorf("%s: case %d: name and input are required", path, i)
		}
		ctx := c.Context
		if ctx == nil {
			ctx = []string{}
		}
		out = append(out, Case{
			Name:     c.Name,
			Positive: c.Positive,
			TestCase: transcript.TestCase{
				Input:          c.Input,
				ActualOutput:   c.ActualOutput,
				ExpectedOutput: c.ExpectedOutput,
				Context:        ctx,
				ExpectedTools:  toolCalls(c.ExpectedTools),
				ToolsCalled:    toolCalls(c.ToolsCalled),
			},
		})
	}
	return out, nil
}

func toolCalls(in []yamlTool) []trace.ToolCall {
	out := make([]trace.ToolCall, len(in))
	for i, t := range in {
		out[i] = trace.ToolCall{Name: t.Name, InputParameters: t.Args}
	}
	return out
}
