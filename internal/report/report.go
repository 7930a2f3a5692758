// Package report renders evaluation results for people and machines.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agenticgokit/traceval/internal/analysis"
	"github.com/agenticgokit/traceval/internal/calibration"
	"github.com/agenticgokit/traceval/internal/eval"
	"github.com/agenticgokit/traceval/internal/utils"
	"github.com/google/uuid"
)

// Metadata identifies a run and its inputs.
type Metadata struct {
	RunID           string `json:"run_id"`
	GitRevision     string `json:"git_revision,omitempty"`
	SourceGitHash   string `json:"source_git_hash,omitempty"`
	SourceTimestamp string `json:"source_timestamp,omitempty"`
	GeneratedAt     string `json:"generated_at"`
	Confidence      string `json:"confidence"`
}

// Summary holds the headline numbers.
type Summary struct {
	TotalTests      int     `json:"total_tests"`
	OverallPassRate float64 `json:"overall_pass_rate"`
}

// Calibration wraps an optional calibration summary. A nil summary encodes
// as an empty object.
type Calibration struct {
	*calibration.Summary
}

// MarshalJSON implements json.Marshaler.
func (c Calibration) MarshalJSON() ([]byte, error) {
	if c.Summary == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c.Summary)
}

// Categories encodes as a JSON object keyed by task type, in order of first
// appearance.
type Categories []analysis.Category

// MarshalJSON implements json.Marshaler.
func (c Categories) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, cat := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(cat.TaskType)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(cat)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Report is the analysis document written to analysis.json, plus the
// details the human-readable formats show.
type Report struct {
	Metadata        Metadata               `json:"metadata"`
	Summary         Summary                `json:"summary"`
	Calibration     Calibration            `json:"calibration"`
	Categories      Categories             `json:"categories"`
	FailureAnalysis analysis.FailureCounts `json:"failure_analysis"`

	Name        string             `json:"-"`
	Description string             `json:"-"`
	Metrics     []eval.MetricStats `json:"-"`
	Cases       []eval.Case        `json:"-"`
	Passed      int                `json:"-"`
	Failed      int                `json:"-"`
	Duration    time.Duration      `json:"-"`
}

// Meta carries the run-level values not found in a RunResult.
type Meta struct {
	RunID       string
	GitRevision string
	GeneratedAt time.Time
}

// NewMeta creates run metadata with a fresh run ID. The git revision of
// dir is included when dir is inside a repository.
func NewMeta(dir string) Meta {
	m := Meta{RunID: uuid.New().String(), GeneratedAt: time.Now()}
	if rev, err := GitRevision(dir); err == nil {
		m.GitRevision = rev
	}
	return m
}

// Build assembles a report from a run result.
func Build(name string, res *eval.RunResult, meta Meta) *Report {
	r := &Report{
		Metadata: Metadata{
			RunID:       meta.RunID,
			GitRevision: meta.GitRevision,
			GeneratedAt: meta.GeneratedAt.UTC().Format(time.RFC3339),
			Confidence:  res.Confidence,
		},
		Summary: Summary{
			TotalTests:      res.TotalTests,
			OverallPassRate: analysis.Round(res.PassRate(), 2),
		},
		Calibration:     Calibration{res.Calibration},
		Categories:      Categories(res.Analysis.Categories),
		FailureAnalysis: res.Analysis.Failures,
		Name:            name,
		Metrics:         res.Metrics,
		Cases:           res.Cases,
		Passed:          res.PassedTests,
		Failed:          res.FailedTests,
		Duration:        res.Duration,
	}
	if res.Report != nil {
		r.Metadata.SourceGitHash = res.Report.GitHash
		r.Metadata.SourceTimestamp = res.Report.Timestamp
	}
	if r.Categories == nil {
		r.Categories = Categories{}
	}
	return r
}

// WriteJSON writes the report as indented JSON to path, creating parent
// directories.
func WriteJSON(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := utils.WriteFile(path, append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}
