package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/agenticgokit/traceval/internal/eval"
	"github.com/agenticgokit/traceval/internal/judge"
	"github.com/fatih/color"
)

// Supported output formats.
const (
	FormatConsole  = "console"
	FormatJSON     = "json"
	FormatJUnit    = "junit"
	FormatMarkdown = "markdown"
)

// Formats lists every supported format.
var Formats = []string{FormatConsole, FormatJSON, FormatJUnit, FormatMarkdown}

const rule = "───────────────────────────────────────────────────────────────────────────────"

// Reporter generates reports in various formats
type Reporter struct {
	format string
}

// NewReporter creates a new reporter
func NewReporter(format string) *Reporter {
	return &Reporter{format: format}
}

// Extension returns the file extension for the reporter's format.
func (r *Reporter) Extension() string {
	switch r.format {
	case FormatJSON:
		return "json"
	case FormatJUnit:
		return "xml"
	case FormatMarkdown:
		return "md"
	}
	return "txt"
}

// Generate writes the report to w.
func (r *Reporter) Generate(rep *Report, w io.Writer) error {
	switch r.format {
	case FormatConsole:
		return r.generateConsole(rep, w)
	case FormatJSON:
		return r.generateJSON(rep, w)
	case FormatJUnit:
		return r.generateJUnit(rep, w)
	case FormatMarkdown:
		return r.generateMarkdown(rep, w)
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

func (r *Reporter) generateConsole(rep *Report, w io.Writer) error {
	header(w, "EVALUATION REPORT: "+rep.Name)
	if rep.Metadata.SourceGitHash != "" || rep.Metadata.SourceTimestamp != "" {
		fmt.Fprintf(w, "%-20s %s\n", "Git Hash:", orNA(rep.Metadata.SourceGitHash))
		fmt.Fprintf(w, "%-20s %s\n", "Timestamp:", orNA(rep.Metadata.SourceTimestamp))
	}
	fmt.Fprintf(w, "%-20s %s\n", "Run ID:", rep.Metadata.RunID)
	if rep.Metadata.Confidence == eval.ConfidenceLow {
		fmt.Fprintf(w, "%-20s %s\n", "Confidence:", color.YellowString("low (calibration not passed)"))
	}
	fmt.Fprintln(w)

	WriteMetricsTable(w, rep.Metrics)

	fmt.Fprintf(w, "\n%-30s %5d\n", "Test Cases:", rep.Summary.TotalTests)
	fmt.Fprintf(w, "%-30s %5d\n", "Passed:", rep.Passed)
	fmt.Fprintf(w, "%-30s %5d\n", "Failed:", rep.Failed)
	fmt.Fprintf(w, "%-30s %5.1f%%\n", "Overall Pass Rate:", rep.Summary.OverallPassRate)
	if rep.Duration > 0 {
		fmt.Fprintf(w, "%-30s %s\n", "Duration:", formatDuration(rep.Duration))
	}

	header(w, "TASK TYPE BREAKDOWN")
	for _, cat := range rep.Categories {
		fmt.Fprintf(w, "Task Type: %s\n", color.CyanString(cat.TaskType))
		fmt.Fprintf(w, "  Total Tests: %d\n", cat.N)
		fmt.Fprintf(w, "  Passed: %d\n", cat.Passed)
		fmt.Fprintf(w, "  Pass Rate: %.1f%%\n", cat.PassRatePercent)
		fmt.Fprintf(w, "  Avg Successful Steps: %.2f\n", cat.AvgStepsSuccess)
		if len(cat.CommonErrors) > 0 {
			fmt.Fprintf(w, "  Common Errors:\n")
			for i, e := range cat.CommonErrors {
				fmt.Fprintf(w, "    %d. %s\n", i+1, e)
			}
		}
		fmt.Fprintln(w)
	}

	fa := rep.FailureAnalysis
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Failure Analysis:\n")
	fmt.Fprintf(w, "  Goal Drifting: %d\n", fa.GoalDrifting)
	fmt.Fprintf(w, "  Loop Detection: %d\n", fa.Loops)
	fmt.Fprintf(w, "  JSON Errors: %d\n", fa.JSONErrors)
	fmt.Fprintf(w, "  Faithfulness Fails: %d\n", fa.FaithfulnessFail)

	if rep.Failed > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "  FAILED TESTS\n")
		fmt.Fprintln(w, rule)
		for _, c := range rep.Cases {
			if c.Passed() {
				continue
			}
			fmt.Fprintf(w, "%s %s (%s)\n", color.RedString("✗"), c.Entry.ID, c.Entry.TaskType)
			if !c.Judged {
				fmt.Fprintf(w, "  no verdict returned\n")
			}
			for _, v := range failing(c.Result.Verdicts) {
				fmt.Fprintf(w, "  %-35s %.3f (threshold: %.2f)\n", v.Metric, v.Score, v.Threshold)
				if v.Reason != "" {
					fmt.Fprintf(w, "    %s\n", truncate(v.Reason, 200))
				}
			}
			if c.TestCase.ActualOutput != "" {
				fmt.Fprintf(w, "  Output:\n    %s\n", truncate(c.TestCase.ActualOutput, 200))
			}
			fmt.Fprintln(w)
		}
	}

	fmt.Fprintln(w, rule)
	if rep.Failed == 0 {
		fmt.Fprintf(w, "  %s\n", color.GreenString("✓ ALL TESTS PASSED"))
	} else {
		fmt.Fprintf(w, "  %s\n", color.RedString("✗ SOME TESTS FAILED"))
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	return nil
}

// WriteMetricsTable prints per-metric statistics over the main batch.
func WriteMetricsTable(w io.Writer, metrics []eval.MetricStats) {
	header(w, "EVALUATION METRICS SUMMARY")
	fmt.Fprintf(w, "%-45s %10s %8s %8s %10s %12s\n", "Metric", "Average", "Min", "Max", "Threshold", "Pass Rate")
	fmt.Fprintln(w, rule)
	for _, m := range metrics {
		indicator := color.GreenString("✓")
		if !m.Healthy() {
			indicator = color.RedString("✗")
		}
		fmt.Fprintf(w, "%-45s %10.3f %8.3f %8.3f %10.2f %11.1f%% %s\n",
			m.Name, m.Average, m.Min, m.Max, m.Threshold, m.PassRate, indicator)
	}
	fmt.Fprintln(w, rule)
}

func (r *Reporter) generateJSON(rep *Report, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rep)
}

func (r *Reporter) generateJUnit(rep *Report, w io.Writer) error {
	fmt.Fprintf(w, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	fmt.Fprintf(w, "<testsuite name=\"%s\" tests=\"%d\" failures=\"%d\" time=\"%.3f\">\n",
		escapeXML(rep.Name), rep.Summary.TotalTests, rep.Failed, rep.Duration.Seconds())

	for _, c := range rep.Cases {
		fmt.Fprintf(w, "  <testcase name=\"%s\" classname=\"%s\">\n",
			escapeXML(c.Entry.ID), escapeXML(c.Entry.TaskType))

		if !c.Passed() {
			fmt.Fprintf(w, "    <failure message=\"%s\">\n", escapeXML(failureMessage(c)))
			for _, v := range failing(c.Result.Verdicts) {
				fmt.Fprintf(w, "      %s: %.3f &lt; %.2f %s\n", escapeXML(v.Metric), v.Score, v.Threshold, escapeXML(v.Reason))
			}
			fmt.Fprintf(w, "      Actual Output: %s\n", escapeXML(c.TestCase.ActualOutput))
			fmt.Fprintf(w, "    </failure>\n")
		}

		fmt.Fprintf(w, "  </testcase>\n")
	}

	fmt.Fprintf(w, "</testsuite>\n")
	return nil
}

func (r *Reporter) generateMarkdown(rep *Report, w io.Writer) error {
	fmt.Fprintf(w, "# Evaluation Report: %s\n\n", rep.Name)
	fmt.Fprintf(w, "**Generated:** %s\n\n", rep.Metadata.GeneratedAt)
	if rep.Metadata.SourceGitHash != "" {
		fmt.Fprintf(w, "**Source commit:** `%s`\n\n", rep.Metadata.SourceGitHash)
	}
	if rep.Metadata.Confidence == eval.ConfidenceLow {
		fmt.Fprintf(w, "> **Low confidence:** calibration did not pass, treat verdicts with care.\n\n")
	}

	fmt.Fprintf(w, "## Summary\n\n")
	fmt.Fprintf(w, "| Metric | Value |\n")
	fmt.Fprintf(w, "|--------|-------|\n")
	fmt.Fprintf(w, "| Total Tests | %d |\n", rep.Summary.TotalTests)
	fmt.Fprintf(w, "| Passed | %d ✓ |\n", rep.Passed)
	fmt.Fprintf(w, "| Failed | %d ✗ |\n", rep.Failed)
	fmt.Fprintf(w, "| Pass Rate | %.1f%% |\n\n", rep.Summary.OverallPassRate)

	if len(rep.Metrics) > 0 {
		fmt.Fprintf(w, "## Metrics\n\n")
		fmt.Fprintf(w, "| Metric | Average | Min | Max | Threshold | Pass Rate |\n")
		fmt.Fprintf(w, "|--------|---------|-----|-----|-----------|-----------|\n")
		for _, m := range rep.Metrics {
			fmt.Fprintf(w, "| %s | %.3f | %.3f | %.3f | %.2f | %.1f%% |\n",
				m.Name, m.Average, m.Min, m.Max, m.Threshold, m.PassRate)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "## Task Types\n\n")
	fmt.Fprintf(w, "| Task Type | Tests | Passed | Pass Rate | Avg Steps |\n")
	fmt.Fprintf(w, "|-----------|-------|--------|-----------|-----------|\n")
	for _, cat := range rep.Categories {
		fmt.Fprintf(w, "| %s | %d | %d | %.1f%% | %.2f |\n",
			cat.TaskType, cat.N, cat.Passed, cat.PassRatePercent, cat.AvgStepsSuccess)
	}
	fmt.Fprintln(w)

	fa := rep.FailureAnalysis
	fmt.Fprintf(w, "## Failure Analysis\n\n")
	fmt.Fprintf(w, "- **Goal drifting:** %d\n", fa.GoalDrifting)
	fmt.Fprintf(w, "- **Loops:** %d\n", fa.Loops)
	fmt.Fprintf(w, "- **JSON errors:** %d\n", fa.JSONErrors)
	fmt.Fprintf(w, "- **Faithfulness fails:** %d\n\n", fa.FaithfulnessFail)

	fmt.Fprintf(w, "## Test Results\n\n")
	for i, c := range rep.Cases {
		mark := "✓"
		if !c.Passed() {
			mark = "✗"
		}
		fmt.Fprintf(w, "### %d. %s %s\n\n", i+1, mark, c.Entry.ID)
		fmt.Fprintf(w, "**Task type:** %s\n\n", c.Entry.TaskType)

		if len(c.Result.Verdicts) > 0 {
			fmt.Fprintf(w, "| Metric | Score | Threshold | Result |\n")
			fmt.Fprintf(w, "|--------|-------|-----------|--------|\n")
			for _, v := range c.Result.Verdicts {
				res := "✓"
				if !v.Passed {
					res = "✗"
				}
				fmt.Fprintf(w, "| %s | %.3f | %.2f | %s |\n", v.Metric, v.Score, v.Threshold, res)
			}
			fmt.Fprintln(w)
		}

		if c.TestCase.ExpectedOutput != nil {
			fmt.Fprintf(w, "**Expected Output:**\n\n```\n%s\n```\n\n", *c.TestCase.ExpectedOutput)
		}
		if c.TestCase.ActualOutput != "" {
			fmt.Fprintf(w, "**Actual Output:**\n\n```\n%s\n```\n\n", c.TestCase.ActualOutput)
		} else if !c.Passed() {
			fmt.Fprintf(w, "**Actual Output:** *(empty)*\n\n")
		}
		fmt.Fprintf(w, "---\n\n")
	}
	return nil
}

// Helper functions

func header(w io.Writer, title string) {
	bar := strings.Repeat("═", 79)
	fmt.Fprintf(w, "\n%s\n  %s\n%s\n\n", bar, color.New(color.Bold).Sprint(title), bar)
}

func failing(verdicts []judge.MetricVerdict) []judge.MetricVerdict {
	var out []judge.MetricVerdict
	for _, v := range verdicts {
		if !v.Passed {
			out = append(out, v)
		}
	}
	return out
}

func failureMessage(c eval.Case) string {
	if !c.Judged {
		return "no verdict returned"
	}
	var names []string
	for _, v := range failing(c.Result.Verdicts) {
		names = append(names, v.Metric)
	}
	return "failed metrics: " + strings.Join(names, ", ")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.0fms", float64(d.Milliseconds()))
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
