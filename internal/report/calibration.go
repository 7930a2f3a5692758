package report

import (
	"fmt"
	"io"

	"github.com/agenticgokit/traceval/internal/calibration"
	"github.com/fatih/color"
)

// WriteCalibration prints the calibration outcome: group counts, each case
// with its expected and actual outcome, and the per-metric separation.
func WriteCalibration(w io.Writer, s *calibration.Summary) {
	header(w, "CALIBRATION RESULTS")
	fmt.Fprintf(w, "%-45s %d/%d\n", "Positive Controls (should pass):", s.PositiveControls.Passed, s.PositiveControls.Total)
	fmt.Fprintf(w, "%-45s %d/%d\n", "Negative Controls (should fail):", s.NegativeControls.Failed, s.NegativeControls.Total)

	fmt.Fprintf(w, "\nDetailed Calibration Test Results:\n")
	fmt.Fprintln(w, rule)
	for _, o := range s.Outcomes {
		correctness := color.GreenString("✓")
		if !o.Correct {
			correctness = color.YellowString("⚠ UNEXPECTED")
		}
		fmt.Fprintf(w, "  %-40s Expected: %-8s Got: %-8s %s\n", o.Name, outcome(o.Positive), outcome(o.Passed), correctness)
		if o.Correct {
			continue
		}
		fmt.Fprintf(w, "    Metric scores:\n")
		for _, v := range o.Verdicts {
			mark := "✓"
			if !v.Passed {
				mark = "✗"
			}
			fmt.Fprintf(w, "      %-35s %.3f (threshold: %.2f) %s\n", v.Metric, v.Score, v.Threshold, mark)
		}
	}
	fmt.Fprintln(w, rule)
	if s.Unmatched > 0 {
		fmt.Fprintf(w, "%s\n", color.YellowString("%d result(s) did not match any calibration case", s.Unmatched))
	}

	fmt.Fprintf(w, "\n%-45s %15s %15s %15s\n", "Metric", "Positive Avg", "Negative Avg", "Separation")
	fmt.Fprintln(w, rule)
	for _, name := range s.MetricOrder {
		sep := s.MetricsSeparation[name]
		fmt.Fprintf(w, "%-45s %15.3f %15.3f %14.3f %s\n", name, sep.PositiveAvg, sep.NegativeAvg, sep.Separation, bandIndicator(sep.Band()))
	}
	fmt.Fprintln(w, rule)

	if s.Valid {
		color.New(color.FgGreen).Fprintf(w, "\n✓ CALIBRATION SUCCESSFUL: metrics reliably distinguish good from bad answers.\n\n")
	} else {
		color.New(color.FgRed).Fprintf(w, "\n✗ CALIBRATION WARNING: metrics may not be reliable!\n")
		fmt.Fprintf(w, "  Review metric thresholds and evaluation criteria.\n\n")
	}
}

func outcome(pass bool) string {
	if pass {
		return "✓ PASS"
	}
	return "✗ FAIL"
}

func bandIndicator(band string) string {
	switch band {
	case calibration.BandStrong:
		return color.GreenString("✓✓ %s", band)
	case calibration.BandAcceptable:
		return color.GreenString("✓ %s", band)
	}
	return color.YellowString("⚠ %s", band)
}
