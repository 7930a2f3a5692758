package report

import (
	"fmt"
	"io"

	"github.com/agenticgokit/traceval/internal/eval"
	"github.com/fatih/color"
)

// WriteComparison prints one row per experiment and names the best
// performer.
func WriteComparison(w io.Writer, cmp *eval.Comparison) {
	header(w, "COMPARATIVE SUMMARY")
	fmt.Fprintf(w, "%-40s %15s %15s\n", "Experiment", "Total Tests", "Pass Rate")
	fmt.Fprintln(w, rule)
	for _, e := range cmp.Experiments {
		switch {
		case e.Skipped:
			fmt.Fprintf(w, "%-40s %s\n", e.Experiment.Name, color.YellowString("skipped (report not found)"))
		case e.Err != nil:
			fmt.Fprintf(w, "%-40s %s\n", e.Experiment.Name, color.RedString("failed: %v", e.Err))
		default:
			fmt.Fprintf(w, "%-40s %15d %14.1f%%\n", e.Experiment.Name, e.Result.TotalTests, e.Result.PassRate())
		}
	}
	fmt.Fprintln(w, rule)

	if best, ok := cmp.BestResult(); ok {
		fmt.Fprintf(w, "\n%s %s (%.1f%%)\n\n", color.GreenString("✓ Best performing:"), best.Experiment.Name, best.Result.PassRate())
	} else {
		fmt.Fprintf(w, "\n%s\n\n", color.YellowString("No experiment was evaluated."))
	}
}
