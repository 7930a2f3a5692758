package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/agenticgokit/traceval/internal/eval"
	"github.com/agenticgokit/traceval/internal/report"
	"github.com/agenticgokit/traceval/internal/utils"
)

var evaluateCmd = &cobra.Command{
	Use:     "evaluate <report.json>",
	Aliases: []string{"eval"},
	Short:   "Judge a report of recorded agent transcripts",
	Long: `Judge every transcript in a report with the configured metrics, then
analyze the failures.

Calibration runs first when enabled. A calibration below the acceptance bar
marks the results as low confidence but does not stop the run.

Examples:
  # Evaluate with the default configuration
  traceval evaluate reports/run-42.json

  # Print JUnit XML and skip calibration
  traceval evaluate reports/run-42.json --format junit --no-calibration

  # Write analysis.json somewhere else
  traceval evaluate reports/run-42.json --output ./out`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

var (
	evaluateFormats       []string
	evaluateOutputDir     string
	evaluateReportFile    string
	evaluateNoCalibration bool
	evaluateFailOnError   bool
)

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringSliceVarP(&evaluateFormats, "format", "f", nil, "Output formats (console, json, junit, markdown); defaults to eval.formats")
	evaluateCmd.Flags().StringVarP(&evaluateOutputDir, "output", "o", "", "Directory for analysis.json; defaults to eval.output_dir")
	evaluateCmd.Flags().StringVarP(&evaluateReportFile, "report", "r", "", "Save the markdown report to this file (auto-generated if not specified)")
	evaluateCmd.Flags().BoolVar(&evaluateNoCalibration, "no-calibration", false, "Skip judge calibration")
	evaluateCmd.Flags().BoolVar(&evaluateFailOnError, "fail", false, "Exit with status 1 when any case fails")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	reportPath := args[0]
	if !utils.FileExists(reportPath) {
		return utils.NewUserError(fmt.Sprintf("Report file not found: %s", reportPath),
			"Pass the path of a transcript report JSON file", nil)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if evaluateNoCalibration {
		cfg.Calibration.Enabled = false
	}
	if evaluateOutputDir != "" {
		cfg.Eval.OutputDir = evaluateOutputDir
	}
	formats := cfg.Eval.Formats
	if len(evaluateFormats) > 0 {
		formats = evaluateFormats
	}

	ctx := commandContext(cmd)
	engine, metrics, err := newJudge(ctx, cfg)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Printf("📋 Evaluating %s with %d metric(s)\n", reportPath, len(metrics))
	}

	runner := eval.NewRunner(cfg, engine, metrics, GetLogger())
	result, err := runner.Run(ctx, reportPath)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	if result.Calibration != nil {
		report.WriteCalibration(os.Stdout, result.Calibration)
	}

	rep := report.Build(filepath.Base(reportPath), result, report.NewMeta("."))
	for _, format := range formats {
		if err := report.NewReporter(format).Generate(rep, os.Stdout); err != nil {
			return fmt.Errorf("failed to generate %s report: %w", format, err)
		}
	}

	analysisPath := filepath.Join(cfg.Eval.OutputDir, "analysis.json")
	if err := report.WriteJSON(analysisPath, rep); err != nil {
		return err
	}
	color.Green("\n✓ Analysis saved to: %s", analysisPath)

	saveMarkdown(rep, cfg.Eval.OutputDir, evaluateReportFile)

	if result.Confidence == eval.ConfidenceLow {
		color.Yellow("⚠ Judge calibration did not pass; treat these results with low confidence")
	}

	if evaluateFailOnError && !result.AllPassed() {
		os.Exit(1)
	}
	return nil
}

// saveMarkdown writes a markdown copy of rep. Failures are warnings.
func saveMarkdown(rep *report.Report, dir, path string) {
	if path == "" {
		stamp := time.Now().Format("20060102-150405")
		path = utils.TimestampedPath(dir, "eval-report", stamp, "md")
	}
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to create report directory: %v\n", err)
		return
	}

	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to create report file: %v\n", err)
		return
	}
	defer f.Close()

	if err := report.NewReporter(report.FormatMarkdown).Generate(rep, f); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to write markdown report: %v\n", err)
		return
	}
	fmt.Printf("📄 Detailed report saved to: %s\n", path)
}
