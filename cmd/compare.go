package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/agenticgokit/traceval/internal/eval"
	"github.com/agenticgokit/traceval/internal/report"
	"github.com/agenticgokit/traceval/internal/utils"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Evaluate every configured experiment and compare pass rates",
	Long: `Evaluate each [[experiments]] entry from the configuration with one shared
calibration, write each experiment's analysis.json, and print a comparison.

Experiments whose report file is missing are skipped.

Example configuration:
  [[experiments]]
  name = "baseline"
  report_path = "reports/baseline.json"
  output_dir = "./report/baseline"`,
	Args: cobra.NoArgs,
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Experiments) == 0 {
		return utils.NewUserError("No experiments configured",
			"Add one or more [[experiments]] tables to your .traceval.toml", nil)
	}

	ctx := commandContext(cmd)
	engine, metrics, err := newJudge(ctx, cfg)
	if err != nil {
		return err
	}

	cmp, err := eval.NewRunner(cfg, engine, metrics, GetLogger()).Compare(ctx, cfg.Experiments)
	if err != nil {
		return fmt.Errorf("comparison failed: %w", err)
	}

	if cmp.Calibration != nil {
		report.WriteCalibration(os.Stdout, cmp.Calibration)
	}

	for _, e := range cmp.Experiments {
		if e.Result == nil {
			continue
		}
		dir := e.Experiment.OutputDir
		if dir == "" {
			dir = filepath.Join(cfg.Eval.OutputDir, e.Experiment.Name)
		}
		rep := report.Build(e.Experiment.Name, e.Result, report.NewMeta("."))
		rep.Description = e.Experiment.Description
		path := filepath.Join(dir, "analysis.json")
		if err := report.WriteJSON(path, rep); err != nil {
			return err
		}
		color.Green("✓ %s: analysis saved to %s", e.Experiment.Name, path)
	}

	report.WriteComparison(os.Stdout, cmp)
	return nil
}
