package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/agenticgokit/traceval/internal/eval"
	"github.com/agenticgokit/traceval/internal/report"
	"github.com/agenticgokit/traceval/internal/utils"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Check the judge against known-good and known-bad cases",
	Long: `Run the calibration control cases through the configured judge and report
whether it separates good answers from bad ones.

Positive controls should pass every metric; negative controls should fail at
least one. Extra cases can be added with calibration.extra_cases_file.

The summary is written to <calibration.output_dir>/calibration.json.`,
	Args: cobra.NoArgs,
	RunE: runCalibrate,
}

func init() {
	rootCmd.AddCommand(calibrateCmd)
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	engine, metrics, err := newJudge(ctx, cfg)
	if err != nil {
		return err
	}

	summary, err := eval.NewRunner(cfg, engine, metrics, GetLogger()).Calibrate(ctx)
	if err != nil {
		return fmt.Errorf("calibration failed: %w", err)
	}

	report.WriteCalibration(os.Stdout, summary)

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode calibration summary: %w", err)
	}
	path := filepath.Join(cfg.Calibration.OutputDir, "calibration.json")
	if err := utils.WriteFile(path, append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write calibration summary: %w", err)
	}
	fmt.Printf("\n📄 Calibration summary saved to: %s\n", path)

	if summary.Valid {
		color.Green("✓ Judge calibration passed")
	} else {
		color.Yellow("⚠ Judge calibration is below the acceptance bar")
	}
	return nil
}
