package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/agenticgokit/traceval/internal/config"
	"github.com/agenticgokit/traceval/internal/judge"
	"github.com/agenticgokit/traceval/internal/utils"
)

var (
	initOutputDir string
	initForce     bool
	initMetrics   bool
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write .traceval.toml with every setting at its default value.

With --metrics, the built-in metric definitions are also written to
metrics.yaml and judge.metrics_file points at it, so they can be edited.

Examples:
  traceval init
  traceval init --metrics --output ./evals
  traceval init --force`,
	Args: cobra.NoArgs,
	RunE: runInitCommand,
}

func runInitCommand(cmd *cobra.Command, args []string) error {
	cfg := config.Default()

	if initMetrics {
		metricsPath := filepath.Join(initOutputDir, "metrics.yaml")
		if err := writeMetricsFile(metricsPath); err != nil {
			color.Red("✗ %v", err)
			return err
		}
		cfg.Judge.MetricsFile = "metrics.yaml"
		color.Green("✓ Wrote %s", metricsPath)
	}

	configPath := filepath.Join(initOutputDir, ".traceval.toml")
	if err := config.NewGenerator().GenerateConfig(cfg, configPath, initForce); err != nil {
		color.Red("✗ %v", err)
		return err
	}
	color.Green("✓ Wrote %s", configPath)

	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set the judge provider credentials (e.g. OPENAI_API_KEY)")
	fmt.Println("  2. traceval calibrate")
	fmt.Println("  3. traceval evaluate <report.json>")
	return nil
}

func writeMetricsFile(path string) error {
	if utils.FileExists(path) && !initForce {
		return utils.NewUserError(fmt.Sprintf("Metrics file %s already exists", path),
			"Re-run with --force to overwrite it", nil)
	}
	data, err := yaml.Marshal(judge.MetricsFile{Metrics: judge.DefaultMetrics()})
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}
	return utils.WriteFile(path, data)
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVarP(&initOutputDir, "output", "o", ".", "Directory to write the files to")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing files")
	initCmd.Flags().BoolVar(&initMetrics, "metrics", false, "Also write the built-in metrics to metrics.yaml")
}
