// Package cmd implements the command-line interface for traceval.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/agenticgokit/agenticgokit/observability"
	"github.com/agenticgokit/traceval/internal/config"
	"github.com/agenticgokit/traceval/internal/judge"
	"github.com/agenticgokit/traceval/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile        string
	verbose        bool
	debug          bool
	traceEnabled   bool
	traceExporter  string
	traceEndpoint  string
	traceSample    float64
	tracerShutdown func(context.Context) error
	logger         *zerolog.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "traceval",
	Short: "Evaluate recorded agent transcripts",
	Long: `traceval judges recorded agent transcripts with a configurable set of
metrics and explains where the agent went wrong.

Features:
  • Tool-call and context extraction from nested delegation traces
  • LLM rubric, tool correctness, and embedding similarity metrics
  • Judge calibration against known-good and known-bad control cases
  • Failure analysis: goal drift, loops, JSON errors, unfaithful answers
  • Interactive trace explorer and Mermaid diagrams

Get started with: traceval init`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
		setupTracing(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		// Flush pending spans before exit
		if tracerShutdown != nil {
			_ = tracerShutdown(commandContext(cmd))
		}
	},
}

// setupLogging installs the zerolog logger shared by every command.
func setupLogging() {
	// Initialize zerolog
	var err error
	logger, err = utils.NewLogger(debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	// Set a global level as well for libraries using zerolog's package logger
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	// Use RFC3339 time format consistently
	zerolog.TimeFieldFormat = time.RFC3339
}

// setupTracing installs the OpenTelemetry tracer when --trace is set, so the
// eval.run, calibration.validate and judge.batch spans are exported.
func setupTracing(cmd *cobra.Command) {
	traceEnabled = viper.GetBool("trace")
	if !traceEnabled {
		return
	}

	ctx := commandContext(cmd)
	ctx = observability.WithRunID(ctx, uuid.New().String())
	ctx = observability.WithLogger(ctx, logger)
	cmd.SetContext(ctx)

	cfg := observability.TracerConfig{
		ServiceName:    "traceval",
		ServiceVersion: Version,
		Environment:    viper.GetString("environment"),
		Endpoint:       viper.GetString("trace_endpoint"),
		Exporter:       viper.GetString("trace_exporter"),
		SampleRate:     viper.GetFloat64("trace_sample"),
		Debug:          debug,
		// The file exporter reads its path from the endpoint flag
		FilePath: viper.GetString("trace_endpoint"),
	}

	var err error
	tracerShutdown, err = observability.SetupTracer(ctx, cfg)
	if err != nil {
		// Tracing is optional; commands still run without it
		logger.Warn().Err(err).Msg("failed to set up tracer")
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .traceval.toml in the current or home directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug mode")
	rootCmd.PersistentFlags().BoolVar(&traceEnabled, "trace", false, "enable tracing")
	rootCmd.PersistentFlags().StringVar(&traceExporter, "trace-exporter", "console", "trace exporter: console|otlp|file")
	rootCmd.PersistentFlags().StringVar(&traceEndpoint, "trace-endpoint", "", "OTLP endpoint URL or file path (for file exporter)")
	rootCmd.PersistentFlags().Float64Var(&traceSample, "trace-sample", 1.0, "trace sample rate (0.0-1.0)")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("trace", rootCmd.PersistentFlags().Lookup("trace"))
	_ = viper.BindPFlag("trace_exporter", rootCmd.PersistentFlags().Lookup("trace-exporter"))
	_ = viper.BindPFlag("trace_endpoint", rootCmd.PersistentFlags().Lookup("trace-endpoint"))
	_ = viper.BindPFlag("trace_sample", rootCmd.PersistentFlags().Lookup("trace-sample"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.SetConfigType("toml")
		viper.SetConfigName(".traceval")
	}

	viper.SetEnvPrefix("TRACEVAL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("trace_exporter", "console")
	viper.SetDefault("trace_sample", 1.0)
	viper.SetDefault("environment", "dev")
	// Evaluator defaults, so TRACEVAL_* variables override keys absent from the file
	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// GetLogger returns the configured logger
func GetLogger() *zerolog.Logger {
	if logger == nil {
		if l, err := utils.NewLogger(false); err == nil {
			logger = l
		} else {
			l := zerolog.New(os.Stderr).With().Timestamp().Logger()
			logger = &l
		}
	}
	return logger
}

// loadConfig returns the validated configuration for this invocation.
func loadConfig() (config.Config, error) {
	return config.Load(viper.GetViper())
}

// commandContext returns cmd's context, falling back to Background.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// newJudge loads the metric set and builds the configured engine.
func newJudge(ctx context.Context, cfg config.Config) (judge.Engine, []judge.MetricSpec, error) {
	metrics, err := judge.LoadMetrics(cfg.Judge.MetricsFile)
	if err != nil {
		return nil, nil, utils.NewUserError("Could not load metric definitions",
			"Check judge.metrics_file or remove it to use the built-in metrics", err)
	}
	engine, err := judge.NewEngine(ctx, cfg.Judge, metrics, GetLogger())
	if err != nil {
		return nil, nil, utils.NewUserError("Could not start the judging engine",
			"Check the [judge] section of your configuration and provider credentials", err)
	}
	return engine, metrics, nil
}
