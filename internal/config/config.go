// Package config holds the evaluator settings loaded once at start-up.
package config

import (
	"errors"
	"fmt"

	"github.com/agenticgokit/traceval/internal/utils"
	"github.com/spf13/viper"
)

// Judge engines.
const (
	EngineLLM    = "llm"
	EngineRemote = "remote"
)

// Config is the complete evaluator configuration. It is built once by Load
// and passed by value.
type Config struct {
	Eval        EvalConfig        `mapstructure:"eval" toml:"eval"`
	Build       BuildConfig       `mapstructure:"build" toml:"build"`
	Trace       TraceConfig       `mapstructure:"trace" toml:"trace"`
	Judge       JudgeConfig       `mapstructure:"judge" toml:"judge"`
	Calibration CalibrationConfig `mapstructure:"calibration" toml:"calibration"`
	Analysis    AnalysisConfig    `mapstructure:"analysis" toml:"analysis"`
	Experiments []Experiment      `mapstructure:"experiments" toml:"experiments,omitempty"`
}

// EvalConfig controls a single evaluation run.
type EvalConfig struct {
	// CurrentDate is the date the judge treats as today (YYYY-MM-DD).
	CurrentDate string `mapstructure:"current_date" toml:"current_date"`
	// DateContext adds the CurrentDate line to transcript contexts too.
	// Calibration cases always carry it.
	DateContext bool     `mapstructure:"date_context" toml:"date_context"`
	OutputDir   string   `mapstructure:"output_dir" toml:"output_dir"`
	Formats     []string `mapstructure:"formats" toml:"formats"`
}

// BuildConfig controls test case construction.
type BuildConfig struct {
	Concurrency int `mapstructure:"concurrency" toml:"concurrency"`
}

// TraceConfig bounds trace traversal.
type TraceConfig struct {
	MaxDepth int `mapstructure:"max_depth" toml:"max_depth"`
}

// JudgeConfig selects and tunes the judging engine.
type JudgeConfig struct {
	Engine         string          `mapstructure:"engine" toml:"engine"`
	Provider       string          `mapstructure:"provider" toml:"provider"`
	Model          string          `mapstructure:"model" toml:"model"`
	Temperature    float64         `mapstructure:"temperature" toml:"temperature"`
	MaxTokens      int             `mapstructure:"max_tokens" toml:"max_tokens"`
	RemoteURL      string          `mapstructure:"remote_url" toml:"remote_url"`
	TimeoutSeconds int             `mapstructure:"timeout_seconds" toml:"timeout_seconds"`
	Concurrency    int             `mapstructure:"concurrency" toml:"concurrency"`
	MetricsFile    string          `mapstructure:"metrics_file" toml:"metrics_file"`
	Embedding      EmbeddingConfig `mapstructure:"embedding" toml:"embedding"`
}

// EmbeddingConfig configures the embedding client used by similarity metrics.
type EmbeddingConfig struct {
	Provider string `mapstructure:"provider" toml:"provider"`
	Model    string `mapstructure:"model" toml:"model"`
	BaseURL  string `mapstructure:"base_url" toml:"base_url"`
}

// CalibrationConfig controls the control-group check run before judging.
type CalibrationConfig struct {
	Enabled             bool    `mapstructure:"enabled" toml:"enabled"`
	OutputDir           string  `mapstructure:"output_dir" toml:"output_dir"`
	PositivePassRateMin float64 `mapstructure:"positive_pass_rate_min" toml:"positive_pass_rate_min"`
	NegativeFailRateMin float64 `mapstructure:"negative_fail_rate_min" toml:"negative_fail_rate_min"`
	ExtraCasesFile      string  `mapstructure:"extra_cases_file" toml:"extra_cases_file"`
}

// AnalysisConfig tunes the failure heuristics.
type AnalysisConfig struct {
	GoalDriftIterations   int     `mapstructure:"goal_drift_iterations" toml:"goal_drift_iterations"`
	MaxIterations         int     `mapstructure:"max_iterations" toml:"max_iterations"`
	CommonErrorLimit      int     `mapstructure:"common_error_limit" toml:"common_error_limit"`
	ErrorMessageMaxLen    int     `mapstructure:"error_message_max_len" toml:"error_message_max_len"`
	FaithfulnessThreshold float64 `mapstructure:"faithfulness_threshold" toml:"faithfulness_threshold"`
}

// Experiment names one report to include in a comparison.
type Experiment struct {
	Name        string `mapstructure:"name" toml:"name"`
	ReportPath  string `mapstructure:"report_path" toml:"report_path"`
	OutputDir   string `mapstructure:"output_dir" toml:"output_dir"`
	Description string `mapstructure:"description" toml:"description"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Eval: EvalConfig{
			CurrentDate: "2025-12-10",
			OutputDir:   "./report/evaluation",
			Formats:     []string{"console", "json"},
		},
		Build: BuildConfig{Concurrency: 8},
		Trace: TraceConfig{MaxDepth: 32},
		Judge: JudgeConfig{
			Engine:         EngineLLM,
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			Temperature:    0,
			MaxTokens:      512,
			TimeoutSeconds: 120,
			Concurrency:    4,
			Embedding: EmbeddingConfig{
				Provider: "ollama",
				Model:    "nomic-embed-text",
			},
		},
		Calibration: CalibrationConfig{
			Enabled:             true,
			OutputDir:           "./report/calibration_report",
			PositivePassRateMin: 0.8,
			NegativeFailRateMin: 0.8,
		},
		Analysis: AnalysisConfig{
			GoalDriftIterations:   8,
			MaxIterations:         10,
			CommonErrorLimit:      3,
			ErrorMessageMaxLen:    100,
			FaithfulnessThreshold: 0.7,
		},
	}
}

// SetDefaults registers every default with v so environment variables can
// override keys that are absent from the config file.
func SetDefaults(v *viper.Viper) {
	d := Default()
	defaults := map[string]any{
		"eval.current_date":                  d.Eval.CurrentDate,
		"eval.date_context":                  d.Eval.DateContext,
		"eval.output_dir":                    d.Eval.OutputDir,
		"eval.formats":                       d.Eval.Formats,
		"build.concurrency":                  d.Build.Concurrency,
		"trace.max_depth":                    d.Trace.MaxDepth,
		"judge.engine":                       d.Judge.Engine,
		"judge.provider":                     d.Judge.Provider,
		"judge.model":                        d.Judge.Model,
		"judge.temperature":                  d.Judge.Temperature,
		"judge.max_tokens":                   d.Judge.MaxTokens,
		"judge.remote_url":                   d.Judge.RemoteURL,
		"judge.timeout_seconds":              d.Judge.TimeoutSeconds,
		"judge.concurrency":                  d.Judge.Concurrency,
		"judge.metrics_file":                 d.Judge.MetricsFile,
		"judge.embedding.provider":           d.Judge.Embedding.Provider,
		"judge.embedding.model":              d.Judge.Embedding.Model,
		"judge.embedding.base_url":           d.Judge.Embedding.BaseURL,
		"calibration.enabled":                d.Calibration.Enabled,
		"calibration.output_dir":             d.Calibration.OutputDir,
		"calibration.positive_pass_rate_min": d.Calibration.PositivePassRateMin,
		"calibration.negative_fail_rate_min": d.Calibration.NegativeFailRateMin,
		"calibration.extra_cases_file":       d.Calibration.ExtraCasesFile,
		"analysis.goal_drift_iterations":     d.Analysis.GoalDriftIterations,
		"analysis.max_iterations":            d.Analysis.MaxIterations,
		"analysis.common_error_limit":        d.Analysis.CommonErrorLimit,
		"analysis.error_message_max_len":     d.Analysis.ErrorMessageMaxLen,
		"analysis.faithfulness_threshold":    d.Analysis.FaithfulnessThreshold,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// Load builds a validated Config from v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, utils.NewUserError("Invalid configuration", "Fix the listed keys in your .traceval.toml or TRACEVAL_* environment", err)
	}
	return cfg, nil
}

// Validate reports every out-of-range setting.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, field, msg string) {
		if !ok {
			errs = append(errs, utils.NewValidationError(field, msg))
		}
	}

	check(c.Build.Concurrency >= 1, "build.concurrency", "must be at least 1")
	check(c.Trace.MaxDepth >= 1, "trace.max_depth", "must be at least 1")

	check(c.Judge.Engine == EngineLLM || c.Judge.Engine == EngineRemote, "judge.engine",
		fmt.Sprintf("must be %q or %q", EngineLLM, EngineRemote))
	check(c.Judge.Engine != EngineRemote || c.Judge.RemoteURL != "", "judge.remote_url", "is required for the remote engine")
	check(c.Judge.Concurrency >= 1, "judge.concurrency", "must be at least 1")
	check(c.Judge.TimeoutSeconds >= 1, "judge.timeout_seconds", "must be at least 1")

	check(inUnit(c.Calibration.PositivePassRateMin) && c.Calibration.PositivePassRateMin > 0,
		"calibration.positive_pass_rate_min", "must be in (0, 1]")
	check(inUnit(c.Calibration.NegativeFailRateMin) && c.Calibration.NegativeFailRateMin > 0,
		"calibration.negative_fail_rate_min", "must be in (0, 1]")

	check(c.Analysis.MaxIterations >= 1, "analysis.max_iterations", "must be at least 1")
	check(c.Analysis.GoalDriftIterations >= 1 && c.Analysis.GoalDriftIterations < c.Analysis.MaxIterations,
		"analysis.goal_drift_iterations", "must be at least 1 and below analysis.max_iterations")
	check(c.Analysis.CommonErrorLimit >= 1, "analysis.common_error_limit", "must be at least 1")
	check(c.Analysis.ErrorMessageMaxLen >= 4, "analysis.error_message_max_len", "must be at least 4")
	check(inUnit(c.Analysis.FaithfulnessThreshold), "analysis.faithfulness_threshold", "must be in [0, 1]")

	for i, exp := range c.Experiments {
		check(exp.Name != "", utils.FieldPath("experiments", i, "name"), "is required")
		check(exp.ReportPath != "", utils.FieldPath("experiments", i, "report_path"), "is required")
	}

	return errors.Join(errs...)
}

func inUnit(f float64) bool {
	return f >= 0 && f <= 1
}
