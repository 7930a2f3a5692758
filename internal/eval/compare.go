package eval

import (
	"context"

	"github.com/agenticgokit/traceval/internal/config"
	"github.com/agenticgokit/traceval/internal/utils"
)

// Compare calibrates once and evaluates every experiment with the shared
// summary. Missing reports are skipped and failed evaluations are recorded;
// neither stops the comparison.
func (r *Runner) Compare(ctx context.Context, experiments []config.Experiment) (*Comparison, error) {
	cal, err := r.CalibrateIfEnabled(ctx)
	if err != nil {
		return nil, err
	}

	cmp := &Comparison{Calibration: cal, Best: -1}
	for _, exp := range experiments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry := ExperimentResult{Experiment: exp}
		log := r.logger.With().Str("experiment", exp.Name).Logger()

		if !utils.FileExists(exp.ReportPath) {
			log.Warn().Str("report", exp.ReportPath).Msg("report file not found, skipping")
			entry.Skipped = true
			cmp.Experiments = append(cmp.Experiments, entry)
			continue
		}

		log.Info().Str("report", exp.ReportPath).Msg("evaluating experiment")
		entry.Result, entry.Err = r.Evaluate(ctx, exp.ReportPath, cal)
		if entry.Err != nil {
			log.Error().Err(entry.Err).Msg("experiment evaluation failed")
		}
		cmp.Experiments = append(cmp.Experiments, entry)

		if entry.Result == nil {
			continue
		}
		if best, ok := cmp.BestResult(); !ok || entry.Result.PassRate() > best.Result.PassRate() {
			cmp.Best = len(cmp.Experiments) - 1
		}
	}
	return cmp, nil
}
