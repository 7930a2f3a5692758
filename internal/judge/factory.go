package judge

import (
	"context"
	"fmt"
	"time"

	"github.com/agenticgokit/traceval/internal/config"
	"github.com/rs/zerolog"
)

// NewEngine builds the engine selected by cfg. For the local engine only
// the scorers required by metrics are constructed, so an embedding backend
// is needed only when an embedding metric is configured.
func NewEngine(ctx context.Context, cfg config.JudgeConfig, metrics []MetricSpec, logger *zerolog.Logger) (Engine, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	switch cfg.Engine {
	case config.EngineRemote:
		remote := NewRemote(cfg.RemoteURL, timeout)
		if err := remote.Health(ctx); err != nil {
			return nil, fmt.Errorf("judging service %s unavailable: %w", cfg.RemoteURL, err)
		}
		return remote, nil
	case config.EngineLLM, "":
	default:
		return nil, fmt.Errorf("unknown judge engine %q", cfg.Engine)
	}

	scorers := map[Kind]Scorer{KindToolCorrectness: ToolCorrectnessScorer{}}
	for _, m := range metrics {
		switch m.Kind {
		case KindLLMRubric:
			if _, ok := scorers[KindLLMRubric]; ok {
				continue
			}
			llm, err := NewAgentCompleter(LLMSettings{
				Provider:    cfg.Provider,
				Model:       cfg.Model,
				Temperature: cfg.Temperature,
				MaxTokens:   cfg.MaxTokens,
			}, logger)
			if err != nil {
				return nil, err
			}
			scorers[KindLLMRubric] = NewRubricScorer(llm)
		case KindEmbeddingSimilarity:
			if _, ok := scorers[KindEmbeddingSimilarity]; ok {
				continue
			}
			embedder, err := NewEmbedder(EmbeddingSettings{
				Provider: cfg.Embedding.Provider,
				Model:    cfg.Embedding.Model,
				BaseURL:  cfg.Embedding.BaseURL,
			}, timeout)
			if err != nil {
				return nil, err
			}
			scorers[KindEmbeddingSimilarity] = NewSimilarityScorer(embedder)
		}
	}
	return NewLocal(scorers, cfg.Concurrency, logger), nil
}
