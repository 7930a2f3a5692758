package judge

import (
	"context"
	"fmt"
	"strings"

	agk "github.com/agenticgokit/agenticgokit/v1beta"
	"github.com/rs/zerolog"
)

// LLMSettings selects the judge model.
type LLMSettings struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
}

// AgentCompleter runs prompts through an AgenticGoKit chat agent. A fresh
// agent is created per call so concurrent scorers never share state.
type AgentCompleter struct {
	settings LLMSettings
	logger   *zerolog.Logger
}

// NewAgentCompleter creates a completer for the given model settings.
func NewAgentCompleter(settings LLMSettings, logger *zerolog.Logger) (*AgentCompleter, error) {
	if settings.Provider == "" || settings.Model == "" {
		return nil, fmt.Errorf("judge provider and model are required")
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &AgentCompleter{settings: settings, logger: logger}, nil
}

// Complete streams the agent's reply to prompt and returns it in full.
func (c *AgentCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	agent, err := agk.NewChatAgent(
		"eval-judge",
		agk.WithSystemPrompt(system),
		agk.WithLLMConfig(c.settings.Provider, c.settings.Model, c.settings.Temperature, c.settings.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create chat agent: %w", err)
	}

	if err := agent.Initialize(ctx); err != nil {
		return "", fmt.Errorf("failed to initialize judge agent: %w", err)
	}
	defer func() {
		if err := agent.Cleanup(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("failed to clean up judge agent")
		}
	}()

	c.logger.Debug().Int("prompt_bytes", len(prompt)).Str("model", c.settings.Model).Msg("judge prompt")

	stream, err := agent.RunStream(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to start judge agent stream: %w", err)
	}

	// Delta chunks carry incremental text, text chunks the complete content.
	var response strings.Builder
	for chunk := range stream.Chunks() {
		if chunk.Delta != "" {
			response.WriteString(chunk.Delta)
		} else if chunk.Content != "" {
			response.WriteString(chunk.Content)
		}
	}

	if _, err := stream.Wait(); err != nil {
		return "", fmt.Errorf("stream error: %w", err)
	}

	reply := response.String()
	c.logger.Debug().Int("reply_bytes", len(reply)).Msg("judge reply")
	return reply, nil
}
