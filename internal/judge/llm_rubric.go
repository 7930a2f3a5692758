package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agenticgokit/traceval/internal/transcript"
)

// Completer sends one prompt to a language model and returns its reply.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// RubricScorer scores rubric metrics with an LLM judge.
type RubricScorer struct {
	llm Completer
}

// NewRubricScorer creates a rubric scorer backed by llm.
func NewRubricScorer(llm Completer) *RubricScorer {
	return &RubricScorer{llm: llm}
}

// Score renders the rubric prompt and parses the judge's JSON verdict.
func (s *RubricScorer) Score(ctx context.Context, tc transcript.TestCase, m MetricSpec) (Score, error) {
	prompt, err := RenderRubricPrompt(tc, m)
	if err != nil {
		return Score{}, err
	}

	reply, err := s.llm.Complete(ctx, rubricSystemPrompt, prompt)
	if err != nil {
		return Score{}, fmt.Errorf("judge model call failed: %w", err)
	}
	return ParseVerdict(reply)
}

// ParseVerdict extracts {"score", "reason"} from a judge reply. Scores on a
// 0-10 scale are normalised to 0-1.
func ParseVerdict(reply string) (Score, error) {
	raw := extractJSON(reply)
	if raw == "" {
		return Score{}, fmt.Errorf("judge reply contains no JSON verdict: %q", truncate(reply, 200))
	}

	var v struct {
		Score  *float64 `json:"score"`
		Reason string   `json:"reason"`
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Score{}, fmt.Errorf("failed to parse judge verdict: %w", err)
	}
	if v.Score == nil {
		return Score{}, fmt.Errorf("judge verdict has no score: %s", truncate(raw, 200))
	}

	score := *v.Score
	if score > 1 && score <= 10 {
		score /= 10
	}
	return Score{Value: clamp(score), Reason: strings.TrimSpace(v.Reason)}, nil
}

// extractJSON returns the first balanced JSON object in text.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
