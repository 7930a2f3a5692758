package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/agenticgokit/traceval/internal/transcript"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// EmbeddingSettings selects an embedding backend.
type EmbeddingSettings struct {
	Provider string // ollama | openai
	Model    string
	BaseURL  string
}

// SimilarityScorer scores the cosine similarity between the actual and
// expected outputs.
type SimilarityScorer struct {
	embedder Embedder
}

// NewSimilarityScorer creates a similarity scorer.
func NewSimilarityScorer(embedder Embedder) *SimilarityScorer {
	return &SimilarityScorer{embedder: embedder}
}

// Score implements Scorer. Cases without an expected output score 0.
func (s *SimilarityScorer) Score(ctx context.Context, tc transcript.TestCase, m MetricSpec) (Score, error) {
	if tc.ExpectedOutput == nil || *tc.ExpectedOutput == "" {
		return Score{Value: 0, Reason: "no expected output to compare against"}, nil
	}
	if tc.ActualOutput == "" {
		return Score{Value: 0, Reason: "actual output is empty"}, nil
	}

	actual, err := s.embedder.Embed(ctx, tc.ActualOutput)
	if err != nil {
		return Score{}, fmt.Errorf("failed to embed actual output: %w", err)
	}
	expected, err := s.embedder.Embed(ctx, *tc.ExpectedOutput)
	if err != nil {
		return Score{}, fmt.Errorf("failed to embed expected output: %w", err)
	}

	sim := cosineSimilarity(actual, expected)
	return Score{Value: sim, Reason: fmt.Sprintf("similarity %.2f (threshold %.2f)", sim, m.Threshold)}, nil
}

// cosineSimilarity calculates cosine similarity between two vectors
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NewEmbedder creates the client for settings.Provider.
func NewEmbedder(settings EmbeddingSettings, timeout time.Duration) (Embedder, error) {
	switch settings.Provider {
	case "ollama":
		return NewOllamaEmbedder(settings, timeout), nil
	case "openai":
		return NewOpenAIEmbedder(settings, timeout, os.Getenv("OPENAI_API_KEY"))
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// OllamaEmbedder calls the Ollama embeddings API.
type OllamaEmbedder struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaEmbedder creates an Ollama client. BaseURL defaults to the local
// daemon.
func NewOllamaEmbedder(settings EmbeddingSettings, timeout time.Duration) *OllamaEmbedder {
	baseURL := settings.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaEmbedder{
		baseURL: baseURL,
		model:   settings.Model,
		client:  &http.Client{Timeout: timeout},
	}
}

// Embed implements Embedder.
func (c *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	var result struct {
		Embedding []float64 `json:"embedding"`
	}
	req := map[string]string{"model": c.model, "prompt": text}
	if err := postJSON(ctx, c.client, c.baseURL+"/api/embeddings", nil, req, &result); err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	return result.Embedding, nil
}

// OpenAIEmbedder calls the OpenAI embeddings API.
type OpenAIEmbedder struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAIEmbedder creates an OpenAI client.
func NewOpenAIEmbedder(settings EmbeddingSettings, timeout time.Duration, apiKey string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	baseURL := settings.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIEmbedder{
		apiKey:  apiKey,
		model:   settings.Model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Embed implements Embedder.
func (c *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	var result struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	req := map[string]string{"model": c.model, "input": text}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if err := postJSON(ctx, c.client, c.baseURL+"/embeddings", headers, req, &result); err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("openai: no embedding returned")
	}
	return result.Data[0].Embedding, nil
}

// postJSON sends body as JSON and decodes a 200 response into out.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
