package judge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agenticgokit/traceval/internal/transcript"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Remote delegates judging to an external service.
//
//	POST {base}/evaluate  {"test_cases": [...], "metrics": [...]}
//	                   -> {"results": [CaseResult...]}
//	GET  {base}/health
type Remote struct {
	baseURL string
	client  *http.Client
}

// NewRemote creates a remote engine.
func NewRemote(baseURL string, timeout time.Duration) *Remote {
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// EvaluateRequest is the batch sent to the judging service.
type EvaluateRequest struct {
	TestCases []transcript.TestCase `json:"test_cases"`
	Metrics   []MetricSpec          `json:"metrics"`
}

// EvaluateResponse is the judging service reply.
type EvaluateResponse struct {
	Results []CaseResult `json:"results"`
	Error   string       `json:"error,omitempty"`
}

// Evaluate implements Engine. Verdicts are taken as reported by the service.
func (r *Remote) Evaluate(ctx context.Context, cases []transcript.TestCase, metrics []MetricSpec) ([]CaseResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "judge.batch")
	defer span.End()
	span.SetAttributes(
		attribute.Int("judge.cases", len(cases)),
		attribute.Int("judge.metrics", len(metrics)),
		attribute.String("judge.engine", "remote"),
	)

	var resp EvaluateResponse
	err := postJSON(ctx, r.client, r.baseURL+"/evaluate", nil, EvaluateRequest{TestCases: cases, Metrics: metrics}, &resp)
	if err == nil && resp.Error != "" {
		err = fmt.Errorf("service error: %s", resp.Error)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("remote judging failed: %w", err)
	}
	return resp.Results, nil
}

// Health checks if the judging service is reachable.
func (r *Remote) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("health check returned HTTP %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
