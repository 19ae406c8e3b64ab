// Package llm defines the JSON-completion LLM collaborator consumed by
// the evaluator, the consolidator's contradiction verdicts, and
// auto-reflect's structured summary: a plain HTTP client guarded by a
// circuit breaker.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/extclient"
)

// Client requests a JSON completion matching an implicit schema description
// embedded in the prompt. Returning (nil, err) signals "unreachable" to
// callers, which must drop the job rather than retry.
type Client interface {
	CompleteJSON(ctx context.Context, prompt string) (json.RawMessage, error)
	Reachable() bool
}

// HTTPClient posts {"model":..., "prompt":...} and expects {"output": <json>}.
type HTTPClient struct {
	endpoint string
	model    string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
}

// NewHTTPClient constructs an HTTPClient. An empty endpoint yields a
// client that always reports unreachable (no LLM configured).
func NewHTTPClient(endpoint, apiKey, model string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		model:    model,
		client:   extclient.New(extclient.Options{BearerToken: apiKey, Timeout: timeout}),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "llm",
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

type completeRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type completeResponse struct {
	Output json.RawMessage `json:"output"`
}

// CompleteJSON posts the prompt and returns the decoded "output" field.
func (c *HTTPClient) CompleteJSON(ctx context.Context, prompt string) (json.RawMessage, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("llm: no endpoint configured")
	}
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doComplete(ctx, prompt)
	})
	if err != nil {
		return nil, err
	}
	return result.(json.RawMessage), nil
}

func (c *HTTPClient) doComplete(ctx context.Context, prompt string) (json.RawMessage, error) {
	body, err := json.Marshal(completeRequest{Model: c.model, Prompt: prompt})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm: endpoint returned %d", resp.StatusCode)
	}

	var out completeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Output, nil
}

// Reachable reports whether the circuit breaker is closed or half-open.
func (c *HTTPClient) Reachable() bool {
	if c.endpoint == "" {
		return false
	}
	return c.breaker.State() != gobreaker.StateOpen
}
