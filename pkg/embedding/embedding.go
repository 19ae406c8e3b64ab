// Package embedding defines the embedding-provider collaborator
// ("embed(text) → fixed-dimension vector or failure") and an HTTP-backed
// implementation wrapped in a gobreaker circuit breaker.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/extclient"
)

// Provider embeds text into a fixed-dimension unit vector. It returns
// (nil, nil) — not an error — when the provider is known-unreachable, so
// callers can apply the "row stored without embedding" degrade path
// without special-casing network errors.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Reachable reports the circuit breaker's current health, used by the
	// health endpoint and by FragmentStore.insert's "provider reachable" gate.
	Reachable() bool
}

// HTTPProvider calls a configured embedding endpoint expecting
// {"model":..., "input": text} -> {"embedding": [...]}.
type HTTPProvider struct {
	endpoint string
	apiKey   string
	model    string
	dims     int
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
}

// NewHTTPProvider constructs an HTTPProvider.
func NewHTTPProvider(endpoint, apiKey, model string, dims int, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		dims:     dims,
		client:   extclient.New(extclient.Options{BearerToken: apiKey, Timeout: timeout}),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "embedding-provider",
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed posts to the configured endpoint. Any failure (network, breaker
// open, malformed response) returns a nil vector and nil error: the
// caller's job is to skip embedding, not to fail the write.
func (p *HTTPProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if p.endpoint == "" {
		return nil, nil
	}
	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.doEmbed(ctx, text)
	})
	if err != nil {
		return nil, nil //nolint:nilerr // unreachable provider degrades silently
	}
	vec, _ := result.([]float32)
	return vec, nil
}

func (p *HTTPProvider) doEmbed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: p.model, Input: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil, fmt.Errorf("embedding provider returned %d", resp.StatusCode)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Embedding) != p.dims {
		return nil, fmt.Errorf("embedding provider returned %d dims, want %d", len(out.Embedding), p.dims)
	}
	return out.Embedding, nil
}

// Reachable reports whether the circuit breaker is closed or half-open.
func (p *HTTPProvider) Reachable() bool {
	return p.breaker.State() != gobreaker.StateOpen
}

// ShouldEmbed reports whether a fragment with the given importance should
// receive an embedding when the provider is reachable.
func ShouldEmbed(importance float64, p Provider) bool {
	return importance > 0.5 && p != nil && p.Reachable()
}
