package nli

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

// ExternalClassifier posts (premise, hypothesis) to a configured /classify
// endpoint, bounded by a timeout.
type ExternalClassifier struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
}

// NewExternalClassifier constructs an ExternalClassifier.
func NewExternalClassifier(endpoint string, timeout time.Duration) *ExternalClassifier {
	return &ExternalClassifier{
		endpoint: endpoint,
		client:   extclient.New(extclient.Options{Timeout: timeout}),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "nli-external",
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

type classifyRequest struct {
	Premise    string `json:"premise"`
	Hypothesis string `json:"hypothesis"`
}

type classifyResponse struct {
	Label  Label              `json:"label"`
	Scores map[Label]float64  `json:"scores"`
}

// Classify posts to endpoint + "/classify". Any network/breaker failure
// degrades to (nil, nil), never an error the caller must branch on.
func (c *ExternalClassifier) Classify(ctx context.Context, premise, hypothesis string) (*Result, error) {
	if c.endpoint == "" {
		return nil, nil
	}
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doClassify(ctx, premise, hypothesis)
	})
	if err != nil {
		return nil, nil //nolint:nilerr // null on any network failure, by contract
	}
	return result.(*Result), nil
}

func (c *ExternalClassifier) doClassify(ctx context.Context, premise, hypothesis string) (*Result, error) {
	body, err := json.Marshal(classifyRequest{Premise: premise, Hypothesis: hypothesis})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/classify", bytes.NewReader(body))
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
		return nil, fmt.Errorf("nli: endpoint returned %d", resp.StatusCode)
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &Result{Label: out.Label, Scores: out.Scores}, nil
}
