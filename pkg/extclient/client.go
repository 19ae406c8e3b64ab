// Package extclient builds the shared HTTP client used to reach the
// embedding provider, the LLM, and the external NLI endpoint: a cloned
// default transport, an optional bearer-token round-tripper, and a
// configurable timeout.
package extclient

import (
	"net/http"
	"time"
)

// Options configures a client built by New.
type Options struct {
	BearerToken string
	Timeout     time.Duration
}

// New builds an *http.Client with auth and timeout settings applied.
func New(opts Options) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	client := &http.Client{Transport: transport}

	if opts.BearerToken != "" {
		client.Transport = &bearerTokenTransport{
			base:  client.Transport,
			token: opts.BearerToken,
		}
	}
	if opts.Timeout > 0 {
		client.Timeout = opts.Timeout
	}
	return client
}

// bearerTokenTransport wraps an http.RoundTripper to add an Authorization
// header to every outgoing request.
type bearerTokenTransport struct {
	base  http.RoundTripper
	token string
}

func (t *bearerTokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(req)
}
