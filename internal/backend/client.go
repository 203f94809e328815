// Package backend implements the HTTP result sink: terminal call results
// are POSTed to the backend collaborator that owns persistence.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/MrWong99/callyx/internal/call"
	"github.com/MrWong99/callyx/internal/engine"
)

// defaultTimeout bounds one emission request when the caller's context has
// no earlier deadline.
const defaultTimeout = 10 * time.Second

// Client posts terminal results to the backend. It implements
// [engine.ResultSink] and is safe for concurrent use.
type Client struct {
	baseURL string
	hc      *http.Client
}

var _ engine.ResultSink = (*Client)(nil)

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithHTTPClient replaces the underlying [http.Client].
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.hc = hc
	}
}

// NewClient creates a [Client] for the backend at baseURL
// (e.g. "http://backend:9000").
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("backend: invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend: base URL %q must be http or https", baseURL)
	}

	c := &Client{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// EmitResult posts one terminal result as JSON to
// {base}/api/calls/{call_id}/result. Any non-2xx response is an error; the
// engine treats emission failures as best-effort and only logs them.
func (c *Client) EmitResult(ctx context.Context, res call.Result) error {
	body, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("backend: encode result for call %s: %w", res.CallID, err)
	}

	endpoint := fmt.Sprintf("%s/api/calls/%s/result", c.baseURL, url.PathEscape(res.CallID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("backend: build request for call %s: %w", res.CallID, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("backend: post result for call %s: %w", res.CallID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("backend: post result for call %s: unexpected status %s", res.CallID, resp.Status)
	}
	return nil
}

// Ping checks backend reachability for readiness probes. It issues a GET to
// the base URL and accepts any HTTP response as proof of life.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("backend: build ping request: %w", err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("backend: ping: %w", err)
	}
	resp.Body.Close()
	return nil
}
