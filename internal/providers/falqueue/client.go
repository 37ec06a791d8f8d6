// Package falqueue implements the fal.ai queue protocol shared by every
// fal-backed collaborator: submit a request, poll its status until it
// settles, then fetch the result payload.
package falqueue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"showcase/internal/infra"
)

// ErrMissingAPIKey indicates the client was configured without credentials.
var ErrMissingAPIKey = errors.New("falqueue: api key is required")

// ErrJobFailed is returned when the queue reports a terminal failure.
var ErrJobFailed = errors.New("falqueue: job failed")

// ErrTimeout is returned when polling exhausts its attempt budget.
var ErrTimeout = errors.New("falqueue: polling timed out")

const (
	defaultBaseURL      = "https://queue.fal.run"
	defaultPollInterval = 3 * time.Second
	defaultMaxAttempts  = 20
)

// Options configures the queue client.
type Options struct {
	APIKey       string
	BaseURL      string
	HTTPClient   *http.Client
	Logger       *infra.Logger
	PollInterval time.Duration
	MaxAttempts  int
}

// Client performs HTTP calls against the fal.ai queue API.
type Client struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	logger       *infra.Logger
	pollInterval time.Duration
	maxAttempts  int
}

type submitRequest struct {
	Input any `json:"input"`
}

type submitResponse struct {
	RequestID string `json:"request_id"`
	ID        string `json:"id"`
}

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// NewClient validates the options and builds a queue client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		httpClient:   httpClient,
		logger:       opts.Logger,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
	}, nil
}

// Run submits the input to the given queue application, waits for the job
// to settle, and decodes the result payload into out.
func (c *Client) Run(ctx context.Context, app string, input, out any) error {
	requestID, err := c.Submit(ctx, app, input)
	if err != nil {
		return err
	}
	return c.Await(ctx, app, requestID, out)
}

// Submit enqueues a request and returns the queue-assigned request id.
func (c *Client) Submit(ctx context.Context, app string, input any) (string, error) {
	body, err := json.Marshal(submitRequest{Input: input})
	if err != nil {
		return "", fmt.Errorf("falqueue: encode input: %w", err)
	}
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, strings.Trim(app, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("falqueue: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var submitted submitResponse
	if err := c.do(req, &submitted); err != nil {
		return "", err
	}
	requestID := submitted.RequestID
	if requestID == "" {
		requestID = submitted.ID
	}
	if requestID == "" {
		return "", fmt.Errorf("falqueue: submit to %s returned no request id", app)
	}
	if c.logger != nil {
		c.logger.Debug().Str("app", app).Str("fal_request_id", requestID).Msg("falqueue: submitted")
	}
	return requestID, nil
}

// Await polls the request's status until it completes, then decodes the
// result payload into out. A FAILED status or an exhausted attempt budget
// is an error.
func (c *Client) Await(ctx context.Context, app, requestID string, out any) error {
	statusURL := fmt.Sprintf("%s/%s/requests/%s/status", c.baseURL, strings.Trim(app, "/"), requestID)
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		var status statusResponse
		if err := c.get(ctx, statusURL, &status); err != nil {
			return err
		}
		switch strings.ToUpper(status.Status) {
		case "COMPLETED":
			resultURL := fmt.Sprintf("%s/%s/requests/%s", c.baseURL, strings.Trim(app, "/"), requestID)
			return c.get(ctx, resultURL, out)
		case "FAILED":
			if status.Error != "" {
				return fmt.Errorf("%w: %s", ErrJobFailed, status.Error)
			}
			return ErrJobFailed
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
	return ErrTimeout
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("falqueue: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("falqueue: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer res.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(res.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("falqueue: read response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("falqueue: %s %s: unexpected status %d: %s", req.Method, req.URL.Path, res.StatusCode, truncate(payload))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("falqueue: decode response: %w", err)
	}
	return nil
}

func truncate(payload []byte) string {
	const max = 256
	s := strings.TrimSpace(string(payload))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
