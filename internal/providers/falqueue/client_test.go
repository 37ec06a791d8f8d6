package falqueue

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	client, err := NewClient(Options{
		APIKey:       "test-key",
		BaseURL:      "https://queue.test",
		HTTPClient:   &http.Client{Transport: rt},
		PollInterval: time.Millisecond,
		MaxAttempts:  5,
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(Options{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
}

func TestRunPollsUntilCompleted(t *testing.T) {
	var paths []string
	statusCalls := 0
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		paths = append(paths, r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Fatalf("missing auth header on %s", r.URL.Path)
		}
		switch {
		case r.Method == http.MethodPost:
			return jsonResponse(200, `{"request_id":"req-1"}`), nil
		case strings.HasSuffix(r.URL.Path, "/status"):
			statusCalls++
			if statusCalls < 3 {
				return jsonResponse(200, `{"status":"IN_PROGRESS"}`), nil
			}
			return jsonResponse(200, `{"status":"COMPLETED"}`), nil
		default:
			return jsonResponse(200, `{"output":{"video_url":"https://cdn.test/v.mp4"}}`), nil
		}
	})

	var result struct {
		Output struct {
			VideoURL string `json:"video_url"`
		} `json:"output"`
	}
	if err := client.Run(context.Background(), "fal-ai/some-app", map[string]any{"x": 1}, &result); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Output.VideoURL != "https://cdn.test/v.mp4" {
		t.Fatalf("video url = %q", result.Output.VideoURL)
	}
	if paths[0] != "/fal-ai/some-app" {
		t.Fatalf("submit path = %q", paths[0])
	}
	if statusCalls != 3 {
		t.Fatalf("status calls = %d, want 3", statusCalls)
	}
}

func TestAwaitLowercaseTerminalStatus(t *testing.T) {
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		if strings.HasSuffix(r.URL.Path, "/status") {
			return jsonResponse(200, `{"status":"completed"}`), nil
		}
		return jsonResponse(200, `{"ok":true}`), nil
	})
	var out map[string]any
	if err := client.Await(context.Background(), "app", "req-1", &out); err != nil {
		t.Fatalf("Await returned error: %v", err)
	}
}

func TestAwaitFailedStatus(t *testing.T) {
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"status":"FAILED","error":"model exploded"}`), nil
	})
	err := client.Await(context.Background(), "app", "req-1", nil)
	if !errors.Is(err, ErrJobFailed) {
		t.Fatalf("err = %v, want ErrJobFailed", err)
	}
	if !strings.Contains(err.Error(), "model exploded") {
		t.Fatalf("err = %v, want wrapped detail", err)
	}
}

func TestAwaitTimesOut(t *testing.T) {
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"status":"IN_PROGRESS"}`), nil
	})
	if err := client.Await(context.Background(), "app", "req-1", nil); !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestSubmitRejectsMissingRequestID(t *testing.T) {
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{}`), nil
	})
	if _, err := client.Submit(context.Background(), "app", nil); err == nil {
		t.Fatal("Submit accepted response without request id")
	}
}

func TestSubmitAcceptsLegacyIDField(t *testing.T) {
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"id":"legacy-1"}`), nil
	})
	id, err := client.Submit(context.Background(), "app", nil)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if id != "legacy-1" {
		t.Fatalf("id = %q, want legacy-1", id)
	}
}

func TestAwaitHonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		cancel()
		return jsonResponse(200, `{"status":"IN_PROGRESS"}`), nil
	})
	if err := client.Await(ctx, "app", "req-1", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
