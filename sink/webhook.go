package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stitchwork/stitch/iox"
	"github.com/stitchwork/stitch/reassembly"
)

// DefaultWebhookTimeout is the default HTTP request timeout.
const DefaultWebhookTimeout = 10 * time.Second

// DefaultWebhookRetries is the default number of retry attempts.
const DefaultWebhookRetries = 3

// WebhookConfig configures the webhook sink.
type WebhookConfig struct {
	// URL is the HTTP endpoint to POST to (required).
	URL string
	// Headers are custom HTTP headers added to each request.
	Headers map[string]string
	// Timeout is the per-request timeout (default 10s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure (default 3).
	Retries int
}

// WebhookEmit is the JSON body posted for each emit.
type WebhookEmit struct {
	Channel string `json:"channel"`
	Kind    string `json:"kind"` // "partial" or "final"
	Content string `json:"content"`
}

// WebhookSink delivers emits via HTTP POST.
// Retries with exponential backoff on 5xx responses and network errors;
// 4xx responses are non-retriable and fail immediately.
type WebhookSink struct {
	config WebhookConfig
	client *http.Client
}

// NewWebhookSink creates a webhook sink from the given config.
// Returns an error if the URL is empty.
func NewWebhookSink(cfg WebhookConfig) (*WebhookSink, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook sink requires a URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultWebhookTimeout
	}
	if cfg.Retries == 0 {
		cfg.Retries = DefaultWebhookRetries
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	return &WebhookSink{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// EmitPartial posts an incremental payload slice.
func (s *WebhookSink) EmitPartial(ctx context.Context, channel, content string) error {
	return s.post(ctx, WebhookEmit{Channel: channel, Kind: "partial", Content: content})
}

// EmitFinal posts the end-of-payload signal.
func (s *WebhookSink) EmitFinal(ctx context.Context, channel, content string) error {
	return s.post(ctx, WebhookEmit{Channel: channel, Kind: "final", Content: content})
}

// post sends the emit as a JSON POST with retry/backoff.
func (s *WebhookSink) post(ctx context.Context, emit WebhookEmit) error {
	body, err := json.Marshal(emit)
	if err != nil {
		return fmt.Errorf("webhook: marshal emit: %w", err)
	}

	var lastErr error
	// attempts = 1 initial + retries
	attempts := 1 + s.config.Retries

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("webhook: context canceled: %w", err)
		}

		// Exponential backoff before retries (not before first attempt)
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return fmt.Errorf("webhook: context canceled during backoff: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		lastErr = s.doRequest(ctx, body)
		if lastErr == nil {
			return nil
		}

		var statusErr *StatusError
		if errors.As(lastErr, &statusErr) && statusErr.Code >= 400 && statusErr.Code < 500 {
			return fmt.Errorf("webhook: non-retriable error: %w", lastErr)
		}
	}

	return fmt.Errorf("webhook: failed after %d attempts: %w", attempts, lastErr)
}

// StatusError is returned for non-2xx HTTP responses.
// Wrapping the status code allows callers to distinguish retriable (5xx)
// from non-retriable (4xx) failures.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// doRequest performs a single HTTP POST and returns nil on 2xx.
func (s *WebhookSink) doRequest(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}

	return nil
}

// Close releases sink resources.
func (s *WebhookSink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// Verify WebhookSink implements reassembly.Sink.
var _ reassembly.Sink = (*WebhookSink)(nil)
