// Package webhook posts analysis reports to HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/xeoh/GCTool/pkg/config"
	"github.com/xeoh/GCTool/pkg/output"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = config.DefaultWebhookTimeout

// Client sends analysis reports to webhook endpoints.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used by Notify.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a new webhook client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendOptions configures a webhook request.
type SendOptions struct {
	URL     string
	Token   string        // Bearer token (optional)
	Timeout time.Duration // Request timeout (uses DefaultTimeout if zero)
}

// Response contains the result of a webhook request.
type Response struct {
	StatusCode int
	Body       string
	Duration   time.Duration
	Error      error
}

// Success returns true if the webhook was sent successfully (2xx status).
func (r *Response) Success() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Send posts an analysis report to a webhook endpoint.
func (c *Client) Send(ctx context.Context, report *output.Report, opts SendOptions) *Response {
	start := time.Now()
	resp := &Response{}

	payload, err := json.Marshal(report)
	if err != nil {
		resp.Error = fmt.Errorf("failed to marshal report: %w", err)
		resp.Duration = time.Since(start)
		return resp
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.URL, bytes.NewReader(payload))
	if err != nil {
		resp.Error = fmt.Errorf("failed to create request: %w", err)
		resp.Duration = time.Since(start)
		return resp
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "gctool-webhook")
	if opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		resp.Error = fmt.Errorf("request failed: %w", err)
		resp.Duration = time.Since(start)
		return resp
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1024*1024)) // Limit to 1MB
	if err != nil {
		resp.Error = fmt.Errorf("failed to read response: %w", err)
		resp.Duration = time.Since(start)
		return resp
	}

	resp.StatusCode = httpResp.StatusCode
	resp.Body = string(body)
	resp.Duration = time.Since(start)

	if resp.StatusCode >= 400 {
		resp.Error = fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return resp
}

// Delivery records the outcome of one webhook in a Notify call.
type Delivery struct {
	Name     string
	Response *Response
}

// Notify sends report to every hook whose trigger matches. Hooks that do not
// fire are skipped. Failures are logged and returned, never raised.
func (c *Client) Notify(ctx context.Context, hooks []config.WebhookConfig, report *output.Report) []Delivery {
	var deliveries []Delivery

	for _, wh := range hooks {
		if !ShouldFire(wh.Trigger, report.HasIssues()) {
			continue
		}

		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		resp := c.Send(ctx, report, SendOptions{
			URL:     wh.URL,
			Token:   wh.Token,
			Timeout: wh.Timeout,
		})
		deliveries = append(deliveries, Delivery{Name: name, Response: resp})

		if resp.Success() {
			c.logger.Info("Webhook sent",
				zap.String("webhook", name),
				zap.Int("status", resp.StatusCode),
				zap.Duration("duration", resp.Duration))
		} else {
			c.logger.Warn("Webhook failed",
				zap.String("webhook", name),
				zap.Int("status", resp.StatusCode),
				zap.Error(resp.Error))
		}
	}

	return deliveries
}

// ShouldFire reports whether a webhook with trigger fires for a report.
// An empty or unknown trigger behaves like on_issues.
func ShouldFire(trigger config.WebhookTrigger, hasIssues bool) bool {
	switch trigger {
	case config.WebhookTriggerAlways:
		return true
	case config.WebhookTriggerNever:
		return false
	default:
		return hasIssues
	}
}
