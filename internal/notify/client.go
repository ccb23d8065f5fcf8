package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/pingsantohq/dailyping/pkg/types"
)

const (
	DefaultTimeout       = 10 * time.Second
	DefaultRatePerMinute = 30
	maxErrorBody         = 512
)

// Config holds the static configuration for a webhook Client.
type Config struct {
	WebhookURL    string
	Username      string
	Timeout       time.Duration
	RatePerMinute int
}

// Dependencies allow test overrides for the HTTP client.
type Dependencies struct {
	HTTPClient *http.Client
	UserAgent  string
}

// Client posts messages to a Discord-compatible webhook.
type Client struct {
	httpClient *http.Client
	webhookURL string
	username   string
	timeout    time.Duration
	userAgent  string
	limiter    *rate.Limiter
}

// NewClient validates the webhook URL and builds a Client.
func NewClient(cfg Config, deps Dependencies) (*Client, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	u, err := url.Parse(cfg.WebhookURL)
	if err != nil {
		return nil, fmt.Errorf("parse webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webhook URL must be http or https, got %q", u.Scheme)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = DefaultRatePerMinute
	}
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				ForceAttemptHTTP2:   true,
				MaxIdleConnsPerHost: 2,
			},
		}
	}
	userAgent := deps.UserAgent
	if userAgent == "" {
		userAgent = "dailyping/0.1"
	}
	return &Client{
		httpClient: httpClient,
		webhookURL: cfg.WebhookURL,
		username:   cfg.Username,
		timeout:    timeout,
		userAgent:  userAgent,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}, nil
}

// Timeout returns the per-send deadline.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Send posts msg and succeeds only on 204 No Content. The whole attempt,
// including waiting for the rate limiter, is bounded by the client timeout.
func (c *Client) Send(ctx context.Context, msg types.WebhookMessage) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if msg.Username == "" {
		msg.Username = c.username
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal webhook message: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("webhook rejected report: status %s: %s", resp.Status, bytes.TrimSpace(body))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
