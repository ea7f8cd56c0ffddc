package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/shimarch/smrkit/logging"
	"github.com/shimarch/smrkit/observe"
	"github.com/shimarch/smrkit/resilience"
	"github.com/shimarch/smrkit/secret"
)

// WebhookKeyPrefix is prepended to the upper-cased space name to form the
// secret key holding the webhook URL.
const WebhookKeyPrefix = "GCHAT_WEBHOOK_"

const maxErrorBody = 4 << 10

// Config tunes the executor of a Client.
type Config struct {
	// Timeout bounds one webhook call.
	// Default: 10s
	Timeout time.Duration `koanf:"timeout"`

	// Rate is the sustained messages per second allowed per space.
	// Default: 1
	Rate float64 `koanf:"rate"`

	// Burst is the number of messages that may be sent back to back.
	// Default: 5
	Burst int `koanf:"burst"`
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{Timeout: 10 * time.Second, Rate: 1, Burst: 5}
}

// Client sends messages to Google Chat spaces.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - The webhook URL is never logged or included in errors.
type Client struct {
	secrets *secret.Manager
	http    *http.Client
	logger  logging.Logger
	cfg     Config
	retry   *resilience.RetryConfig
	mw      *observe.Middleware
	exec    *resilience.Executor
}

// Option configures a Client.
type Option func(*Client)

// WithLogger overrides the logger taken from the logging context.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient sets the HTTP client used for webhook calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithConfig replaces the executor settings. Zero fields keep defaults.
func WithConfig(cfg Config) Option {
	return func(c *Client) {
		if cfg.Timeout > 0 {
			c.cfg.Timeout = cfg.Timeout
		}
		if cfg.Rate > 0 {
			c.cfg.Rate = cfg.Rate
		}
		if cfg.Burst > 0 {
			c.cfg.Burst = cfg.Burst
		}
	}
}

// WithRetry retries failed sends. When cfg.RetryIf is nil, Retryable is
// used.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) { c.retry = &cfg }
}

// WithMiddleware instruments every send.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(c *Client) { c.mw = mw }
}

// New returns a client reading webhook URLs from secrets. Unless WithLogger
// is given, the logger comes from logging.Get and New fails when the
// logging context is not initialized.
func New(secrets *secret.Manager, opts ...Option) (*Client, error) {
	if secrets == nil {
		return nil, fmt.Errorf("chat: a secret manager is required")
	}
	c := &Client{
		secrets: secrets,
		http:    &http.Client{},
		cfg:     DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		l, err := logging.Get()
		if err != nil {
			return nil, fmt.Errorf("chat: %w", err)
		}
		c.logger = l
	}

	execOpts := []resilience.ExecutorOption{
		resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:        c.cfg.Rate,
			Burst:       c.cfg.Burst,
			WaitOnLimit: true,
		})),
		resilience.WithTimeout(c.cfg.Timeout),
	}
	if c.retry != nil {
		rc := *c.retry
		if rc.RetryIf == nil {
			rc.RetryIf = Retryable
		}
		execOpts = append(execOpts, resilience.WithRetry(resilience.NewRetry(rc)))
	}
	c.exec = resilience.NewExecutor(execOpts...)
	return c, nil
}

// WebhookKey returns the secret key for space.
func WebhookKey(space string) string {
	return WebhookKeyPrefix + strings.ToUpper(space)
}

// WebhookURL looks up the webhook of space.
func (c *Client) WebhookURL(ctx context.Context, space string) (string, error) {
	if strings.TrimSpace(space) == "" {
		return "", ErrInvalidSpace
	}
	key := WebhookKey(space)
	webhook, err := c.secrets.Require(ctx, key)
	if err != nil {
		c.logger.Error("Webhook URL not found", logging.Fields{"secret_key": key, "error": err.Error()})
		return "", err
	}
	return webhook, nil
}

// Send posts payload, encoded as JSON, to space.
func (c *Client) Send(ctx context.Context, space string, payload any) error {
	webhook, err := c.WebhookURL(ctx, space)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	var status int
	op := observe.Operation{Component: "chat", Name: "send", Target: space}
	err = c.mw.Run(ctx, op, func(ctx context.Context) error {
		return c.exec.Execute(ctx, space, func(ctx context.Context) error {
			s, err := c.post(ctx, webhook, body)
			status = s
			return err
		})
	})
	if err != nil {
		c.logger.Error("Failed to send Google Chat message", logging.Fields{"space": space, "error": err.Error()})
		return err
	}
	c.logger.Debug("Google Chat message sent", logging.Fields{
		"space":        space,
		"status_code":  status,
		"payload_size": len(body),
	})
	return nil
}

// SendText posts a message rendered as "*title*" followed by message on
// the next line.
func (c *Client) SendText(ctx context.Context, space, title, message string) error {
	payload := map[string]string{"text": fmt.Sprintf("*%s*\n%s", title, message)}
	if err := c.Send(ctx, space, payload); err != nil {
		return err
	}
	c.logger.Info("Text message sent to Google Chat", logging.Fields{"title": title, "space": space})
	return nil
}

func (c *Client) post(ctx context.Context, webhook string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("chat: build request: %w", redactURL(err))
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, redactURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// redactURL drops the request URL, which carries the webhook key and
// token, from transport errors.
func redactURL(err error) error {
	var ue *neturl.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}
