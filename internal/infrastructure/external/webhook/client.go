// Package webhook delivers ranking announcements to a chat webhook
// (Discord-compatible JSON payload).
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tabletop-league/ranking-bot/pkg/circuitbreaker"
	"github.com/tabletop-league/ranking-bot/pkg/logger"
	"github.com/tabletop-league/ranking-bot/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ErrNotConfigured is returned when no webhook URL is set.
var ErrNotConfigured = errors.New("webhook: url is not configured")

// Config contains configuration for the webhook client.
type Config struct {
	URL      string
	Username string
	Timeout  time.Duration
}

// Observer receives delivery outcomes.
type Observer interface {
	ObserveWebhook(err error)
}

// Option customizes the client.
type Option func(*Client)

// WithRetrier replaces the default WebhookRetrier.
func WithRetrier(r *retry.Retrier) Option {
	return func(c *Client) { c.retrier = r }
}

// WithBreaker replaces the default WebhookBreaker.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithObserver reports every delivery.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client posts JSON payloads to a single webhook URL.
type Client struct {
	config     Config
	httpClient *http.Client
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
	log        *logger.Logger
	observer   Observer
}

// NewClient creates a webhook client.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retrier:    retry.WebhookRetrier(),
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		log := c.log
		c.breaker = circuitbreaker.WebhookBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("webhook circuit state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		})
	}
	return c
}

// Enabled reports whether a URL is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.config.URL != ""
}

// Post sends payload as JSON. 5xx, 429 and network errors are retried;
// other 4xx responses fail immediately.
func (c *Client) Post(ctx context.Context, payload any) error {
	if !c.Enabled() {
		return ErrNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			return c.doSingleRequest(ctx, body)
		})
	})
	if c.observer != nil {
		c.observer.ObserveWebhook(err)
	}
	return err
}

func (c *Client) doSingleRequest(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.Retryable(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		c.log.Debug("webhook transient failure", logger.Int("status", resp.StatusCode))
		return retry.Retryable(&StatusError{Code: resp.StatusCode, RetryAfter: resp.Header.Get("Retry-After")})
	default:
		return retry.Permanent(&StatusError{Code: resp.StatusCode})
	}
}

// StatusError is a non-2xx webhook response.
type StatusError struct {
	Code       int
	RetryAfter string
}

func (e *StatusError) Error() string {
	return "webhook: unexpected status " + strconv.Itoa(e.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING PAYLOAD
// ══════════════════════════════════════════════════════════════════════════════

// RankingLine is one row of an announced ranking.
type RankingLine struct {
	Rank          int
	Name          string
	Points        int
	MatchesPlayed int
}

// Ranking is the announcement posted by the broadcast job.
type Ranking struct {
	Title string
	Lines []RankingLine
}

type discordPayload struct {
	Username string `json:"username,omitempty"`
	Content  string `json:"content"`
}

// Text renders the ranking as plain text lines.
func (r Ranking) Text() string {
	var b strings.Builder
	b.WriteString(r.Title)
	for _, l := range r.Lines {
		fmt.Fprintf(&b, "\n%d. %s: %d pts (%d)", l.Rank, l.Name, l.Points, l.MatchesPlayed)
	}
	return b.String()
}

// PostRanking posts r as a Discord-compatible message.
func (c *Client) PostRanking(ctx context.Context, r Ranking) error {
	return c.Post(ctx, discordPayload{Username: c.config.Username, Content: r.Text()})
}
