// Package llm is the hosted language model client used to draft quotes and
// project analyses.
//
// Calls are rate limited, bounded by a timeout and never retried. Callers
// are expected to have a deterministic fallback for every failure.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/solvdai/solvd/internal/config"
	"github.com/solvdai/solvd/internal/logging"
)

var (
	// ErrEmptyResponse indicates the model returned no content.
	ErrEmptyResponse = errors.New("empty model response")

	// ErrNotConfigured indicates no API key is available.
	ErrNotConfigured = errors.New("llm api key not configured")
)

const (
	defaultTimeout     = 30 * time.Second
	defaultTemperature = 0.3
	defaultMaxTokens   = 2048
)

// Completer sends a system and user prompt and returns the model's text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Client is a Completer backed by a langchaingo model.
type Client struct {
	model       llms.Model
	limiter     *rate.Limiter
	timeout     time.Duration
	temperature float64
	maxTokens   int
	logger      *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit sets the sustained calls per second and burst. A zero rate
// disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New builds an OpenAI-compatible client from config. It returns
// ErrNotConfigured when no API key is set.
func New(cfg config.LLMConfig, opts ...Option) (*Client, error) {
	if !cfg.APIKey.IsSet() {
		return nil, ErrNotConfigured
	}
	if p := strings.ToLower(cfg.Provider); p != "" && p != "openai" {
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}

	lcOpts := []openai.Option{
		openai.WithToken(cfg.APIKey.Value()),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		lcOpts = append(lcOpts, openai.WithBaseURL(cfg.BaseURL))
	}
	model, err := openai.New(lcOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}

	base := []Option{WithTimeout(cfg.Timeout), WithRateLimit(cfg.RateLimit, cfg.Burst)}
	return NewWithModel(model, append(base, opts...)...), nil
}

// NewWithModel wraps an existing langchaingo model.
func NewWithModel(model llms.Model, opts ...Option) *Client {
	c := &Client{
		model:       model,
		limiter:     rate.NewLimiter(rate.Inf, 0),
		timeout:     defaultTimeout,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete asks the model for a JSON answer.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.model.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, system),
			llms.TextParts(llms.ChatMessageTypeHuman, user),
		},
		llms.WithJSONMode(),
		llms.WithTemperature(c.temperature),
		llms.WithMaxTokens(c.maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", ErrEmptyResponse
	}

	c.logger.Debug(ctx, "model call complete",
		zap.Duration("duration", time.Since(start)),
		zap.Int("response_bytes", len(resp.Choices[0].Content)))
	return resp.Choices[0].Content, nil
}

var _ Completer = (*Client)(nil)
