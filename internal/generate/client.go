// Package generate talks to an OpenAI-compatible chat completions endpoint.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

const (
	completionsPath = "/v1/chat/completions"
	maxErrorBody    = 512

	defaultTimeout   = 120 * time.Second
	defaultRetryBase = 500 * time.Millisecond
)

// Generator turns a prompt into generated text.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Request is a single-turn prompt.
type Request struct {
	System string
	User   string
}

// Config configures a Client.
type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerMinute int
	// RetryBase is the first backoff interval; it doubles on each retry.
	RetryBase time.Duration
}

// Client is a Generator backed by HTTP.
type Client struct {
	hc        *http.Client
	baseURL   string
	apiKey    string
	model     string
	retries   uint64
	retryBase time.Duration
	limiter   *rate.Limiter
	logger    *slog.Logger
}

var _ Generator = (*Client)(nil)

// NewClient builds a Client. A zero RequestsPerMinute disables rate limiting.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base := cfg.RetryBase
	if base <= 0 {
		base = defaultRetryBase
	}
	c := &Client{
		hc:        &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		retries:   uint64(max(cfg.MaxRetries, 0)),
		retryBase: base,
		logger:    logger,
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends req and returns the first choice's text. Transport errors,
// 429 and 5xx responses are retried with exponential backoff.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingCredential
	}

	payload := chatRequest{Model: c.model}
	if req.System != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: req.System})
	}
	payload.Messages = append(payload.Messages, chatMessage{Role: "user", Content: req.User})

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("generate: marshal: %w", err)
	}

	var out string
	attempt := 0
	backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(c.retryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		text, err := c.once(ctx, body)
		if err != nil {
			if retryable(err) {
				c.logger.Warn("generate: attempt failed",
					slog.Int("attempt", attempt),
					slog.String("error", err.Error()))
				return retry.RetryableError(err)
			}
			return err
		}
		out = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func (c *Client) once(ctx context.Context, body []byte) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			// The next token would arrive after the deadline.
			return "", fmt.Errorf("generate: rate limit: %w: %w", context.DeadlineExceeded, err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("generate: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt := data
		if len(excerpt) > maxErrorBody {
			excerpt = excerpt[:maxErrorBody]
		}
		return "", &StatusError{Code: resp.StatusCode, Body: string(excerpt)}
	}

	var result chatResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return "", &DecodeError{Err: err}
	}
	if len(result.Choices) == 0 {
		return "", ErrEmptyResult
	}
	text := strings.TrimSpace(result.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResult
	}
	return text, nil
}
