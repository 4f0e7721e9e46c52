// Package oracle talks to the external reasoning service that proposes
// cognitive profiles and slots. Answers are advisory; callers validate them.
package oracle

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

	"go.uber.org/zap"

	"github.com/harrisonrobin/effitime/pkg/util"
)

const (
	DefaultEndpoint    = "https://openrouter.ai/api/v1/chat/completions"
	DefaultModel       = "openai/gpt-5-mini"
	DefaultTemperature = 0.2
	DefaultTimeout     = 30 * time.Second

	maxResponseBytes = 10 * 1024 * 1024
	debugContentSize = 2000
)

// Oracle answers one system+user prompt pair with raw model text.
type Oracle interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Config configures the OpenRouter client.
type Config struct {
	Endpoint    string
	Model       string
	APIKey      string
	Timeout     time.Duration
	Temperature float64
	SiteURL     string
	Title       string
	Debug       bool
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	Messages    []message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

// OpenRouterClient is an Oracle backed by the OpenRouter chat completions
// API. Each Complete call is exactly one HTTP request; retries belong to the
// caller.
type OpenRouterClient struct {
	cfg        Config
	httpClient *http.Client
	log        *zap.Logger
}

// NewOpenRouterClient fills unset config fields with defaults. The API key
// is never defaulted.
func NewOpenRouterClient(cfg Config, log *zap.Logger) *OpenRouterClient {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.SiteURL == "" {
		cfg.SiteURL = "http://localhost"
	}
	if cfg.Title == "" {
		cfg.Title = "effitime"
	}
	return &OpenRouterClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.Named("oracle"),
	}
}

// Model returns the configured model identifier.
func (c *OpenRouterClient) Model() string { return c.cfg.Model }

// Complete sends one chat completion request and returns the first choice.
func (c *OpenRouterClient) Complete(ctx context.Context, system, user string) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		c.log.Error("api key not configured")
		return "", newError(ErrConfiguration, nil, "OPENROUTER_API_KEY is not set")
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	payload, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("oracle: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", newError(ErrConfiguration, err, "building request for %s", c.cfg.Endpoint)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("HTTP-Referer", c.cfg.SiteURL)
	req.Header.Set("X-Title", c.cfg.Title)

	c.log.Debug("request",
		zap.String("model", c.cfg.Model),
		zap.Duration("timeout", c.cfg.Timeout),
		zap.Int("payload_bytes", len(payload)),
		zap.Int("system_len", len(system)),
		zap.Int("user_len", len(user)),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("request failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return "", newError(ErrUnavailable, err, "POST %s", c.cfg.Endpoint)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", newError(ErrUnavailable, err, "reading response body")
	}
	elapsed := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		c.log.Error("http error",
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", elapsed),
			zap.Int("body_len", len(body)),
			zap.String("body", util.Truncate(string(body), debugContentSize)),
		)
		return "", statusError(resp.StatusCode, body)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", newError(ErrResponseInvalid, err, "decoding completion envelope")
	}
	if parsed.Error != nil {
		return "", newError(ErrUnavailable, nil, "api error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", Invalid("no completion returned")
	}

	content := parsed.Choices[0].Message.Content
	fields := []zap.Field{
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed),
		zap.Int("content_len", len(content)),
	}
	if parsed.Usage != nil {
		fields = append(fields, zap.Int("total_tokens", parsed.Usage.TotalTokens))
	}
	c.log.Debug("response", fields...)
	if c.cfg.Debug {
		c.log.Debug("content", zap.String("raw", util.Truncate(content, debugContentSize)))
	}
	return content, nil
}

func statusError(code int, body []byte) error {
	snippet := util.Truncate(strings.TrimSpace(string(body)), 200)
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return newError(ErrConfiguration, nil, "rejected credential (status %d): %s", code, snippet)
	case code == http.StatusTooManyRequests || code >= 500:
		return newError(ErrUnavailable, nil, "status %d: %s", code, snippet)
	default:
		return newError(ErrResponseInvalid, nil, "status %d: %s", code, snippet)
	}
}

// IsTimeout reports whether err came from a deadline expiring.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
