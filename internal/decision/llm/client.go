// Package llm is a decision source backed by an OpenAI-compatible chat
// completions endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

// Config describes the chat completions endpoint.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	// PromptCandles caps how many of the most recent candles are sent.
	PromptCandles int
}

// Client is a domain.DecisionSource.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

var _ domain.DecisionSource = (*Client)(nil)

// ErrEmptyReply is returned when the model answers without choices or
// without a JSON object.
var ErrEmptyReply = errors.New("llm: empty reply")

// New creates a Client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.PromptCandles <= 0 {
		cfg.PromptCandles = 30
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(slog.String("component", "llm")),
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Decide sends the snapshot to the model and parses its JSON answer. HTTP and
// decoding failures are returned as errors so the tick skips the decision.
func (c *Client) Decide(ctx context.Context, snap domain.MarketSnapshot) (domain.RawDecision, error) {
	prompt, err := userPrompt(snap, c.cfg.PromptCandles)
	if err != nil {
		return domain.RawDecision{}, fmt.Errorf("llm: build prompt: %w", err)
	}

	start := time.Now()
	content, err := c.complete(ctx, []message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return domain.RawDecision{}, err
	}

	raw, err := ParseReply(content)
	if err != nil {
		return domain.RawDecision{}, err
	}
	c.logger.InfoContext(ctx, "decision received",
		slog.String("symbol", snap.Symbol),
		slog.String("action", raw.Action),
		slog.Float64("confidence", raw.Confidence),
		slog.Duration("latency", time.Since(start)),
	)
	return raw, nil
}

func (c *Client) complete(ctx context.Context, msgs []message) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:          c.cfg.Model,
		Messages:       msgs,
		Temperature:    c.cfg.Temperature,
		MaxTokens:      c.cfg.MaxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("llm: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm: status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return out.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
