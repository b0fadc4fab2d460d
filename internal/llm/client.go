// Package llm wraps the local inference endpoint used for the
// text-to-SQL fallback path.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config holds LLM client configuration.
type Config struct {
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Client talks to an Ollama-compatible endpoint.
type Client struct {
	api         *api.Client
	model       string
	temperature float64
}

// NewClient creates a new LLM client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("LLM model is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		// Local CPU inference is slow; a short timeout just truncates answers.
		timeout = 60 * time.Second
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse LLM base URL: %w", err)
	}

	return &Client{
		api:         api.NewClient(u, &http.Client{Timeout: timeout}),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Generate runs a single non-streaming completion and returns the
// trimmed response text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]interface{}{
			"temperature": c.temperature,
		},
	}

	var sb strings.Builder
	err := c.api.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}

// Health verifies the endpoint is reachable.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.api.List(ctx)
	return err
}

var _ Generator = (*Client)(nil)

// StripFences removes markdown code fences the model may emit despite
// being told not to.
func StripFences(s string) string {
	s = strings.ReplaceAll(s, "```sql", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
