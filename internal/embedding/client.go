// Package embedding provides embedding generation and similarity scoring.
package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// Embedder defines the interface for embedding generation. Embeddings are
// deterministic for the same input and model version, and comparable
// across calls within one process lifetime.
type Embedder interface {
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimension() int
}

// Client generates embeddings via a local Ollama instance.
type Client struct {
	client    *ollama.Client
	model     string
	dimension int
}

// Config holds embedding client configuration.
type Config struct {
	BaseURL   string // Default: http://localhost:11434
	Model     string // e.g. "all-minilm" (384 dimensions)
	Dimension int
	Timeout   time.Duration
}

// NewClient creates a new embedding client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "all-minilm"
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 384
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	parsedURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	hc := &http.Client{Timeout: timeout}

	return &Client{
		client:    ollama.NewClient(parsedURL, hc),
		model:     cfg.Model,
		dimension: cfg.Dimension,
	}, nil
}

// EmbedSingle generates an embedding for a single text.
func (c *Client) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.Embed(ctx, &ollama.EmbedRequest{
		Model: c.model,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	vec := resp.Embeddings[0]
	if len(vec) > 0 && c.dimension != len(vec) {
		c.dimension = len(vec)
	}
	return vec, nil
}

// Model returns the model being used.
func (c *Client) Model() string {
	return c.model
}

// Dimension returns the embedding dimension.
func (c *Client) Dimension() int {
	return c.dimension
}

var _ Embedder = (*Client)(nil)
