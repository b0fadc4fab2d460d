package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// IntentLabeler predicts a task label from a small fixed label set
// (e.g. "fact_retrieval", "forecast").
type IntentLabeler interface {
	Predict(ctx context.Context, question string) (string, error)
}

// ClassifierClient calls an external text-classifier endpoint.
type ClassifierClient struct {
	httpClient *http.Client
	baseURL    string
}

// ClassifierConfig holds classifier client configuration.
type ClassifierConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewClassifierClient creates a new classifier client.
func NewClassifierClient(cfg ClassifierConfig) (*ClassifierClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("classifier base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ClassifierClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
	}, nil
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Label string `json:"label"`
}

// Predict returns the predicted task label for the question.
func (c *ClassifierClient) Predict(ctx context.Context, question string) (string, error) {
	body, err := json.Marshal(classifyRequest{Text: question})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("classifier error: status %d, body: %s", resp.StatusCode, string(data))
	}

	var out classifyResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if out.Label == "" {
		return "", fmt.Errorf("classifier returned no label")
	}
	return out.Label, nil
}

var _ IntentLabeler = (*ClassifierClient)(nil)
