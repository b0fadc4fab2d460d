// Package nlp provides clients for the external language-analysis
// collaborators: a named-entity recognizer and an auxiliary intent
// classifier. Both are optional; a nil client degrades the pipeline to
// reduced functionality instead of failing the service.
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

// Entity is a typed span returned by the recognizer.
type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// EntityRecognizer extracts typed entity spans from raw text.
type EntityRecognizer interface {
	Entities(ctx context.Context, text string) ([]Entity, error)
}

// NERClient calls an external entity-recognition endpoint.
type NERClient struct {
	httpClient *http.Client
	baseURL    string
}

// NERConfig holds recognizer client configuration.
type NERConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewNERClient creates a new recognizer client.
func NewNERClient(cfg NERConfig) (*NERClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("NER base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NERClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
	}, nil
}

type nerRequest struct {
	Text string `json:"text"`
}

type nerResponse struct {
	Entities []Entity `json:"entities"`
}

// Entities returns all entity spans detected in the text.
func (c *NERClient) Entities(ctx context.Context, text string) ([]Entity, error) {
	body, err := json.Marshal(nerRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/entities", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("NER error: status %d, body: %s", resp.StatusCode, string(data))
	}

	var out nerResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return out.Entities, nil
}

var _ EntityRecognizer = (*NERClient)(nil)

// GPELabel is the geopolitical-entity label; the only label the
// resolver consumes.
const GPELabel = "GPE"

// Locations filters entities down to geopolitical spans, in order of
// appearance.
func Locations(entities []Entity) []string {
	var out []string
	for _, e := range entities {
		if e.Label == GPELabel {
			out = append(out, e.Text)
		}
	}
	return out
}
