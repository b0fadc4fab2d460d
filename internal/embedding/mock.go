package embedding

import (
	"context"
	"math"
)

// MockEmbedder provides a deterministic embedder for testing. The vector
// is a normalized character histogram, so related strings score higher
// than unrelated ones without any model round trip.
type MockEmbedder struct {
	dimension int
}

// NewMockEmbedder creates a mock embedder.
func NewMockEmbedder(dimension int) *MockEmbedder {
	if dimension <= 0 {
		dimension = 64
	}
	return &MockEmbedder{dimension: dimension}
}

// EmbedSingle generates a deterministic embedding for the text.
func (m *MockEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, m.dimension)
	for i, r := range text {
		vec[(int(r)+i)%m.dimension] += 1.0
	}

	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	if sum > 0 {
		norm := float32(1.0 / math.Sqrt(sum))
		for i := range vec {
			vec[i] *= norm
		}
	}
	return vec, nil
}

// Model returns the mock model name.
func (m *MockEmbedder) Model() string {
	return "mock-embedding-model"
}

// Dimension returns the embedding dimension.
func (m *MockEmbedder) Dimension() int {
	return m.dimension
}

var _ Embedder = (*MockEmbedder)(nil)
