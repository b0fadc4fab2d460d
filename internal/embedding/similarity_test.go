package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine_SelfSimilarity(t *testing.T) {
	v := []float32{0.3, -1.2, 4.5, 0.01}
	assert.InDelta(t, 1.0, Cosine(v, v), 1e-9)
}

func TestCosine_Negation(t *testing.T) {
	v := []float32{1.0, 2.0, -3.0}
	neg := []float32{-1.0, -2.0, 3.0}
	assert.InDelta(t, -1.0, Cosine(v, neg), 1e-9)
}

func TestCosine_ZeroVector(t *testing.T) {
	v := []float32{1.0, 2.0, 3.0}
	zero := []float32{0, 0, 0}

	// Exactly zero, not approximately: the zero-magnitude guard must not
	// go through the division at all.
	assert.Equal(t, 0.0, Cosine(v, zero))
	assert.Equal(t, 0.0, Cosine(zero, v))
	assert.Equal(t, 0.0, Cosine(zero, zero))
}

func TestCosine_DimensionMismatch(t *testing.T) {
	assert.Equal(t, 0.0, Cosine([]float32{1, 2}, []float32{1, 2, 3}))
	assert.Equal(t, 0.0, Cosine(nil, []float32{1}))
}

func TestCosine_Orthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	assert.InDelta(t, 0.0, Cosine(a, b), 1e-9)
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder(64)

	a, err := m.EmbedSingle(context.Background(), "electricity price in Texas")
	require.NoError(t, err)
	b, err := m.EmbedSingle(context.Background(), "electricity price in Texas")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.InDelta(t, 1.0, Cosine(a, b), 1e-6)
}

func TestMockEmbedder_RelatedTextScoresHigher(t *testing.T) {
	m := NewMockEmbedder(64)
	ctx := context.Background()

	q, _ := m.EmbedSingle(ctx, "electricity price")
	near, _ := m.EmbedSingle(ctx, "electricity prices")
	far, _ := m.EmbedSingle(ctx, "zzzz qqqq xxxx")

	assert.Greater(t, Cosine(q, near), Cosine(q, far))
}

func TestFloatConversions_RoundTrip(t *testing.T) {
	v := []float32{0.5, -1.25, 3.75}
	assert.Equal(t, v, Float32s(Float64s(v)))
	assert.Nil(t, Float64s(nil))
	assert.Nil(t, Float32s(nil))
}
