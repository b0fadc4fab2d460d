package resolve

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utility-explorer/intelligence/internal/nlp"
	"github.com/utility-explorer/intelligence/internal/observability"
	"github.com/utility-explorer/intelligence/internal/storage"
)

type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (s *stubEmbedder) Model() string  { return "stub" }
func (s *stubEmbedder) Dimension() int { return 3 }

type fakeCatalog struct {
	metrics []storage.MetricMetadata
}

func (f *fakeCatalog) ListWithEmbeddings(context.Context) ([]storage.MetricMetadata, error) {
	return f.metrics, nil
}

func (f *fakeCatalog) FirstWithIDContaining(_ context.Context, fragment string) (*storage.MetricMetadata, error) {
	for _, m := range f.metrics {
		if strings.Contains(m.MetricID, fragment) {
			return &m, nil
		}
	}
	return nil, storage.ErrNotFound
}

type fakeRecognizer struct {
	entities []nlp.Entity
	err      error
}

func (f *fakeRecognizer) Entities(context.Context, string) ([]nlp.Entity, error) {
	return f.entities, f.err
}

func metric(id string, emb storage.Vector) storage.MetricMetadata {
	return storage.MetricMetadata{MetricID: id, Name: id, Embedding: emb}
}

func TestRankMetrics_BoostIsExact(t *testing.T) {
	// Question and metric id both hit the money set; the boosted score
	// must exceed the raw cosine by exactly the fact boost.
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"what is the electricity price": {0.6, 0.8, 0},
	}}
	catalog := &fakeCatalog{metrics: []storage.MetricMetadata{
		metric("ELECTRICITY_RETAIL_PRICE_CENTS_PER_KWH", storage.Vector{1, 0, 0}),
	}}
	r := NewResolver(embedder, nil, catalog, observability.NopLogger())

	ranked, err := r.RankMetrics(context.Background(), "what is the electricity price", FactBoost)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.InDelta(t, 0.6+0.25, ranked[0].Score, 1e-9)
}

func TestRankMetrics_NoBoostWithoutQuestionTerm(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"tell me about texas": {0.6, 0.8, 0},
	}}
	catalog := &fakeCatalog{metrics: []storage.MetricMetadata{
		metric("ELECTRICITY_RETAIL_PRICE_CENTS_PER_KWH", storage.Vector{1, 0, 0}),
	}}
	r := NewResolver(embedder, nil, catalog, observability.NopLogger())

	ranked, err := r.RankMetrics(context.Background(), "tell me about texas", FactBoost)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.InDelta(t, 0.6, ranked[0].Score, 1e-9)
}

func TestRankMetrics_UsageSetBoost(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"kwh consumption by state": {1, 0, 0},
	}}
	catalog := &fakeCatalog{metrics: []storage.MetricMetadata{
		metric("RESIDENTIAL_SALES_MWH", storage.Vector{0, 1, 0}),
	}}
	r := NewResolver(embedder, nil, catalog, observability.NopLogger())

	ranked, err := r.RankMetrics(context.Background(), "kwh consumption by state", ForecastBoost)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.InDelta(t, 0.2, ranked[0].Score, 1e-9)
}

func TestFactMetrics_SelectionPolicy(t *testing.T) {
	question := "compare values"
	embedder := &stubEmbedder{vectors: map[string][]float32{
		question: {1, 0, 0},
	}}
	// Scores are the raw cosines; no boost terms appear in the question.
	catalog := &fakeCatalog{metrics: []storage.MetricMetadata{
		metric("METRIC_A", storage.Vector{0.42, 0.9075, 0}), // 0.42, ambiguity branch
		metric("METRIC_B", storage.Vector{0.40, 0.9165, 0}), // 0.40, within 90% of top
		metric("METRIC_C", storage.Vector{0.20, 0.9798, 0}), // 0.20, rejected
	}}
	r := NewResolver(embedder, nil, catalog, observability.NopLogger())

	selected, err := r.FactMetrics(context.Background(), question)
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, "METRIC_A", selected[0].MetricID)
	assert.Equal(t, "METRIC_B", selected[1].MetricID)
}

func TestFactMetrics_CapsAtThree(t *testing.T) {
	question := "compare values"
	embedder := &stubEmbedder{vectors: map[string][]float32{
		question: {1, 0, 0},
	}}
	catalog := &fakeCatalog{metrics: []storage.MetricMetadata{
		metric("METRIC_A", storage.Vector{1, 0, 0}),
		metric("METRIC_B", storage.Vector{0.99, 0.141, 0}),
		metric("METRIC_C", storage.Vector{0.98, 0.199, 0}),
		metric("METRIC_D", storage.Vector{0.97, 0.243, 0}),
	}}
	r := NewResolver(embedder, nil, catalog, observability.NopLogger())

	selected, err := r.FactMetrics(context.Background(), question)
	require.NoError(t, err)
	assert.Len(t, selected, 3)
}

func TestFactMetrics_PriceFallback(t *testing.T) {
	question := "something unrelated"
	embedder := &stubEmbedder{vectors: map[string][]float32{
		question: {0, 0, 1},
	}}
	catalog := &fakeCatalog{metrics: []storage.MetricMetadata{
		metric("GAS_SALES_MCF", storage.Vector{1, 0, 0}),
		metric("ELECTRICITY_RETAIL_PRICE_CENTS_PER_KWH", storage.Vector{0, 1, 0}),
	}}
	r := NewResolver(embedder, nil, catalog, observability.NopLogger())

	selected, err := r.FactMetrics(context.Background(), question)
	require.NoError(t, err)
	require.Len(t, selected, 1)
	assert.Equal(t, "ELECTRICITY_RETAIL_PRICE_CENTS_PER_KWH", selected[0].MetricID)
}

func TestFactMetrics_NoMetricAtAll(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{}}
	r := NewResolver(embedder, nil, &fakeCatalog{}, observability.NopLogger())

	_, err := r.FactMetrics(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrNoMetric)
}

func TestForecastMetric_SingleBest(t *testing.T) {
	question := "predict electricity price"
	embedder := &stubEmbedder{vectors: map[string][]float32{
		question: {1, 0, 0},
	}}
	catalog := &fakeCatalog{metrics: []storage.MetricMetadata{
		metric("GAS_SALES_MCF", storage.Vector{0, 1, 0}),
		metric("ELECTRICITY_RETAIL_PRICE_CENTS_PER_KWH", storage.Vector{0.9, 0.436, 0}),
	}}
	r := NewResolver(embedder, nil, catalog, observability.NopLogger())

	m, err := r.ForecastMetric(context.Background(), question)
	require.NoError(t, err)
	assert.Equal(t, "ELECTRICITY_RETAIL_PRICE_CENTS_PER_KWH", m.MetricID)
}

func TestResolveGeo_FirstLocationWins(t *testing.T) {
	rec := &fakeRecognizer{entities: []nlp.Entity{
		{Text: "next month", Label: "DATE"},
		{Text: "Ohio", Label: "GPE"},
		{Text: "Michigan", Label: "GPE"},
	}}
	r := NewResolver(&stubEmbedder{}, rec, &fakeCatalog{}, observability.NopLogger())

	filter := r.ResolveGeo(context.Background(), "compare Ohio and Michigan")
	assert.Equal(t, "39", filter.GeoID)
	assert.Equal(t, "Ohio", filter.Display)
}

func TestResolveGeo_UnknownLocationPassesThrough(t *testing.T) {
	rec := &fakeRecognizer{entities: []nlp.Entity{{Text: "Springfield", Label: "GPE"}}}
	r := NewResolver(&stubEmbedder{}, rec, &fakeCatalog{}, observability.NopLogger())

	filter := r.ResolveGeo(context.Background(), "prices in Springfield")
	assert.Equal(t, "Springfield", filter.GeoID)
}

func TestResolveGeo_LevelWithoutRecognizer(t *testing.T) {
	r := NewResolver(&stubEmbedder{}, nil, &fakeCatalog{}, observability.NopLogger())

	filter := r.ResolveGeo(context.Background(), "electricity price by state")
	assert.Empty(t, filter.GeoID)
	assert.True(t, filter.HasLevel)
	assert.Equal(t, storage.GeoLevelState, filter.Level)
}

func TestResolveGeo_RecognizerErrorDegrades(t *testing.T) {
	rec := &fakeRecognizer{err: assert.AnError}
	r := NewResolver(&stubEmbedder{}, rec, &fakeCatalog{}, observability.NopLogger())

	filter := r.ResolveGeo(context.Background(), "electricity price in Texas")
	assert.Empty(t, filter.GeoID)
}
