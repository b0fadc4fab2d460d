// Package resolve maps free-text questions to structured identifiers:
// a geographic filter from entity recognition plus keyword scanning,
// and a ranked metric list from hybrid embedding-and-keyword scoring.
package resolve

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/utility-explorer/intelligence/internal/embedding"
	"github.com/utility-explorer/intelligence/internal/geo"
	"github.com/utility-explorer/intelligence/internal/nlp"
	"github.com/utility-explorer/intelligence/internal/observability"
	"github.com/utility-explorer/intelligence/internal/storage"
)

// ErrNoMetric signals that no metric could be resolved at all, not even
// the price fallback. Callers route this to the generative fallback.
var ErrNoMetric = errors.New("no metric resolved")

// Keyword boosts added on top of embedding similarity when the question
// and the metric id hit the same synonym set.
const (
	FactBoost     = 0.25
	ForecastBoost = 0.2
)

// Fact-path selection policy.
const (
	factAcceptScore    = 0.45
	factAmbiguousScore = 0.3
	factAmbiguityRatio = 0.9
	defaultMaxMetrics  = 3
	fallbackIDFragment = "PRICE"
)

var (
	moneyTerms = []string{"price", "cost", "rate", "bill"}
	usageTerms = []string{"sales", "consumption", "usage", "kwh"}
)

// MetricCatalog is the slice of the metric registry the resolver reads.
type MetricCatalog interface {
	ListWithEmbeddings(ctx context.Context) ([]storage.MetricMetadata, error)
	FirstWithIDContaining(ctx context.Context, fragment string) (*storage.MetricMetadata, error)
}

// GeoFilter is the resolved geographic scope of a question. An empty
// GeoID means no location was detected and list/aggregate mode applies.
type GeoFilter struct {
	GeoID    string
	Display  string
	Level    storage.GeoLevel
	HasLevel bool
}

// ScoredMetric pairs a catalog entry with its boosted similarity score.
type ScoredMetric struct {
	Metric storage.MetricMetadata
	Score  float64
}

// Resolver turns question text into geo and metric identifiers.
type Resolver struct {
	embedder   embedding.Embedder
	recognizer nlp.EntityRecognizer
	catalog    MetricCatalog
	logger     *observability.Logger
	maxMetrics int
}

// NewResolver creates a resolver. The recognizer may be nil; location
// detection is then skipped and questions run in list/aggregate mode.
func NewResolver(embedder embedding.Embedder, recognizer nlp.EntityRecognizer, catalog MetricCatalog, logger *observability.Logger) *Resolver {
	return &Resolver{
		embedder:   embedder,
		recognizer: recognizer,
		catalog:    catalog,
		logger:     logger.WithComponent("resolver"),
		maxMetrics: defaultMaxMetrics,
	}
}

// SetMaxMetrics overrides the fact-path metric cap. Values below 1 are
// ignored.
func (r *Resolver) SetMaxMetrics(n int) {
	if n >= 1 {
		r.maxMetrics = n
	}
}

// ResolveGeo extracts the geographic scope of a question. Only the
// first detected location is used; multi-location questions are not
// disambiguated. Level detection runs independently of entity
// extraction, so a question with no location can still carry a level
// filter. Recognizer failures degrade to no location, never an error.
func (r *Resolver) ResolveGeo(ctx context.Context, question string) GeoFilter {
	var filter GeoFilter

	if level, ok := geo.DetectLevel(question); ok {
		filter.Level = storage.GeoLevel(level)
		filter.HasLevel = true
	}

	if r.recognizer == nil {
		return filter
	}

	entities, err := r.recognizer.Entities(ctx, question)
	if err != nil {
		r.logger.Warn().Err(err).Msg("entity recognition failed, skipping geo filter")
		return filter
	}

	locations := nlp.Locations(entities)
	if len(locations) == 0 {
		return filter
	}

	found := locations[0]
	filter.GeoID = geo.Resolve(found)
	filter.Display = geo.DisplayName(filter.GeoID)
	r.logger.Debug().
		Str("location", found).
		Str("geo_id", filter.GeoID).
		Msg("location resolved")
	return filter
}

// RankMetrics scores every embedded catalog entry against the question
// and returns them in descending boosted-score order.
func (r *Resolver) RankMetrics(ctx context.Context, question string, boost float64) ([]ScoredMetric, error) {
	metrics, err := r.catalog.ListWithEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	if len(metrics) == 0 {
		return nil, nil
	}

	qv, err := r.embedder.EmbedSingle(ctx, question)
	if err != nil {
		return nil, err
	}

	ranked := make([]ScoredMetric, 0, len(metrics))
	for _, m := range metrics {
		score := embedding.Cosine(qv, embedding.Float32s(m.Embedding))
		if keywordMatch(question, m.MetricID) {
			score += boost
		}
		ranked = append(ranked, ScoredMetric{Metric: m, Score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked, nil
}

// FactMetrics selects a capped number of metrics for the fact-retrieval path.
// A metric qualifies on a strong absolute score, or on a moderate score
// close enough to the top to count as genuine ambiguity. When nothing
// qualifies the first catalog entry whose id contains "PRICE" is used.
func (r *Resolver) FactMetrics(ctx context.Context, question string) ([]storage.MetricMetadata, error) {
	ranked, err := r.RankMetrics(ctx, question, FactBoost)
	if err != nil {
		return nil, err
	}

	var selected []storage.MetricMetadata
	if len(ranked) > 0 {
		top := ranked[0].Score
		for _, sm := range ranked {
			if len(selected) >= r.maxMetrics {
				break
			}
			if sm.Score > factAcceptScore || (sm.Score > factAmbiguousScore && sm.Score >= factAmbiguityRatio*top) {
				selected = append(selected, sm.Metric)
			}
		}
	}

	if len(selected) > 0 {
		return selected, nil
	}

	fallback, err := r.catalog.FirstWithIDContaining(ctx, fallbackIDFragment)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoMetric
	}
	if err != nil {
		return nil, err
	}
	r.logger.Debug().Str("metric_id", fallback.MetricID).Msg("no metric qualified, using price fallback")
	return []storage.MetricMetadata{*fallback}, nil
}

// ForecastMetric selects the single best-matched metric for the
// forecast path.
func (r *Resolver) ForecastMetric(ctx context.Context, question string) (*storage.MetricMetadata, error) {
	ranked, err := r.RankMetrics(ctx, question, ForecastBoost)
	if err != nil {
		return nil, err
	}
	if len(ranked) > 0 {
		return &ranked[0].Metric, nil
	}

	fallback, err := r.catalog.FirstWithIDContaining(ctx, fallbackIDFragment)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoMetric
	}
	if err != nil {
		return nil, err
	}
	return fallback, nil
}

// keywordMatch reports whether the question and the metric id hit the
// same synonym set. The boost is applied once even when both sets hit.
func keywordMatch(question, metricID string) bool {
	q := strings.ToLower(question)
	id := strings.ToLower(metricID)
	return setMatch(q, id, moneyTerms) || setMatch(q, id, usageTerms)
}

func setMatch(question, metricID string, terms []string) bool {
	questionHit := false
	for _, t := range terms {
		if strings.Contains(question, t) {
			questionHit = true
			break
		}
	}
	if !questionHit {
		return false
	}
	for _, t := range terms {
		if strings.Contains(metricID, t) {
			return true
		}
	}
	return false
}
