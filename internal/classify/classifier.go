// Package classify routes free-text questions to a task intent. The
// decision is a strict linear list: semantic guardrail first, then the
// auxiliary classifier, then an unknown fallback. No stage backtracks
// into an earlier one.
package classify

import (
	"context"
	"fmt"

	"github.com/utility-explorer/intelligence/internal/embedding"
	"github.com/utility-explorer/intelligence/internal/nlp"
	"github.com/utility-explorer/intelligence/internal/observability"
)

// Intent is the closed set of task types the pipeline understands.
type Intent string

const (
	IntentFactRetrieval Intent = "fact_retrieval"
	IntentForecast      Intent = "forecast"
	IntentUnknown       Intent = "unknown"
	IntentOutOfScope    Intent = "out_of_scope"
)

// RefusalMessage is returned verbatim for out-of-scope questions.
const RefusalMessage = "I can only assist with utility, energy, and usage data questions. Please stick to the topic."

// MinDomainSimilarity is the floor a question must clear against the
// in-domain anchors to pass the guardrail.
const MinDomainSimilarity = 0.25

// classifierConfidence is assigned to any auxiliary-classifier
// prediction; the prediction itself is trusted unconditionally.
const classifierConfidence = 0.95

// Anchor phrases the guardrail scores against. Fixed at build time;
// their embeddings are computed once at startup.
var (
	outOfScopeAnchors = []string{
		"how is the weather",
		"who won the game",
		"latest movie reviews",
		"cooking recipes",
		"politics news",
		"baseball scores",
	}
	domainAnchors = []string{
		"electricity price",
		"energy consumption",
		"utility rates",
		"compare state costs",
		"renewable energy trends",
		"kwh usage",
	}
)

// Result is the classification outcome for one question.
type Result struct {
	Intent       Intent  `json:"intent"`
	Confidence   float64 `json:"confidence"`
	ResponseText string  `json:"response_text,omitempty"`
}

// Classifier decides whether a question is in scope and, if so, which
// task it asks for.
type Classifier struct {
	embedder embedding.Embedder
	labeler  nlp.IntentLabeler
	logger   *observability.Logger

	oosVectors    [][]float32
	domainVectors [][]float32
}

// NewClassifier builds a classifier and precomputes the anchor
// embeddings. The labeler may be nil; classification then degrades to
// the unknown fallback for in-scope questions. When the embedding
// endpoint is unreachable at startup the guardrail is disabled instead
// of failing construction.
func NewClassifier(ctx context.Context, embedder embedding.Embedder, labeler nlp.IntentLabeler, logger *observability.Logger) (*Classifier, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	c := &Classifier{
		embedder: embedder,
		labeler:  labeler,
		logger:   logger.WithComponent("classifier"),
	}

	oos, err := embedAll(ctx, embedder, outOfScopeAnchors)
	if err != nil {
		c.logger.Warn().Err(err).Msg("anchor embedding failed, guardrail disabled")
		return c, nil
	}
	domain, err := embedAll(ctx, embedder, domainAnchors)
	if err != nil {
		c.logger.Warn().Err(err).Msg("anchor embedding failed, guardrail disabled")
		return c, nil
	}
	c.oosVectors, c.domainVectors = oos, domain
	return c, nil
}

func embedAll(ctx context.Context, embedder embedding.Embedder, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := embedder.EmbedSingle(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Classify runs the decision list for one question.
func (c *Classifier) Classify(ctx context.Context, question string) Result {
	qv, err := c.embedder.EmbedSingle(ctx, question)
	switch {
	case err != nil:
		// Without an embedding the guardrail cannot run; fall through to
		// the auxiliary classifier rather than refusing service.
		c.logger.Warn().Err(err).Msg("question embedding failed, skipping guardrail")
	case len(c.domainVectors) == 0:
		// Guardrail disabled at startup.
	default:
		maxOOS := maxSimilarity(qv, c.oosVectors)
		maxDomain := maxSimilarity(qv, c.domainVectors)
		c.logger.Debug().
			Float64("domain_score", maxDomain).
			Float64("oos_score", maxOOS).
			Msg("guardrail scores")

		if maxOOS > maxDomain || maxDomain < MinDomainSimilarity {
			return Result{
				Intent:       IntentOutOfScope,
				Confidence:   1.0,
				ResponseText: RefusalMessage,
			}
		}
	}

	if c.labeler != nil {
		label, err := c.labeler.Predict(ctx, question)
		if err == nil {
			return Result{
				Intent:     labelToIntent(label),
				Confidence: classifierConfidence,
			}
		}
		c.logger.Warn().Err(err).Msg("auxiliary classifier prediction failed")
	}

	return Result{
		Intent:       IntentUnknown,
		Confidence:   0.0,
		ResponseText: "The request could not be classified.",
	}
}

func maxSimilarity(qv []float32, anchors [][]float32) float64 {
	best := 0.0
	for i, av := range anchors {
		score := embedding.Cosine(qv, av)
		if i == 0 || score > best {
			best = score
		}
	}
	return best
}

func labelToIntent(label string) Intent {
	switch label {
	case string(IntentFactRetrieval):
		return IntentFactRetrieval
	case string(IntentForecast):
		return IntentForecast
	default:
		return IntentUnknown
	}
}
