// Package agent orchestrates the query pipeline: classify, resolve,
// retrieve or forecast, and route to the generative fallback when the
// rule-based path comes up empty.
package agent

import (
	"context"

	"github.com/utility-explorer/intelligence/internal/classify"
	"github.com/utility-explorer/intelligence/internal/fallback"
	"github.com/utility-explorer/intelligence/internal/forecast"
	"github.com/utility-explorer/intelligence/internal/observability"
	"github.com/utility-explorer/intelligence/internal/resolve"
	"github.com/utility-explorer/intelligence/internal/retrieve"
	"github.com/utility-explorer/intelligence/internal/storage"
)

// DefaultLowConfidenceThreshold routes rule-based intents below it to
// the generative fallback.
const DefaultLowConfidenceThreshold = 0.6

// IntentClassifier decides the task type of a question.
type IntentClassifier interface {
	Classify(ctx context.Context, question string) classify.Result
}

// Resolver extracts geo and metric identifiers from a question.
type Resolver interface {
	ResolveGeo(ctx context.Context, question string) resolve.GeoFilter
	FactMetrics(ctx context.Context, question string) ([]storage.MetricMetadata, error)
	ForecastMetric(ctx context.Context, question string) (*storage.MetricMetadata, error)
}

// Retriever answers fact questions from the warehouse.
type Retriever interface {
	Retrieve(ctx context.Context, question string, filter resolve.GeoFilter, metrics []storage.MetricMetadata) retrieve.Result
}

// Forecaster projects a metric forward for one location.
type Forecaster interface {
	Forecast(ctx context.Context, metric storage.MetricMetadata, geoID string) forecast.Result
}

// FallbackRouter produces a generative answer.
type FallbackRouter interface {
	Answer(ctx context.Context, question string) fallback.Result
}

// ContextSearcher retrieves supplementary knowledge chunks for a
// question.
type ContextSearcher interface {
	TopChunks(ctx context.Context, question string) []string
}

// QueryLogger records the audit trail.
type QueryLogger interface {
	Create(ctx context.Context, log *storage.QueryLog) error
}

// Response is the pipeline output returned to the API layer.
type Response struct {
	Answer        string                  `json:"answer"`
	Sources       []string                `json:"sources"`
	Visualization *retrieve.Visualization `json:"visualization,omitempty"`
	DebugMeta     *DebugMeta              `json:"debug_meta,omitempty"`
}

// DebugMeta exposes routing decisions for troubleshooting.
type DebugMeta struct {
	Intent       string  `json:"intent"`
	Confidence   float64 `json:"confidence"`
	GeoID        string  `json:"geo_id,omitempty"`
	UsedFallback bool    `json:"used_fallback"`
}

// Agent runs the full pipeline for one question at a time.
type Agent struct {
	classifier IntentClassifier
	resolver   Resolver
	retriever  Retriever
	forecaster Forecaster
	fallback   FallbackRouter
	knowledge  ContextSearcher
	logs       QueryLogger
	logger     *observability.Logger

	lowConfidence float64
}

// New creates an agent. The context searcher and query logger may be
// nil; supplementary context and auditing are then skipped.
func New(classifier IntentClassifier, resolver Resolver, retriever Retriever, forecaster Forecaster, fb FallbackRouter, knowledge ContextSearcher, logs QueryLogger, logger *observability.Logger, lowConfidence float64) *Agent {
	if lowConfidence <= 0 {
		lowConfidence = DefaultLowConfidenceThreshold
	}
	return &Agent{
		classifier:    classifier,
		resolver:      resolver,
		retriever:     retriever,
		forecaster:    forecaster,
		fallback:      fb,
		knowledge:     knowledge,
		logs:          logs,
		logger:        logger.WithComponent("agent"),
		lowConfidence: lowConfidence,
	}
}

// Handle answers one question end to end and writes the audit record.
func (a *Agent) Handle(ctx context.Context, question string) Response {
	intent := a.classifier.Classify(ctx, question)

	var (
		answer  string
		sources []string
		viz     *retrieve.Visualization
		status  storage.QueryStatus
		usedFB  bool
		geoID   string
	)

	switch intent.Intent {
	case classify.IntentOutOfScope:
		answer = intent.ResponseText
		status = storage.QueryStatusOutOfScope

	case classify.IntentUnknown:
		answer, sources = a.runFallback(ctx, question)
		status = storage.QueryStatusLowConfidence
		usedFB = true

	default:
		if intent.Confidence < a.lowConfidence {
			answer, sources = a.runFallback(ctx, question)
			status = storage.QueryStatusLowConfidence
			usedFB = true
			break
		}

		filter := a.resolver.ResolveGeo(ctx, question)
		geoID = filter.GeoID
		var found bool
		if intent.Intent == classify.IntentForecast {
			answer, found = a.runForecast(ctx, question, filter)
		} else {
			answer, sources, viz, found = a.runRetrieval(ctx, question, filter)
		}
		status = storage.QueryStatusAnswered
		if !found {
			answer, sources = a.runFallback(ctx, question)
			usedFB = true
		}
	}

	if usedFB && answer == fallback.ApologyMessage {
		status = storage.QueryStatusError
	}

	// Supplementary knowledge is appended for every in-scope question,
	// whichever path produced the answer.
	if intent.Intent != classify.IntentOutOfScope && a.knowledge != nil {
		if chunks := a.knowledge.TopChunks(ctx, question); len(chunks) > 0 {
			answer += retrieve.FormatContext(chunks)
		}
	}

	a.writeLog(ctx, question, intent, status, answer)

	if sources == nil {
		sources = []string{}
	}
	meta := &DebugMeta{
		Intent:       string(intent.Intent),
		Confidence:   intent.Confidence,
		GeoID:        geoID,
		UsedFallback: usedFB,
	}
	return Response{Answer: answer, Sources: sources, Visualization: viz, DebugMeta: meta}
}

// runRetrieval executes the fact path. A false return routes to the
// generative fallback.
func (a *Agent) runRetrieval(ctx context.Context, question string, filter resolve.GeoFilter) (string, []string, *retrieve.Visualization, bool) {
	metrics, err := a.resolver.FactMetrics(ctx, question)
	if err != nil {
		a.logger.Warn().Err(err).Msg("metric resolution failed")
		return "", nil, nil, false
	}

	res := a.retriever.Retrieve(ctx, question, filter, metrics)
	if !res.Found {
		return "", nil, nil, false
	}
	return res.Answer, res.Sources, res.Visualization, true
}

// runForecast executes the forecast path. A false return routes to the
// generative fallback.
func (a *Agent) runForecast(ctx context.Context, question string, filter resolve.GeoFilter) (string, bool) {
	metric, err := a.resolver.ForecastMetric(ctx, question)
	if err != nil {
		a.logger.Warn().Err(err).Msg("forecast metric resolution failed")
		return "", false
	}

	res := a.forecaster.Forecast(ctx, *metric, filter.GeoID)
	if res.NoData {
		return "", false
	}
	return res.Answer, true
}

func (a *Agent) runFallback(ctx context.Context, question string) (string, []string) {
	res := a.fallback.Answer(ctx, question)
	return res.Answer, res.Sources
}

// writeLog records the audit entry. Failures are logged and swallowed;
// they never block the response.
func (a *Agent) writeLog(ctx context.Context, question string, intent classify.Result, status storage.QueryStatus, answer string) {
	if a.logs == nil {
		return
	}
	err := a.logs.Create(ctx, &storage.QueryLog{
		Question:   question,
		Intent:     string(intent.Intent),
		Confidence: intent.Confidence,
		Status:     status,
		Answer:     answer,
	})
	if err != nil {
		a.logger.Warn().Err(err).Msg("query log write failed")
	}
}
