package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utility-explorer/intelligence/internal/classify"
	"github.com/utility-explorer/intelligence/internal/fallback"
	"github.com/utility-explorer/intelligence/internal/forecast"
	"github.com/utility-explorer/intelligence/internal/observability"
	"github.com/utility-explorer/intelligence/internal/resolve"
	"github.com/utility-explorer/intelligence/internal/retrieve"
	"github.com/utility-explorer/intelligence/internal/storage"
)

type fakeClassifier struct{ res classify.Result }

func (f *fakeClassifier) Classify(context.Context, string) classify.Result { return f.res }

type fakeResolver struct {
	filter     resolve.GeoFilter
	metrics    []storage.MetricMetadata
	metricsErr error
	forecastM  *storage.MetricMetadata
}

func (f *fakeResolver) ResolveGeo(context.Context, string) resolve.GeoFilter { return f.filter }

func (f *fakeResolver) FactMetrics(context.Context, string) ([]storage.MetricMetadata, error) {
	return f.metrics, f.metricsErr
}

func (f *fakeResolver) ForecastMetric(context.Context, string) (*storage.MetricMetadata, error) {
	if f.forecastM == nil {
		return nil, resolve.ErrNoMetric
	}
	return f.forecastM, nil
}

type fakeRetriever struct{ res retrieve.Result }

func (f *fakeRetriever) Retrieve(context.Context, string, resolve.GeoFilter, []storage.MetricMetadata) retrieve.Result {
	return f.res
}

type fakeForecaster struct{ res forecast.Result }

func (f *fakeForecaster) Forecast(context.Context, storage.MetricMetadata, string) forecast.Result {
	return f.res
}

type fakeFallback struct {
	res    fallback.Result
	called bool
}

func (f *fakeFallback) Answer(context.Context, string) fallback.Result {
	f.called = true
	return f.res
}

type fakeSearcher struct {
	chunks []string
	called bool
}

func (f *fakeSearcher) TopChunks(context.Context, string) []string {
	f.called = true
	return f.chunks
}

type recordingLogger struct {
	logs []storage.QueryLog
	err  error
}

func (r *recordingLogger) Create(_ context.Context, log *storage.QueryLog) error {
	r.logs = append(r.logs, *log)
	return r.err
}

func newAgent(c IntentClassifier, r Resolver, ret Retriever, fc Forecaster, fb FallbackRouter, logs QueryLogger) *Agent {
	return New(c, r, ret, fc, fb, nil, logs, observability.NopLogger(), 0.6)
}

func TestHandle_FactRetrievalAnswered(t *testing.T) {
	classifier := &fakeClassifier{res: classify.Result{Intent: classify.IntentFactRetrieval, Confidence: 0.95}}
	resolver := &fakeResolver{
		filter:  resolve.GeoFilter{GeoID: "48", Display: "Texas"},
		metrics: []storage.MetricMetadata{{MetricID: "ELECTRICITY_RETAIL_PRICE_CENTS_PER_KWH"}},
	}
	retriever := &fakeRetriever{res: retrieve.Result{
		Answer: "Here is the latest data for Texas:\nElectricity retail price in Texas: 14.5 cents/kWh (period 2025-02-01)",
		Found:  true,
	}}
	fb := &fakeFallback{}
	logs := &recordingLogger{}

	resp := newAgent(classifier, resolver, retriever, &fakeForecaster{}, fb, logs).
		Handle(context.Background(), "What is the electricity price in Texas?")

	assert.Contains(t, resp.Answer, "Texas")
	assert.Contains(t, resp.Answer, "14.5")
	assert.Equal(t, []string{}, resp.Sources)
	assert.Nil(t, resp.Visualization)
	assert.False(t, fb.called)

	require.Len(t, logs.logs, 1)
	assert.Equal(t, storage.QueryStatusAnswered, logs.logs[0].Status)
	assert.Equal(t, "fact_retrieval", logs.logs[0].Intent)
}

func TestHandle_OutOfScopeRefusal(t *testing.T) {
	classifier := &fakeClassifier{res: classify.Result{
		Intent:       classify.IntentOutOfScope,
		Confidence:   1.0,
		ResponseText: classify.RefusalMessage,
	}}
	fb := &fakeFallback{}
	logs := &recordingLogger{}

	resp := newAgent(classifier, &fakeResolver{}, &fakeRetriever{}, &fakeForecaster{}, fb, logs).
		Handle(context.Background(), "Show me the weather")

	assert.Equal(t, classify.RefusalMessage, resp.Answer)
	assert.False(t, fb.called)

	require.Len(t, logs.logs, 1)
	assert.Equal(t, storage.QueryStatusOutOfScope, logs.logs[0].Status)
}

func TestHandle_NoDataTriggersFallback(t *testing.T) {
	classifier := &fakeClassifier{res: classify.Result{Intent: classify.IntentFactRetrieval, Confidence: 0.95}}
	resolver := &fakeResolver{metrics: []storage.MetricMetadata{{MetricID: "X"}}}
	retriever := &fakeRetriever{res: retrieve.Result{Found: false}}
	fb := &fakeFallback{res: fallback.Result{
		Answer:  fallback.ApologyMessage,
		Sources: []string{fallback.SourceTag},
	}}
	logs := &recordingLogger{}

	resp := newAgent(classifier, resolver, retriever, &fakeForecaster{}, fb, logs).
		Handle(context.Background(), "obscure question")

	assert.True(t, fb.called)
	assert.Equal(t, fallback.ApologyMessage, resp.Answer)
	assert.True(t, resp.DebugMeta.UsedFallback)

	require.Len(t, logs.logs, 1)
	assert.Equal(t, storage.QueryStatusError, logs.logs[0].Status)
}

func TestHandle_LowConfidenceTriggersFallback(t *testing.T) {
	classifier := &fakeClassifier{res: classify.Result{Intent: classify.IntentFactRetrieval, Confidence: 0.4}}
	fb := &fakeFallback{res: fallback.Result{
		Answer:  "Here is what I found:\n(geo_id=48, value=14.5)",
		Sources: []string{fallback.SourceTag},
	}}
	logs := &recordingLogger{}

	resp := newAgent(classifier, &fakeResolver{}, &fakeRetriever{}, &fakeForecaster{}, fb, logs).
		Handle(context.Background(), "vague question")

	assert.True(t, fb.called)
	assert.Equal(t, []string{fallback.SourceTag}, resp.Sources)

	require.Len(t, logs.logs, 1)
	assert.Equal(t, storage.QueryStatusLowConfidence, logs.logs[0].Status)
}

func TestHandle_UnknownIntentTriggersFallback(t *testing.T) {
	classifier := &fakeClassifier{res: classify.Result{Intent: classify.IntentUnknown, Confidence: 0.0}}
	fb := &fakeFallback{res: fallback.Result{Answer: "answer", Sources: []string{fallback.SourceTag}}}
	logs := &recordingLogger{}

	newAgent(classifier, &fakeResolver{}, &fakeRetriever{}, &fakeForecaster{}, fb, logs).
		Handle(context.Background(), "???")

	assert.True(t, fb.called)
	require.Len(t, logs.logs, 1)
	assert.Equal(t, storage.QueryStatusLowConfidence, logs.logs[0].Status)
}

func TestHandle_ForecastPath(t *testing.T) {
	classifier := &fakeClassifier{res: classify.Result{Intent: classify.IntentForecast, Confidence: 0.95}}
	resolver := &fakeResolver{
		filter:    resolve.GeoFilter{GeoID: "48", Display: "Texas"},
		forecastM: &storage.MetricMetadata{MetricID: "ELECTRICITY_RETAIL_PRICE_CENTS_PER_KWH"},
	}
	forecaster := &fakeForecaster{res: forecast.Result{Answer: "predicted 30.00"}}
	fb := &fakeFallback{}
	logs := &recordingLogger{}

	resp := newAgent(classifier, resolver, &fakeRetriever{}, forecaster, fb, logs).
		Handle(context.Background(), "predict the electricity price in Texas")

	assert.Equal(t, "predicted 30.00", resp.Answer)
	assert.False(t, fb.called)
	assert.Equal(t, "48", resp.DebugMeta.GeoID)
}

func TestHandle_ForecastNoDataFallsBack(t *testing.T) {
	classifier := &fakeClassifier{res: classify.Result{Intent: classify.IntentForecast, Confidence: 0.95}}
	resolver := &fakeResolver{forecastM: &storage.MetricMetadata{MetricID: "X"}}
	forecaster := &fakeForecaster{res: forecast.Result{Answer: "Not enough historical data", NoData: true}}
	fb := &fakeFallback{res: fallback.Result{Answer: "generated", Sources: []string{fallback.SourceTag}}}

	resp := newAgent(classifier, resolver, &fakeRetriever{}, forecaster, fb, &recordingLogger{}).
		Handle(context.Background(), "predict something")

	assert.True(t, fb.called)
	assert.Equal(t, "generated", resp.Answer)
}

func TestHandle_KnowledgeContextAppendedToFactAnswer(t *testing.T) {
	classifier := &fakeClassifier{res: classify.Result{Intent: classify.IntentFactRetrieval, Confidence: 0.95}}
	resolver := &fakeResolver{
		filter:  resolve.GeoFilter{GeoID: "48", Display: "Texas"},
		metrics: []storage.MetricMetadata{{MetricID: "ELECTRICITY_RETAIL_PRICE_CENTS_PER_KWH"}},
	}
	retriever := &fakeRetriever{res: retrieve.Result{Answer: "Electricity retail price in Texas: 14.5 cents/kWh", Found: true}}
	searcher := &fakeSearcher{chunks: []string{"Texas deregulated its retail market in 2002."}}
	logs := &recordingLogger{}

	resp := New(classifier, resolver, retriever, &fakeForecaster{}, &fakeFallback{}, searcher, logs, observability.NopLogger(), 0.6).
		Handle(context.Background(), "Why is the electricity price in Texas what it is?")

	assert.Contains(t, resp.Answer, "14.5")
	assert.Contains(t, resp.Answer, "Context found:")
	assert.Contains(t, resp.Answer, "- Texas deregulated its retail market in 2002.")

	// The audit record carries the answer as served, context included.
	require.Len(t, logs.logs, 1)
	assert.Contains(t, logs.logs[0].Answer, "Context found:")
}

func TestHandle_KnowledgeContextAppendedToFallbackAnswer(t *testing.T) {
	classifier := &fakeClassifier{res: classify.Result{Intent: classify.IntentFactRetrieval, Confidence: 0.4}}
	fb := &fakeFallback{res: fallback.Result{Answer: "generated answer", Sources: []string{fallback.SourceTag}}}
	searcher := &fakeSearcher{chunks: []string{"background fact"}}

	resp := New(classifier, &fakeResolver{}, &fakeRetriever{}, &fakeForecaster{}, fb, searcher, &recordingLogger{}, observability.NopLogger(), 0.6).
		Handle(context.Background(), "vague question")

	assert.True(t, fb.called)
	assert.Contains(t, resp.Answer, "generated answer")
	assert.Contains(t, resp.Answer, "Context found:\n- background fact")
}

func TestHandle_KnowledgeSkippedForOutOfScope(t *testing.T) {
	classifier := &fakeClassifier{res: classify.Result{
		Intent:       classify.IntentOutOfScope,
		Confidence:   1.0,
		ResponseText: classify.RefusalMessage,
	}}
	searcher := &fakeSearcher{chunks: []string{"irrelevant"}}

	resp := New(classifier, &fakeResolver{}, &fakeRetriever{}, &fakeForecaster{}, &fakeFallback{}, searcher, &recordingLogger{}, observability.NopLogger(), 0.6).
		Handle(context.Background(), "Show me the weather")

	assert.False(t, searcher.called)
	assert.Equal(t, classify.RefusalMessage, resp.Answer)
}

func TestHandle_NoMatchingChunksLeavesAnswerUnchanged(t *testing.T) {
	classifier := &fakeClassifier{res: classify.Result{Intent: classify.IntentFactRetrieval, Confidence: 0.95}}
	resolver := &fakeResolver{metrics: []storage.MetricMetadata{{MetricID: "X"}}}
	retriever := &fakeRetriever{res: retrieve.Result{Answer: "plain answer", Found: true}}
	searcher := &fakeSearcher{}

	resp := New(classifier, resolver, retriever, &fakeForecaster{}, &fakeFallback{}, searcher, &recordingLogger{}, observability.NopLogger(), 0.6).
		Handle(context.Background(), "question")

	assert.True(t, searcher.called)
	assert.Equal(t, "plain answer", resp.Answer)
}

func TestHandle_LogWriteFailureSwallowed(t *testing.T) {
	classifier := &fakeClassifier{res: classify.Result{
		Intent: classify.IntentOutOfScope, Confidence: 1.0, ResponseText: classify.RefusalMessage,
	}}
	logs := &recordingLogger{err: assert.AnError}

	resp := newAgent(classifier, &fakeResolver{}, &fakeRetriever{}, &fakeForecaster{}, &fakeFallback{}, logs).
		Handle(context.Background(), "Show me the weather")

	assert.Equal(t, classify.RefusalMessage, resp.Answer)
}
