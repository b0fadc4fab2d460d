// Package forecast fits a linear trend over a metric's history for one
// location and extrapolates 30 days past the last observation.
package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/utility-explorer/intelligence/internal/geo"
	"github.com/utility-explorer/intelligence/internal/observability"
	"github.com/utility-explorer/intelligence/internal/storage"
)

// DefaultGeoID is used when no location is resolved from the question.
const DefaultGeoID = "48" // Texas

// horizon is the fixed extrapolation offset. Not calendar-aware; the
// projection lands 30 days after the last period regardless of month
// length.
const horizon = 30 * 24 * time.Hour

// FailureMessage is returned when fetch, fit or predict fails for any
// reason. Forecast errors are never propagated as server errors.
const FailureMessage = "An error occurred while generating the forecast."

// HistoryStore is the slice of the warehouse the engine reads.
type HistoryStore interface {
	History(ctx context.Context, metricID, geoID string, level storage.GeoLevel) ([]storage.FactValue, error)
}

// Result is the outcome of one forecast. NoData routes the question to
// the generative fallback.
type Result struct {
	Answer string
	NoData bool
}

// Engine produces linear forecasts.
type Engine struct {
	history HistoryStore
	logger  *observability.Logger
}

// NewEngine creates a forecast engine.
func NewEngine(history HistoryStore, logger *observability.Logger) *Engine {
	return &Engine{history: history, logger: logger.WithComponent("forecast")}
}

// Forecast predicts the metric's value for one location 30 days after
// the last observation. History is always read at STATE level.
func (e *Engine) Forecast(ctx context.Context, metric storage.MetricMetadata, geoID string) Result {
	if geoID == "" {
		geoID = DefaultGeoID
	}
	display := geo.DisplayName(geoID)

	history, err := e.history.History(ctx, metric.MetricID, geoID, storage.GeoLevelState)
	if err != nil {
		e.logger.Error().Err(err).Str("metric_id", metric.MetricID).Msg("history fetch failed")
		return Result{Answer: FailureMessage}
	}

	if len(history) < 2 {
		return Result{
			Answer: fmt.Sprintf("Not enough historical data to generate a forecast for %s (%s).", display, geoID),
			NoData: true,
		}
	}

	xs := make([]float64, len(history))
	ys := make([]float64, len(history))
	for i, h := range history {
		xs[i] = float64(h.PeriodStart.Unix())
		ys[i] = h.Value
	}
	lastDate := history[len(history)-1].PeriodStart

	nextDate := lastDate.Add(horizon)
	predicted, ok := linearPredict(xs, ys, float64(nextDate.Unix()))
	if !ok {
		e.logger.Error().Str("metric_id", metric.MetricID).Msg("degenerate history, all periods identical")
		return Result{Answer: FailureMessage}
	}

	label := metric.Name
	if label == "" {
		label = metric.MetricID
	}
	answer := fmt.Sprintf(
		"Based on historical data for %s, the model predicts %s will be approximately %.2f %s on %s. This is a generated prediction, not a historical fact.",
		display, label, predicted, metric.Unit, nextDate.Format("2006-01-02"))
	return Result{Answer: answer}
}

// linearPredict fits ordinary least squares through (xs, ys) and
// evaluates the line at xq. Computation is centered on the means to
// keep precision with epoch-second magnitudes. Returns false when all
// xs coincide and no line exists.
func linearPredict(xs, ys []float64, xq float64) (float64, bool) {
	n := float64(len(xs))
	var xm, ym float64
	for i := range xs {
		xm += xs[i]
		ym += ys[i]
	}
	xm /= n
	ym /= n

	var num, den float64
	for i := range xs {
		dx := xs[i] - xm
		num += dx * (ys[i] - ym)
		den += dx * dx
	}
	if den == 0 {
		return 0, false
	}
	slope := num / den
	return ym + slope*(xq-xm), true
}
