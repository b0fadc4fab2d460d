// Package retrieve answers fact-retrieval questions from the statistics
// warehouse. Each resolved metric is handled independently and the
// per-metric lines are accumulated into one multi-metric answer.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/utility-explorer/intelligence/internal/geo"
	"github.com/utility-explorer/intelligence/internal/observability"
	"github.com/utility-explorer/intelligence/internal/resolve"
	"github.com/utility-explorer/intelligence/internal/storage"
)

// Visualization payload types.
const (
	VizTypeMap = "map"
	VizTypeBar = "bar"
)

// vizKeywords trigger the list-all visualization path instead of the
// min/max range summary.
var vizKeywords = []string{"map", "chart", "graph", "compare", "across", "list", "distribution"}

// FactStore is the slice of the warehouse the engine reads. An empty
// sourceID or level widens the lookup to any source or level.
type FactStore interface {
	LatestForGeo(ctx context.Context, metricID, geoID string, level storage.GeoLevel) (*storage.FactValue, error)
	LatestPeriodStart(ctx context.Context, metricID, sourceID string) (time.Time, error)
	RowsForPeriod(ctx context.Context, metricID, sourceID string, level storage.GeoLevel, periodStart time.Time) ([]storage.FactValue, error)
	MinMax(ctx context.Context, metricID, sourceID string, level storage.GeoLevel, periodStart time.Time) (min, max *storage.FactValue, err error)
}

// Point is one location's value inside a visualization payload.
type Point struct {
	GeoID string  `json:"geo_id"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Visualization is the renderable payload attached to list-style
// answers. At most one is emitted per answer; the first metric that
// triggers it wins.
type Visualization struct {
	Type     string  `json:"type"`
	MetricID string  `json:"metric_id"`
	Unit     string  `json:"unit,omitempty"`
	Period   string  `json:"period"`
	Points   []Point `json:"points"`
}

// Result is the outcome of one retrieval pass. Found is false when no
// metric yielded a record, which routes the question to the generative
// fallback.
type Result struct {
	Answer        string
	Sources       []string
	Visualization *Visualization
	Found         bool
}

// Engine executes structured retrieval over resolved identifiers.
type Engine struct {
	facts  FactStore
	logger *observability.Logger
}

// NewEngine creates a retrieval engine.
func NewEngine(facts FactStore, logger *observability.Logger) *Engine {
	return &Engine{facts: facts, logger: logger.WithComponent("retrieval")}
}

// Retrieve builds an answer for the question from the resolved geo
// filter and metric list. Storage errors on individual metrics are
// logged and skipped; only a fully empty pass reports not found.
func (e *Engine) Retrieve(ctx context.Context, question string, filter resolve.GeoFilter, metrics []storage.MetricMetadata) Result {
	level := storage.GeoLevelState
	if filter.HasLevel {
		level = filter.Level
	}

	var (
		lines   []string
		viz     *Visualization
		sources = map[string]struct{}{}
	)

	for _, m := range metrics {
		var line string
		if filter.GeoID != "" {
			line = e.latestLine(ctx, m, filter)
		} else {
			line, viz = e.aggregateLine(ctx, question, m, level, viz)
		}
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if m.SourceSystem != "" {
			sources[m.SourceSystem] = struct{}{}
		}
	}

	if len(lines) == 0 {
		return Result{Found: false}
	}

	header := "Here is the latest data across locations:"
	if filter.GeoID != "" {
		header = fmt.Sprintf("Here is the latest data for %s:", filter.Display)
	}

	return Result{
		Answer:        header + "\n" + strings.Join(lines, "\n"),
		Sources:       sortedKeys(sources),
		Visualization: viz,
		Found:         true,
	}
}

// latestLine reports the most recent record of the metric for one
// resolved location. A detected level narrows the lookup; without one
// any level matches.
func (e *Engine) latestLine(ctx context.Context, m storage.MetricMetadata, filter resolve.GeoFilter) string {
	var level storage.GeoLevel
	if filter.HasLevel {
		level = filter.Level
	}
	fv, err := e.facts.LatestForGeo(ctx, m.MetricID, filter.GeoID, level)
	if errors.Is(err, storage.ErrNotFound) {
		return ""
	}
	if err != nil {
		e.logger.Error().Err(err).Str("metric_id", m.MetricID).Msg("latest record lookup failed")
		return ""
	}

	display := filter.Display
	if display == "" {
		display = geo.DisplayName(fv.GeoID)
	}
	return fmt.Sprintf("%s in %s: %s %s (period %s)",
		metricLabel(m), display, formatValue(fv.Value), m.Unit, formatPeriod(fv.PeriodStart))
}

// aggregateLine handles the no-location path: a visualization payload
// when the question asks for one, otherwise a min/max range summary.
// The incoming viz pointer is returned unchanged once set; only the
// first metric populates it.
func (e *Engine) aggregateLine(ctx context.Context, question string, m storage.MetricMetadata, level storage.GeoLevel, viz *Visualization) (string, *Visualization) {
	periodStart, err := e.facts.LatestPeriodStart(ctx, m.MetricID, m.SourceSystem)
	if errors.Is(err, storage.ErrNotFound) {
		return "", viz
	}
	if err != nil {
		e.logger.Error().Err(err).Str("metric_id", m.MetricID).Msg("latest period lookup failed")
		return "", viz
	}
	period := formatPeriod(periodStart)

	if wantsVisualization(question) {
		rows, err := e.facts.RowsForPeriod(ctx, m.MetricID, m.SourceSystem, level, periodStart)
		if err != nil {
			e.logger.Error().Err(err).Str("metric_id", m.MetricID).Msg("row listing failed")
			return "", viz
		}
		if len(rows) == 0 {
			return "", viz
		}

		if viz == nil {
			vizType := VizTypeBar
			if level == storage.GeoLevelState {
				vizType = VizTypeMap
			}
			points := make([]Point, 0, len(rows))
			for _, row := range rows {
				points = append(points, Point{
					GeoID: row.GeoID,
					Name:  geo.DisplayName(row.GeoID),
					Value: row.Value,
				})
			}
			viz = &Visualization{
				Type:     vizType,
				MetricID: m.MetricID,
				Unit:     m.Unit,
				Period:   period,
				Points:   points,
			}
		}
		line := fmt.Sprintf("%s across %d locations (period %s).", metricLabel(m), len(rows), period)
		return line, viz
	}

	min, max, err := e.facts.MinMax(ctx, m.MetricID, m.SourceSystem, level, periodStart)
	if errors.Is(err, storage.ErrNotFound) {
		return "", viz
	}
	if err != nil {
		e.logger.Error().Err(err).Str("metric_id", m.MetricID).Msg("min/max lookup failed")
		return "", viz
	}

	line := fmt.Sprintf("%s ranges from %s %s in %s to %s %s in %s (period %s).",
		metricLabel(m),
		formatValue(min.Value), m.Unit, geo.DisplayName(min.GeoID),
		formatValue(max.Value), m.Unit, geo.DisplayName(max.GeoID),
		period)
	return line, viz
}

func wantsVisualization(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range vizKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

func metricLabel(m storage.MetricMetadata) string {
	if m.Name != "" {
		return m.Name
	}
	return m.MetricID
}

// formatValue renders a number without trailing zero noise, so 14.5
// prints as "14.5" and 21 as "21".
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatPeriod renders a reporting period start as its calendar date.
func formatPeriod(t time.Time) string {
	return t.Format("2006-01-02")
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
