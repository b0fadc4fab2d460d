// Package fallback answers questions the rule-based pipeline could not:
// it asks an LLM for a SQL statement over the known schema, validates
// it, and runs it through a read-only executor.
package fallback

import (
	"context"
	"fmt"
	"strings"

	"github.com/utility-explorer/intelligence/internal/llm"
	"github.com/utility-explorer/intelligence/internal/observability"
	"github.com/utility-explorer/intelligence/internal/storage"
)

// SourceTag marks answers produced by the generative path so consumers
// can treat them differently from rule-based answers.
const SourceTag = "ai-generated"

// User-visible messages for the degenerate outcomes.
const (
	ApologyMessage = "Sorry, the AI assistant could not produce an answer for that question. Please try rephrasing."
	NoDataMessage  = "The generated query executed successfully but returned no data."
)

// MetricLister supplies the live metric registry for the schema prompt.
type MetricLister interface {
	ListWithEmbeddings(ctx context.Context) ([]storage.MetricMetadata, error)
}

// Executor runs a validated statement and returns one formatted string
// per row.
type Executor interface {
	Query(ctx context.Context, query string) ([]string, error)
}

// Result is the generative answer.
type Result struct {
	Answer  string
	Sources []string
}

// Router drives the text-to-SQL fallback.
type Router struct {
	generator llm.Generator
	executor  Executor
	metrics   MetricLister
	logger    *observability.Logger
}

// NewRouter creates a fallback router. The generator may be nil when no
// LLM endpoint is configured; every question then gets the apology.
func NewRouter(generator llm.Generator, executor Executor, metrics MetricLister, logger *observability.Logger) *Router {
	return &Router{
		generator: generator,
		executor:  executor,
		metrics:   metrics,
		logger:    logger.WithComponent("fallback"),
	}
}

// Answer generates, validates and executes one SQL statement for the
// question. Every failure mode degrades to a user-visible message;
// nothing is executed unless the statement passes validation.
func (r *Router) Answer(ctx context.Context, question string) Result {
	apology := Result{Answer: ApologyMessage, Sources: []string{SourceTag}}

	if r.generator == nil {
		return apology
	}

	var registry []storage.MetricMetadata
	if r.metrics != nil {
		var err error
		registry, err = r.metrics.ListWithEmbeddings(ctx)
		if err != nil {
			r.logger.Warn().Err(err).Msg("metric registry unavailable for prompt")
		}
	}

	raw, err := r.generator.Generate(ctx, llm.SQLPrompt(question, registry))
	if err != nil {
		r.logger.Error().Err(err).Msg("LLM generation failed")
		return apology
	}

	query := llm.StripFences(raw)
	if !strings.Contains(strings.ToUpper(query), "SELECT") {
		r.logger.Warn().Str("output", truncate(query, 200)).Msg("LLM output contains no SELECT, refusing to execute")
		return apology
	}
	if err := ValidateReadOnly(query); err != nil {
		r.logger.Warn().Err(err).Str("query", truncate(query, 200)).Msg("generated statement rejected")
		return apology
	}

	rows, err := r.executor.Query(ctx, query)
	if err != nil {
		r.logger.Error().Err(err).Str("query", truncate(query, 200)).Msg("generated statement failed to execute")
		return apology
	}
	if len(rows) == 0 {
		return Result{Answer: NoDataMessage, Sources: []string{SourceTag}}
	}

	return Result{
		Answer:  fmt.Sprintf("Here is what I found:\n%s", strings.Join(rows, "\n")),
		Sources: []string{SourceTag},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
