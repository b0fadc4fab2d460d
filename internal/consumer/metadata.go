// Package consumer ingests metric-definition events from the metadata
// stream and keeps the metric catalog and its embeddings current.
package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/utility-explorer/intelligence/internal/embedding"
	"github.com/utility-explorer/intelligence/internal/observability"
	"github.com/utility-explorer/intelligence/internal/storage"
)

// Event is one metric-definition message on the metadata topic.
type Event struct {
	MetricID     string `json:"metricId"`
	Description  string `json:"description"`
	DisplayName  string `json:"displayName"`
	UnitLabel    string `json:"unitLabel"`
	SourceSystem string `json:"sourceSystem"`
}

// Upserter writes catalog entries.
type Upserter interface {
	Upsert(ctx context.Context, m *storage.MetricMetadata) error
}

// Config holds consumer configuration.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
	Backoff time.Duration
}

// MetadataConsumer is the long-lived background reader. It retries with
// a fixed backoff while the stream is unreachable and never exits until
// the context is canceled.
type MetadataConsumer struct {
	reader   *kafka.Reader
	metrics  Upserter
	embedder embedding.Embedder
	backoff  time.Duration
	logger   *observability.Logger
}

// New creates a metadata consumer.
func New(cfg Config, metrics Upserter, embedder embedding.Embedder, logger *observability.Logger) *MetadataConsumer {
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return &MetadataConsumer{
		reader:   reader,
		metrics:  metrics,
		embedder: embedder,
		backoff:  backoff,
		logger:   logger.WithComponent("metadata-consumer"),
	}
}

// Run consumes until the context is canceled. Fetch errors back off and
// retry; malformed events are logged and skipped, never fatal.
func (c *MetadataConsumer) Run(ctx context.Context) {
	c.logger.Info().
		Str("topic", c.reader.Config().Topic).
		Str("group", c.reader.Config().GroupID).
		Msg("metadata consumer starting")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info().Msg("metadata consumer stopping")
				return
			}
			c.logger.Warn().Err(err).Dur("backoff", c.backoff).Msg("stream not ready, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.backoff):
			}
			continue
		}

		c.handleEvent(ctx, msg.Value)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Warn().Err(err).Msg("offset commit failed")
		}
	}
}

// handleEvent upserts one metric definition with a fresh embedding.
// Invalid payloads and downstream failures are skipped so a single bad
// event can never wedge the stream.
func (c *MetadataConsumer) handleEvent(ctx context.Context, value []byte) {
	var event Event
	if err := json.Unmarshal(value, &event); err != nil {
		c.logger.Warn().Err(err).Msg("undecodable metric definition, skipping")
		return
	}
	if event.MetricID == "" || event.Description == "" {
		c.logger.Warn().Str("metric_id", event.MetricID).Msg("incomplete metric definition, skipping")
		return
	}

	vector, err := c.embedder.EmbedSingle(ctx, event.Description)
	if err != nil {
		c.logger.Error().Err(err).Str("metric_id", event.MetricID).Msg("embedding failed, skipping definition")
		return
	}

	m := &storage.MetricMetadata{
		MetricID:     event.MetricID,
		Name:         event.DisplayName,
		Description:  event.Description,
		Unit:         event.UnitLabel,
		SourceSystem: event.SourceSystem,
		Embedding:    embedding.Float64s(vector),
	}
	if err := c.metrics.Upsert(ctx, m); err != nil {
		c.logger.Error().Err(err).Str("metric_id", event.MetricID).Msg("catalog upsert failed")
		return
	}
	c.logger.Info().Str("metric_id", event.MetricID).Msg("metric definition registered")
}

// Close releases the underlying stream reader.
func (c *MetadataConsumer) Close() error {
	return c.reader.Close()
}
