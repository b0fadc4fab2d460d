package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrNotFound = errors.New("record not found")
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// FactValueRepository reads observations from the statistics warehouse.
type FactValueRepository struct {
	db DB
}

// NewFactValueRepository creates a new fact value repository.
func NewFactValueRepository(db DB) *FactValueRepository {
	return &FactValueRepository{db: db}
}

const factColumns = "metric_id, source_id, geo_level, geo_id, period_start, period_end, value_numeric"

// LatestPeriodStart returns the start of the most recent reporting
// period that has data for the metric, optionally scoped to one
// reporting source. An empty sourceID matches any source.
func (r *FactValueRepository) LatestPeriodStart(ctx context.Context, metricID, sourceID string) (time.Time, error) {
	query := `
		SELECT period_start FROM fact_values
		WHERE metric_id = $1
	`
	args := []interface{}{metricID}
	if sourceID != "" {
		query += ` AND source_id = $2`
		args = append(args, sourceID)
	}
	query += ` ORDER BY period_start DESC LIMIT 1`

	var start time.Time
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&start)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	return start, err
}

// RowsForPeriod returns every observation of the metric at the given
// geo level and period start, ordered by geography. An empty sourceID
// matches any source.
func (r *FactValueRepository) RowsForPeriod(ctx context.Context, metricID, sourceID string, level GeoLevel, periodStart time.Time) ([]FactValue, error) {
	query := `
		SELECT ` + factColumns + `
		FROM fact_values
		WHERE metric_id = $1 AND geo_level = $2 AND period_start = $3
	`
	args := []interface{}{metricID, level, periodStart}
	if sourceID != "" {
		query += ` AND source_id = $4`
		args = append(args, sourceID)
	}
	query += ` ORDER BY geo_id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFactValues(rows)
}

// LatestForGeo returns the most recent observation of the metric for a
// single geography. An empty level matches any geo level.
func (r *FactValueRepository) LatestForGeo(ctx context.Context, metricID, geoID string, level GeoLevel) (*FactValue, error) {
	query := `
		SELECT ` + factColumns + `
		FROM fact_values
		WHERE metric_id = $1 AND geo_id = $2
	`
	args := []interface{}{metricID, geoID}
	if level != "" {
		query += ` AND geo_level = $3`
		args = append(args, level)
	}
	query += ` ORDER BY period_start DESC LIMIT 1`

	fv := &FactValue{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&fv.MetricID, &fv.SourceID, &fv.GeoLevel, &fv.GeoID, &fv.PeriodStart, &fv.PeriodEnd, &fv.Value,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return fv, err
}

// MinMax returns the lowest and highest observations of the metric for
// the given geo level and period start. An empty sourceID matches any
// source.
func (r *FactValueRepository) MinMax(ctx context.Context, metricID, sourceID string, level GeoLevel, periodStart time.Time) (min, max *FactValue, err error) {
	base := `
		SELECT ` + factColumns + `
		FROM fact_values
		WHERE metric_id = $1 AND geo_level = $2 AND period_start = $3
	`
	args := []interface{}{metricID, level, periodStart}
	if sourceID != "" {
		base += ` AND source_id = $4`
		args = append(args, sourceID)
	}
	minQuery := base + ` ORDER BY value_numeric ASC, geo_id ASC LIMIT 1`
	maxQuery := base + ` ORDER BY value_numeric DESC, geo_id ASC LIMIT 1`

	min = &FactValue{}
	err = r.db.QueryRowContext(ctx, minQuery, args...).Scan(
		&min.MetricID, &min.SourceID, &min.GeoLevel, &min.GeoID, &min.PeriodStart, &min.PeriodEnd, &min.Value,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	max = &FactValue{}
	err = r.db.QueryRowContext(ctx, maxQuery, args...).Scan(
		&max.MetricID, &max.SourceID, &max.GeoLevel, &max.GeoID, &max.PeriodStart, &max.PeriodEnd, &max.Value,
	)
	if err != nil {
		return nil, nil, err
	}
	return min, max, nil
}

// History returns all observations of the metric for one geography in
// ascending period order, for trend fitting.
func (r *FactValueRepository) History(ctx context.Context, metricID, geoID string, level GeoLevel) ([]FactValue, error) {
	query := `
		SELECT ` + factColumns + `
		FROM fact_values
		WHERE metric_id = $1 AND geo_id = $2 AND geo_level = $3
		ORDER BY period_start ASC
	`
	rows, err := r.db.QueryContext(ctx, query, metricID, geoID, level)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFactValues(rows)
}

func scanFactValues(rows *sql.Rows) ([]FactValue, error) {
	var out []FactValue
	for rows.Next() {
		var fv FactValue
		if err := rows.Scan(&fv.MetricID, &fv.SourceID, &fv.GeoLevel, &fv.GeoID, &fv.PeriodStart, &fv.PeriodEnd, &fv.Value); err != nil {
			return nil, err
		}
		out = append(out, fv)
	}
	return out, rows.Err()
}

// MetricMetadataRepository handles the metric catalog.
type MetricMetadataRepository struct {
	db DB
}

// NewMetricMetadataRepository creates a new metric metadata repository.
func NewMetricMetadataRepository(db DB) *MetricMetadataRepository {
	return &MetricMetadataRepository{db: db}
}

// ListWithEmbeddings returns every catalog entry that has an embedding.
func (r *MetricMetadataRepository) ListWithEmbeddings(ctx context.Context) ([]MetricMetadata, error) {
	query := `
		SELECT metric_id, name, description, unit, source_system, embedding, updated_at
		FROM metric_metadata
		WHERE embedding IS NOT NULL
		ORDER BY metric_id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MetricMetadata
	for rows.Next() {
		var m MetricMetadata
		if err := rows.Scan(&m.MetricID, &m.Name, &m.Description, &m.Unit, &m.SourceSystem, &m.Embedding, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Upsert inserts or replaces a catalog entry.
func (r *MetricMetadataRepository) Upsert(ctx context.Context, m *MetricMetadata) error {
	m.UpdatedAt = time.Now()
	query := `
		INSERT INTO metric_metadata (metric_id, name, description, unit, source_system, embedding, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (metric_id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			unit = EXCLUDED.unit,
			source_system = EXCLUDED.source_system,
			embedding = EXCLUDED.embedding,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		m.MetricID, m.Name, m.Description, m.Unit, m.SourceSystem, m.Embedding, m.UpdatedAt,
	)
	return err
}

// FirstWithIDContaining returns the first catalog entry, in metric_id
// order, whose identifier contains the given fragment.
func (r *MetricMetadataRepository) FirstWithIDContaining(ctx context.Context, fragment string) (*MetricMetadata, error) {
	query := `
		SELECT metric_id, name, description, unit, source_system, embedding, updated_at
		FROM metric_metadata
		WHERE metric_id LIKE '%' || $1 || '%'
		ORDER BY metric_id
		LIMIT 1
	`
	m := &MetricMetadata{}
	err := r.db.QueryRowContext(ctx, query, fragment).Scan(
		&m.MetricID, &m.Name, &m.Description, &m.Unit, &m.SourceSystem, &m.Embedding, &m.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

// KnowledgeChunkRepository persists ingested document fragments.
type KnowledgeChunkRepository struct {
	db DB
}

// NewKnowledgeChunkRepository creates a new knowledge chunk repository.
func NewKnowledgeChunkRepository(db DB) *KnowledgeChunkRepository {
	return &KnowledgeChunkRepository{db: db}
}

// Create stores a new chunk.
func (r *KnowledgeChunkRepository) Create(ctx context.Context, chunk *KnowledgeChunk) error {
	if chunk.ID == uuid.Nil {
		chunk.ID = uuid.New()
	}
	chunk.CreatedAt = time.Now()

	query := `
		INSERT INTO knowledge_chunks (id, content, source, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		chunk.ID.String(), chunk.Content, chunk.Source, chunk.Embedding, chunk.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create knowledge chunk: %w", err)
	}
	return nil
}

// ListWithEmbeddings returns every chunk that has an embedding, oldest
// first. The corpus is small enough to scan in full at answer time.
func (r *KnowledgeChunkRepository) ListWithEmbeddings(ctx context.Context) ([]KnowledgeChunk, error) {
	query := `
		SELECT id, content, source, embedding, created_at
		FROM knowledge_chunks
		WHERE embedding IS NOT NULL
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KnowledgeChunk
	for rows.Next() {
		var c KnowledgeChunk
		if err := rows.Scan(&c.ID, &c.Content, &c.Source, &c.Embedding, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// QueryLogRepository records handled questions.
type QueryLogRepository struct {
	db DB
}

// NewQueryLogRepository creates a new query log repository.
func NewQueryLogRepository(db DB) *QueryLogRepository {
	return &QueryLogRepository{db: db}
}

// Create stores an audit record.
func (r *QueryLogRepository) Create(ctx context.Context, log *QueryLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	log.CreatedAt = time.Now()

	query := `
		INSERT INTO query_logs (id, question, intent, confidence, status, answer, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		log.ID.String(), log.Question, log.Intent, log.Confidence, log.Status, log.Answer, log.CreatedAt,
	)
	return err
}
