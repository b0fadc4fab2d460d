// Package storage provides database models and repositories for the
// utility statistics warehouse and the service's own bookkeeping tables.
package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GeoLevel is the granularity of a geographic identifier in the fact table.
type GeoLevel string

const (
	GeoLevelState  GeoLevel = "STATE"
	GeoLevelCounty GeoLevel = "COUNTY"
	GeoLevelPlace  GeoLevel = "PLACE"
)

// QueryStatus is the terminal disposition recorded for a handled question.
type QueryStatus string

const (
	QueryStatusAnswered      QueryStatus = "answered"
	QueryStatusOutOfScope    QueryStatus = "out_of_scope"
	QueryStatusLowConfidence QueryStatus = "low_confidence"
	QueryStatusError         QueryStatus = "error"
)

// Vector stores an embedding as a JSON array so the same column type
// works on both sqlite and postgres.
type Vector []float64

// Value implements driver.Valuer.
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Scan implements sql.Scanner.
func (v *Vector) Scan(src interface{}) error {
	if src == nil {
		*v = nil
		return nil
	}
	switch data := src.(type) {
	case []byte:
		return json.Unmarshal(data, v)
	case string:
		return json.Unmarshal([]byte(data), v)
	default:
		return fmt.Errorf("cannot scan %T into Vector", src)
	}
}

// FactValue is one observation in the statistics warehouse: a metric
// reported by a source for a geography over a period. The six leading
// fields form the composite identity; the table is written by the
// ingestion collaborator and read-only here.
type FactValue struct {
	MetricID    string    `json:"metric_id"`
	SourceID    string    `json:"source_id"`
	GeoLevel    GeoLevel  `json:"geo_level"`
	GeoID       string    `json:"geo_id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Value       float64   `json:"value_numeric"`
}

// MetricMetadata describes one metric in the warehouse catalog. The
// embedding is computed over the description and drives semantic
// metric resolution.
type MetricMetadata struct {
	MetricID     string    `json:"metric_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Unit         string    `json:"unit"`
	SourceSystem string    `json:"source_system"`
	Embedding    Vector    `json:"-"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// KnowledgeChunk is an ingested free-text document fragment with its
// embedding, scanned at answer time for supplementary context.
type KnowledgeChunk struct {
	ID        uuid.UUID `json:"id"`
	Content   string    `json:"content"`
	Source    string    `json:"source"`
	Embedding Vector    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// QueryLog is the audit record written after every handled question.
// Writes are best effort; a failed insert never fails the answer.
type QueryLog struct {
	ID         uuid.UUID   `json:"id"`
	Question   string      `json:"question"`
	Intent     string      `json:"intent"`
	Confidence float64     `json:"confidence"`
	Status     QueryStatus `json:"status"`
	Answer     string      `json:"answer"`
	CreatedAt  time.Time   `json:"created_at"`
}
