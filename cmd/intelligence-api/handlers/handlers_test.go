package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utility-explorer/intelligence/internal/agent"
	"github.com/utility-explorer/intelligence/internal/embedding"
	"github.com/utility-explorer/intelligence/internal/observability"
	"github.com/utility-explorer/intelligence/internal/storage"
)

type fakeAgent struct {
	resp agent.Response
	got  string
}

func (f *fakeAgent) Handle(_ context.Context, question string) agent.Response {
	f.got = question
	return f.resp
}

type fakeChunkWriter struct {
	chunks []storage.KnowledgeChunk
	err    error
}

func (f *fakeChunkWriter) Create(_ context.Context, chunk *storage.KnowledgeChunk) error {
	f.chunks = append(f.chunks, *chunk)
	return f.err
}

func TestQueryHandler_Answers(t *testing.T) {
	fa := &fakeAgent{resp: agent.Response{Answer: "14.5 cents/kWh", Sources: []string{}}}
	h := NewQueryHandler(observability.NopLogger(), fa)

	body, _ := json.Marshal(QueryRequestDTO{Question: "What is the electricity price in Texas?"})
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Query(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "What is the electricity price in Texas?", fa.got)

	var resp agent.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "14.5 cents/kWh", resp.Answer)
	assert.NotNil(t, resp.Sources)
}

func TestQueryHandler_RejectsEmptyQuestion(t *testing.T) {
	h := NewQueryHandler(observability.NopLogger(), &fakeAgent{})

	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()

	h.Query(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryHandler_RejectsBadJSON(t *testing.T) {
	h := NewQueryHandler(observability.NopLogger(), &fakeAgent{})

	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader([]byte(`not json`)))
	rec := httptest.NewRecorder()

	h.Query(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestKnowledgeHandler_IngestsChunk(t *testing.T) {
	writer := &fakeChunkWriter{}
	h := NewKnowledgeHandler(observability.NopLogger(), writer, embedding.NewMockEmbedder(16))

	body, _ := json.Marshal(IngestRequestDTO{Content: "Texas deregulated retail electricity in 2002.", Source: "manual"})
	req := httptest.NewRequest(http.MethodPost, "/ingest-knowledge", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Ingest(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, writer.chunks, 1)
	assert.Equal(t, "manual", writer.chunks[0].Source)
	assert.Len(t, writer.chunks[0].Embedding, 16)
}

func TestKnowledgeHandler_RejectsEmptyContent(t *testing.T) {
	h := NewKnowledgeHandler(observability.NopLogger(), &fakeChunkWriter{}, embedding.NewMockEmbedder(16))

	req := httptest.NewRequest(http.MethodPost, "/ingest-knowledge", bytes.NewReader([]byte(`{"source":"x"}`)))
	rec := httptest.NewRecorder()

	h.Ingest(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestKnowledgeHandler_StorageFailure(t *testing.T) {
	writer := &fakeChunkWriter{err: assert.AnError}
	h := NewKnowledgeHandler(observability.NopLogger(), writer, embedding.NewMockEmbedder(16))

	body, _ := json.Marshal(IngestRequestDTO{Content: "some fact"})
	req := httptest.NewRequest(http.MethodPost, "/ingest-knowledge", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Ingest(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthHandler_ReportsDatabase(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	h := NewHealthHandler(observability.NopLogger(), db)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "connected", resp["database"])
}
