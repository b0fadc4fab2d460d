package retrieve

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/utility-explorer/intelligence/internal/embedding"
	"github.com/utility-explorer/intelligence/internal/observability"
	"github.com/utility-explorer/intelligence/internal/storage"
)

// Chunk selection policy for supplementary context.
const (
	chunkScoreThreshold = 0.3
	maxContextChunks    = 3
)

// contextHeader introduces the supplementary section appended to
// in-scope answers.
const contextHeader = "Context found:"

// ChunkStore is the slice of the knowledge base the searcher reads.
type ChunkStore interface {
	ListWithEmbeddings(ctx context.Context) ([]storage.KnowledgeChunk, error)
}

// KnowledgeSearcher scores every stored chunk against a question. A
// linear scan is the whole index; the corpus is ingested by hand and
// stays small.
type KnowledgeSearcher struct {
	embedder embedding.Embedder
	chunks   ChunkStore
	logger   *observability.Logger
}

// NewKnowledgeSearcher creates a searcher over the chunk store.
func NewKnowledgeSearcher(embedder embedding.Embedder, chunks ChunkStore, logger *observability.Logger) *KnowledgeSearcher {
	return &KnowledgeSearcher{
		embedder: embedder,
		chunks:   chunks,
		logger:   logger.WithComponent("knowledge"),
	}
}

// TopChunks returns the contents of the best-matching chunks, highest
// score first: at most three, each scoring above 0.3 against the
// question. Failures degrade to no context, never an error.
func (s *KnowledgeSearcher) TopChunks(ctx context.Context, question string) []string {
	chunks, err := s.chunks.ListWithEmbeddings(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("chunk listing failed, skipping context")
		return nil
	}
	if len(chunks) == 0 {
		return nil
	}

	qv, err := s.embedder.EmbedSingle(ctx, question)
	if err != nil {
		s.logger.Warn().Err(err).Msg("question embedding failed, skipping context")
		return nil
	}

	type scored struct {
		score   float64
		content string
	}
	var matched []scored
	for _, c := range chunks {
		score := embedding.Cosine(qv, embedding.Float32s(c.Embedding))
		if score > chunkScoreThreshold {
			matched = append(matched, scored{score: score, content: c.Content})
		}
	}
	if len(matched) == 0 {
		return nil
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].score > matched[j].score
	})
	if len(matched) > maxContextChunks {
		matched = matched[:maxContextChunks]
	}

	out := make([]string, 0, len(matched))
	for _, m := range matched {
		out = append(out, m.content)
	}
	return out
}

// FormatContext renders retrieved chunks as the supplementary section
// appended to an answer. Empty input renders nothing.
func FormatContext(chunks []string) string {
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n")
	b.WriteString(contextHeader)
	for _, c := range chunks {
		b.WriteString(fmt.Sprintf("\n- %s", c))
	}
	return b.String()
}
