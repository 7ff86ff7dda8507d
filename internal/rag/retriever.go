package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bull/textsonar/internal/vectorindex"
)

// QueryEmbedder maps a single question to its embedding vector.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher answers nearest-neighbor queries restricted to one
// document. Results are ordered by descending similarity.
type VectorSearcher interface {
	QuerySimilar(ctx context.Context, vector []float32, topK int, documentID string) ([]vectorindex.ScoredPoint, error)
}

// ChunkHydrator loads full chunk text from durable storage. The vector
// index only carries a truncated preview; generation must see full text.
type ChunkHydrator interface {
	ChunkTexts(ctx context.Context, ids []string) (map[string]string, error)
}

// Retriever embeds a question, queries the vector index filtered to a
// document, and re-hydrates full chunk text from the durable chunk store.
type Retriever struct {
	embedder QueryEmbedder
	index    VectorSearcher
	chunks   ChunkHydrator
	logger   *slog.Logger
}

// NewRetriever creates a retriever over the given collaborators.
func NewRetriever(embedder QueryEmbedder, index VectorSearcher, chunks ChunkHydrator, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		chunks:   chunks,
		logger:   logger,
	}
}

// Retrieve builds the evidence for a question: topK most similar chunks of
// the given document, as a labeled context string plus parallel citations.
// Zero matches returns an empty context, which is a valid answer-path state.
func (r *Retriever) Retrieve(ctx context.Context, question, documentID string, topK int) (*RetrievalContext, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	results, err := r.index.QuerySimilar(ctx, vector, topK, documentID)
	if err != nil {
		return nil, fmt.Errorf("query vector index: %w", err)
	}

	if len(results) == 0 {
		r.logger.Info("No similar chunks found", "document", documentID)
		return &RetrievalContext{}, nil
	}

	// Hydrate full chunk text from storage. The index payload text is a
	// truncated preview and must not feed generation.
	ids := make([]string, 0, len(results))
	for _, res := range results {
		if res.ChunkID != "" {
			ids = append(ids, res.ChunkID)
		}
	}

	texts := map[string]string{}
	if len(ids) > 0 {
		texts, err = r.chunks.ChunkTexts(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("hydrate chunks: %w", err)
		}
	}

	blocks := make([]string, 0, len(results))
	citations := make([]Citation, 0, len(results))

	for _, res := range results {
		page := res.Page
		if page <= 0 {
			page = 1
		}

		// Fall back to the index preview when the chunk row is missing
		// or the result carried no chunk id; one malformed result must
		// not fail the whole retrieval.
		text := res.Preview
		if full, ok := texts[res.ChunkID]; ok && res.ChunkID != "" {
			text = full
		} else if res.ChunkID != "" {
			r.logger.Warn("Chunk missing from store, using index preview", "chunk", res.ChunkID)
		}

		blocks = append(blocks, contextBlock(page, text))
		citations = append(citations, Citation{
			Page:  page,
			Text:  text,
			Score: res.Score,
		})
	}

	return &RetrievalContext{
		Context:   strings.Join(blocks, "\n\n"),
		Citations: citations,
	}, nil
}
