// Package ingest orchestrates turning an uploaded PDF into deduplicated,
// embedded, indexed chunks: extract, normalize, split, clean, filter,
// dedup, persist, embed, upsert.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bull/textsonar/internal/storage"
	"github.com/bull/textsonar/internal/textproc"
	"github.com/bull/textsonar/internal/vectorindex"
)

// PageExtractor produces per-page raw text from a PDF file on disk.
type PageExtractor interface {
	ExtractPages(path string) ([]textproc.Page, error)
}

// DocumentStatusStore moves documents through the ingestion lifecycle.
type DocumentStatusStore interface {
	UpdateStatus(ctx context.Context, id string, status storage.DocumentStatus, errorMessage string) error
	MarkCompleted(ctx context.Context, id string, totalPages, totalChunks int) error
}

// ChunkWriter persists chunk rows and their vector references.
type ChunkWriter interface {
	CreateMany(ctx context.Context, chunks []*storage.Chunk) error
	SetVectorIDs(ctx context.Context, vectorIDs map[string]string) error
	DeleteByDocument(ctx context.Context, documentID string) error
}

// BatchEmbedder embeds the whole chunk set in order-preserving batches.
type BatchEmbedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorUpserter stores chunk vectors in the external index, idempotently
// by derived point id, returning point ids in record order.
type VectorUpserter interface {
	Upsert(ctx context.Context, records []vectorindex.Record) ([]string, error)
}

// Result contains statistics about one ingestion run.
type Result struct {
	TotalPages   int
	RawChunks    int
	UniqueChunks int
	Duration     time.Duration
}

// Pipeline runs the full ingestion for one document. Steps are strictly
// sequential within a run; separate documents' runs are independent.
type Pipeline struct {
	extractor PageExtractor
	splitter  *textproc.Splitter
	documents DocumentStatusStore
	chunks    ChunkWriter
	embedder  BatchEmbedder
	index     VectorUpserter
	logger    *slog.Logger
}

// NewPipeline creates an ingestion pipeline with the given components.
func NewPipeline(
	extractor PageExtractor,
	splitter *textproc.Splitter,
	documents DocumentStatusStore,
	chunks ChunkWriter,
	embedder BatchEmbedder,
	index VectorUpserter,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor: extractor,
		splitter:  splitter,
		documents: documents,
		chunks:    chunks,
		embedder:  embedder,
		index:     index,
		logger:    logger,
	}
}

// Process ingests one document. Any failure after the document enters
// PROCESSING marks it FAILED with the captured message and propagates the
// error; partial chunk writes are not rolled back - the FAILED status is
// the operator's signal.
func (p *Pipeline) Process(ctx context.Context, documentID, filePath string) (*Result, error) {
	start := time.Now()
	p.logger.Info("Processing document", "document", documentID, "path", filePath)

	if err := p.documents.UpdateStatus(ctx, documentID, storage.StatusProcessing, ""); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}

	result, err := p.run(ctx, documentID, filePath)
	if err != nil {
		p.logger.Error("Ingestion failed", "document", documentID, "error", err)
		if statusErr := p.documents.UpdateStatus(ctx, documentID, storage.StatusFailed, err.Error()); statusErr != nil {
			p.logger.Error("Failed to record failure status", "document", documentID, "error", statusErr)
		}
		return nil, err
	}

	result.Duration = time.Since(start)
	p.logger.Info("Ingestion complete",
		"document", documentID,
		"pages", result.TotalPages,
		"chunks", result.UniqueChunks,
		"duration", result.Duration,
	)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, documentID, filePath string) (*Result, error) {
	// Dispatch is at-least-once: a redelivered job re-processes the whole
	// document, so clear any chunks a previous partial run left behind.
	// The vector upsert converges on its own via derived point ids.
	if err := p.chunks.DeleteByDocument(ctx, documentID); err != nil {
		return nil, fmt.Errorf("clear previous chunks: %w", err)
	}

	pages, err := p.extractor.ExtractPages(filePath)
	if err != nil {
		return nil, fmt.Errorf("extract pages: %w", err)
	}
	p.logger.Debug("Extracted pages", "document", documentID, "pages", len(pages))

	for i := range pages {
		pages[i].Text = textproc.Normalize(pages[i].Text)
	}

	rawChunks, err := p.splitter.Split(pages)
	if err != nil {
		return nil, fmt.Errorf("split pages: %w", err)
	}
	p.logger.Debug("Split into chunks", "document", documentID, "chunks", len(rawChunks))

	// Clean each chunk, then drop the ones that carry no semantic content.
	meaningful := make([]textproc.RawChunk, 0, len(rawChunks))
	for _, chunk := range rawChunks {
		chunk.Text = textproc.CleanChunkText(chunk.Text)
		if textproc.IsMeaningful(chunk.Text) {
			meaningful = append(meaningful, chunk)
		}
	}
	p.logger.Debug("Filtered chunks",
		"document", documentID,
		"kept", len(meaningful),
		"removed", len(rawChunks)-len(meaningful),
	)

	unique := textproc.Dedup(meaningful)
	p.logger.Debug("Removed duplicate chunks",
		"document", documentID,
		"removed", len(meaningful)-len(unique),
	)

	records := make([]*storage.Chunk, len(unique))
	for i, chunk := range unique {
		records[i] = &storage.Chunk{
			DocumentID: documentID,
			Text:       chunk.Text,
			Page:       chunk.Page,
			ChunkIndex: i,
		}
	}

	if err := p.chunks.CreateMany(ctx, records); err != nil {
		return nil, fmt.Errorf("persist chunks: %w", err)
	}

	if len(records) > 0 {
		if err := p.indexChunks(ctx, documentID, records); err != nil {
			return nil, err
		}
	}

	if err := p.documents.MarkCompleted(ctx, documentID, len(pages), len(unique)); err != nil {
		return nil, fmt.Errorf("mark completed: %w", err)
	}

	return &Result{
		TotalPages:   len(pages),
		RawChunks:    len(rawChunks),
		UniqueChunks: len(unique),
	}, nil
}

// indexChunks embeds the chunk set in one batched call, upserts the
// vectors, and writes the returned point ids back onto the chunk rows.
func (p *Pipeline) indexChunks(ctx context.Context, documentID string, records []*storage.Chunk) error {
	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = rec.Text
	}

	embeddings, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(embeddings) != len(records) {
		return fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(records), len(embeddings))
	}

	vectors := make([]vectorindex.Record, len(records))
	for i, rec := range records {
		vectors[i] = vectorindex.Record{
			ChunkID:    rec.ID,
			DocumentID: rec.DocumentID,
			Page:       rec.Page,
			Text:       rec.Text,
			Vector:     embeddings[i],
		}
	}

	pointIDs, err := p.index.Upsert(ctx, vectors)
	if err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}

	vectorIDs := make(map[string]string, len(records))
	for i, rec := range records {
		vectorIDs[rec.ID] = pointIDs[i]
	}
	if err := p.chunks.SetVectorIDs(ctx, vectorIDs); err != nil {
		return fmt.Errorf("attach vector ids: %w", err)
	}

	return nil
}
