package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/textsonar/internal/storage"
	"github.com/bull/textsonar/internal/textproc"
	"github.com/bull/textsonar/internal/vectorindex"
)

type fakeExtractor struct {
	pages []textproc.Page
	err   error
}

func (f *fakeExtractor) ExtractPages(path string) ([]textproc.Page, error) {
	return f.pages, f.err
}

type fakeDocuments struct {
	statuses  []storage.DocumentStatus
	lastError string
	completed bool
	pages     int
	chunks    int
}

func (f *fakeDocuments) UpdateStatus(ctx context.Context, id string, status storage.DocumentStatus, errorMessage string) error {
	f.statuses = append(f.statuses, status)
	f.lastError = errorMessage
	return nil
}

func (f *fakeDocuments) MarkCompleted(ctx context.Context, id string, totalPages, totalChunks int) error {
	f.completed = true
	f.pages = totalPages
	f.chunks = totalChunks
	return nil
}

type fakeChunks struct {
	created   []*storage.Chunk
	vectorIDs map[string]string
	cleared   []string
	createErr error
}

func (f *fakeChunks) CreateMany(ctx context.Context, chunks []*storage.Chunk) error {
	if f.createErr != nil {
		return f.createErr
	}
	for i, chunk := range chunks {
		chunk.ID = fmt.Sprintf("chunk-%d", i)
	}
	f.created = chunks
	return nil
}

func (f *fakeChunks) SetVectorIDs(ctx context.Context, vectorIDs map[string]string) error {
	f.vectorIDs = vectorIDs
	return nil
}

func (f *fakeChunks) DeleteByDocument(ctx context.Context, documentID string) error {
	f.cleared = append(f.cleared, documentID)
	return nil
}

type fakeEmbedder struct {
	texts []string
	err   error
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.texts = texts
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i)}
	}
	return vectors, nil
}

type fakeIndex struct {
	records []vectorindex.Record
	err     error
}

func (f *fakeIndex) Upsert(ctx context.Context, records []vectorindex.Record) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.records = records
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = "point-" + rec.ChunkID
	}
	return ids, nil
}

func testPipeline(extractor *fakeExtractor, docs *fakeDocuments, chunks *fakeChunks, embedder *fakeEmbedder, index *fakeIndex) *Pipeline {
	return NewPipeline(extractor, textproc.NewSplitter(0, 0), docs, chunks, embedder, index, slog.Default())
}

// sentence returns a paragraph of distinct, meaningful prose.
func sentence(seed, words int) string {
	var b strings.Builder
	for i := 0; i < words; i++ {
		fmt.Fprintf(&b, "word%d-%d ", seed, i)
	}
	return strings.TrimSpace(b.String()) + ". The quick brown fox jumps over the lazy dog."
}

func TestProcess_FullRun(t *testing.T) {
	extractor := &fakeExtractor{pages: []textproc.Page{
		{Number: 1, Text: sentence(1, 200)},
		{Number: 2, Text: sentence(2, 200)},
	}}
	docs := &fakeDocuments{}
	chunks := &fakeChunks{}
	embedder := &fakeEmbedder{}
	index := &fakeIndex{}

	p := testPipeline(extractor, docs, chunks, embedder, index)
	result, err := p.Process(context.Background(), "doc-1", "/tmp/doc.pdf")
	require.NoError(t, err)

	// Two ~1700-char pages at chunk size 1000 must produce multiple chunks.
	assert.GreaterOrEqual(t, result.UniqueChunks, 3)
	assert.Equal(t, 2, result.TotalPages)

	// Lifecycle: PROCESSING, then completed with the run's totals.
	assert.Equal(t, []storage.DocumentStatus{storage.StatusProcessing}, docs.statuses)
	assert.True(t, docs.completed)
	assert.Equal(t, 2, docs.pages)
	assert.Equal(t, result.UniqueChunks, docs.chunks)

	// Chunk rows carry the document id, the page, and indexes 0..N-1.
	require.Len(t, chunks.created, result.UniqueChunks)
	for i, chunk := range chunks.created {
		assert.Equal(t, "doc-1", chunk.DocumentID)
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.Contains(t, []int{1, 2}, chunk.Page)
	}

	// Embedding input order matches chunk order.
	require.Len(t, embedder.texts, len(chunks.created))
	for i, chunk := range chunks.created {
		assert.Equal(t, chunk.Text, embedder.texts[i])
	}

	// Every chunk row gets the point id the index returned for it.
	require.Len(t, chunks.vectorIDs, len(chunks.created))
	for _, chunk := range chunks.created {
		assert.Equal(t, "point-"+chunk.ID, chunks.vectorIDs[chunk.ID])
	}

	// Re-runs start from a clean slate.
	assert.Equal(t, []string{"doc-1"}, chunks.cleared)
}

func TestProcess_FiltersAndDeduplicates(t *testing.T) {
	duplicate := "This paragraph repeats verbatim on both pages of the file."
	extractor := &fakeExtractor{pages: []textproc.Page{
		{Number: 1, Text: duplicate},
		{Number: 2, Text: duplicate},
		{Number: 3, Text: "42 17 99"}, // digits-only page, nothing to keep
	}}
	docs := &fakeDocuments{}
	chunks := &fakeChunks{}

	p := testPipeline(extractor, docs, chunks, &fakeEmbedder{}, &fakeIndex{})
	result, err := p.Process(context.Background(), "doc-2", "/tmp/doc.pdf")
	require.NoError(t, err)

	// Digits-only chunk filtered, duplicate collapsed to the page-1 copy.
	assert.Equal(t, 1, result.UniqueChunks)
	require.Len(t, chunks.created, 1)
	assert.Equal(t, duplicate, chunks.created[0].Text)
	assert.Equal(t, 1, chunks.created[0].Page)
}

func TestProcess_EmptyDocumentCompletes(t *testing.T) {
	extractor := &fakeExtractor{pages: []textproc.Page{{Number: 1, Text: "   "}}}
	docs := &fakeDocuments{}
	embedder := &fakeEmbedder{}
	index := &fakeIndex{}

	p := testPipeline(extractor, docs, &fakeChunks{}, embedder, index)
	result, err := p.Process(context.Background(), "doc-3", "/tmp/blank.pdf")
	require.NoError(t, err)

	assert.Equal(t, 0, result.UniqueChunks)
	assert.True(t, docs.completed)
	assert.Equal(t, 0, docs.chunks)
	// No chunks means no embedding or index traffic.
	assert.Empty(t, embedder.texts)
	assert.Empty(t, index.records)
}

func TestProcess_ExtractionFailureMarksFailed(t *testing.T) {
	extractErr := errors.New("pdf is encrypted")
	extractor := &fakeExtractor{err: extractErr}
	docs := &fakeDocuments{}

	p := testPipeline(extractor, docs, &fakeChunks{}, &fakeEmbedder{}, &fakeIndex{})
	_, err := p.Process(context.Background(), "doc-4", "/tmp/locked.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, extractErr)

	assert.Equal(t, []storage.DocumentStatus{storage.StatusProcessing, storage.StatusFailed}, docs.statuses)
	assert.Contains(t, docs.lastError, "pdf is encrypted")
	assert.False(t, docs.completed)
}

func TestProcess_EmbeddingFailureMarksFailed(t *testing.T) {
	extractor := &fakeExtractor{pages: []textproc.Page{{Number: 1, Text: sentence(7, 100)}}}
	docs := &fakeDocuments{}
	embedder := &fakeEmbedder{err: errors.New("rate limited")}

	p := testPipeline(extractor, docs, &fakeChunks{}, embedder, &fakeIndex{})
	_, err := p.Process(context.Background(), "doc-5", "/tmp/doc.pdf")
	require.Error(t, err)

	assert.Equal(t, storage.StatusFailed, docs.statuses[len(docs.statuses)-1])
	assert.Contains(t, docs.lastError, "rate limited")
}
