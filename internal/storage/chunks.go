package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ChunkStore persists the searchable chunks cut from documents.
type ChunkStore struct {
	db *bun.DB
}

// NewChunkStore creates a chunk store over a bun DB.
func NewChunkStore(db *bun.DB) *ChunkStore {
	return &ChunkStore{db: db}
}

// CreateMany inserts a document's chunks in one statement, assigning ids.
func (s *ChunkStore) CreateMany(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for _, chunk := range chunks {
		if chunk.ID == "" {
			chunk.ID = uuid.New().String()
		}
	}
	if _, err := s.db.NewInsert().Model(&chunks).Exec(ctx); err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}
	return nil
}

// FindByIDs returns the chunks with the given ids. Missing ids are simply
// absent from the result; the caller decides how to handle gaps.
func (s *ChunkStore) FindByIDs(ctx context.Context, ids []string) ([]Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var chunks []Chunk
	err := s.db.NewSelect().
		Model(&chunks).
		Where("c.id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select chunks: %w", err)
	}
	return chunks, nil
}

// ChunkTexts returns full chunk text keyed by chunk id, for re-hydrating
// truncated vector-index previews before generation.
func (s *ChunkStore) ChunkTexts(ctx context.Context, ids []string) (map[string]string, error) {
	chunks, err := s.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	texts := make(map[string]string, len(chunks))
	for _, chunk := range chunks {
		texts[chunk.ID] = chunk.Text
	}
	return texts, nil
}

// SetVectorIDs writes vector-store references back onto chunk rows, the
// only mutation chunks see after insert.
func (s *ChunkStore) SetVectorIDs(ctx context.Context, vectorIDs map[string]string) error {
	for chunkID, vectorID := range vectorIDs {
		_, err := s.db.NewUpdate().
			Model((*Chunk)(nil)).
			Set("vector_id = ?", vectorID).
			Where("id = ?", chunkID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("set vector id for chunk %s: %w", chunkID, err)
		}
	}
	return nil
}

// DeleteByDocument removes all chunks of a document. Used before
// re-ingesting so redelivered jobs converge instead of duplicating rows.
func (s *ChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := s.db.NewDelete().
		Model((*Chunk)(nil)).
		Where("document_id = ?", documentID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete chunks for document %s: %w", documentID, err)
	}
	return nil
}
