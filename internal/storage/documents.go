package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DocumentStore persists document records and their ingestion status.
type DocumentStore struct {
	db *bun.DB
}

// NewDocumentStore creates a document store over a bun DB.
func NewDocumentStore(db *bun.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Create inserts a new PENDING document and assigns it an id.
func (s *DocumentStore) Create(ctx context.Context, doc *Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.Status == "" {
		doc.Status = StatusPending
	}
	if _, err := s.db.NewInsert().Model(doc).Exec(ctx); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// FindAll returns all documents, newest first.
func (s *DocumentStore) FindAll(ctx context.Context) ([]Document, error) {
	var docs []Document
	err := s.db.NewSelect().
		Model(&docs).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	return docs, nil
}

// FindByID returns one document or ErrNotFound.
func (s *DocumentStore) FindByID(ctx context.Context, id string) (*Document, error) {
	doc := new(Document)
	err := s.db.NewSelect().
		Model(doc).
		Where("d.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select document: %w", err)
	}
	return doc, nil
}

// UpdateStatus moves a document through the ingestion lifecycle. The
// error message is stored on FAILED and cleared otherwise.
func (s *DocumentStore) UpdateStatus(ctx context.Context, id string, status DocumentStatus, errorMessage string) error {
	_, err := s.db.NewUpdate().
		Model((*Document)(nil)).
		Set("status = ?", status).
		Set("error_message = ?", errorMessage).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

// MarkCompleted finishes ingestion, recording the page and chunk totals.
func (s *DocumentStore) MarkCompleted(ctx context.Context, id string, totalPages, totalChunks int) error {
	_, err := s.db.NewUpdate().
		Model((*Document)(nil)).
		Set("status = ?", StatusCompleted).
		Set("error_message = ?", "").
		Set("total_pages = ?", totalPages).
		Set("total_chunks = ?", totalChunks).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark document completed: %w", err)
	}
	return nil
}

// Delete removes a document; chunks, chats and messages go with it via
// the ON DELETE CASCADE foreign keys.
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().
		Model((*Document)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
