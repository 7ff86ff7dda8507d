package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bull/textsonar/internal/queue"
	"github.com/bull/textsonar/internal/storage"
)

// MaxUploadSize caps uploaded PDFs at 10 MB.
const MaxUploadSize = 10 << 20

// DocumentStore is the document persistence surface the API needs.
type DocumentStore interface {
	Create(ctx context.Context, doc *storage.Document) error
	FindAll(ctx context.Context) ([]storage.Document, error)
	FindByID(ctx context.Context, id string) (*storage.Document, error)
	Delete(ctx context.Context, id string) error
}

// IngestEnqueuer hands uploaded documents to the background pipeline.
type IngestEnqueuer interface {
	PublishIngest(job queue.IngestJob) error
}

// VectorCleaner removes a deleted document's vectors from the index.
type VectorCleaner interface {
	DeleteByDocument(ctx context.Context, documentID string) error
}

// DocumentsAPI serves the document upload and management endpoints.
type DocumentsAPI struct {
	documents DocumentStore
	vectors   VectorCleaner
	enqueuer  IngestEnqueuer
	uploadDir string
	logger    *slog.Logger
}

// NewDocumentsAPI creates the document endpoint handlers.
func NewDocumentsAPI(documents DocumentStore, vectors VectorCleaner, enqueuer IngestEnqueuer, uploadDir string, logger *slog.Logger) *DocumentsAPI {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentsAPI{
		documents: documents,
		vectors:   vectors,
		enqueuer:  enqueuer,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// UploadHandler accepts a multipart PDF, stores it on disk, records a
// PENDING document and enqueues ingestion. The response returns before
// processing starts.
func (a *DocumentsAPI) UploadHandler(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	if file.Size > MaxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File exceeds the 10MB limit"})
		return
	}

	contentType := file.Header.Get("Content-Type")
	if contentType != "application/pdf" && !strings.HasSuffix(strings.ToLower(file.Filename), ".pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only PDF files are supported"})
		return
	}

	filename := uuid.New().String() + ".pdf"
	path := filepath.Join(a.uploadDir, filename)
	if err := c.SaveUploadedFile(file, path); err != nil {
		a.logger.Error("Failed to store upload", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return
	}

	doc := &storage.Document{
		Filename:     filename,
		OriginalName: file.Filename,
		MimeType:     "application/pdf",
		Size:         file.Size,
		FilePath:     path,
		Status:       storage.StatusPending,
	}
	if err := a.documents.Create(c.Request.Context(), doc); err != nil {
		a.logger.Error("Failed to create document", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create document"})
		return
	}

	if err := a.enqueuer.PublishIngest(queue.IngestJob{DocumentID: doc.ID, FilePath: path}); err != nil {
		a.logger.Error("Failed to enqueue ingestion", "document", doc.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue document for processing"})
		return
	}

	c.JSON(http.StatusCreated, doc)
}

// ListHandler returns all documents, newest first.
func (a *DocumentsAPI) ListHandler(c *gin.Context) {
	docs, err := a.documents.FindAll(c.Request.Context())
	if err != nil {
		a.logger.Error("Failed to list documents", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list documents"})
		return
	}
	c.JSON(http.StatusOK, docs)
}

// GetHandler returns one document with its ingestion status.
func (a *DocumentsAPI) GetHandler(c *gin.Context) {
	doc, err := a.documents.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
			return
		}
		a.logger.Error("Failed to load document", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load document"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

// DeleteHandler removes a document everywhere: vector index, database
// (chunks, chats and messages cascade) and the stored file.
func (a *DocumentsAPI) DeleteHandler(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	doc, err := a.documents.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
			return
		}
		a.logger.Error("Failed to load document", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load document"})
		return
	}

	if err := a.vectors.DeleteByDocument(ctx, id); err != nil {
		a.logger.Error("Failed to delete vectors", "document", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete document vectors"})
		return
	}

	if err := a.documents.Delete(ctx, id); err != nil {
		a.logger.Error("Failed to delete document", "document", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete document"})
		return
	}

	// The row is gone; a leftover file is only disk noise.
	if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
		a.logger.Warn("Failed to remove stored file", "path", doc.FilePath, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"message": "Document deleted"})
}
