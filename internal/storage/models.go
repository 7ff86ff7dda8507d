// Package storage persists documents, chunks, chats and messages in
// Postgres via bun.
package storage

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/bull/textsonar/internal/rag"
)

// DocumentStatus tracks a document through the ingestion lifecycle.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "PENDING"
	StatusProcessing DocumentStatus = "PROCESSING"
	StatusCompleted  DocumentStatus = "COMPLETED"
	StatusFailed     DocumentStatus = "FAILED"
)

// MessageRole distinguishes user questions from assistant answers.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Document is an uploaded PDF and its ingestion state.
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID           string         `bun:"id,pk" json:"id"`
	Filename     string         `bun:"filename,notnull" json:"filename"`
	OriginalName string         `bun:"original_name,notnull" json:"originalName"`
	MimeType     string         `bun:"mime_type,notnull" json:"mimeType"`
	Size         int64          `bun:"size,notnull" json:"size"`
	FilePath     string         `bun:"file_path,notnull" json:"-"`
	Status       DocumentStatus `bun:"status,notnull,default:'PENDING'" json:"status"`
	ErrorMessage string         `bun:"error_message,nullzero" json:"errorMessage,omitempty"`
	TotalPages   int            `bun:"total_pages,notnull,default:0" json:"totalPages"`
	TotalChunks  int            `bun:"total_chunks,notnull,default:0" json:"totalChunks"`
	CreatedAt    time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt    time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}

// Chunk is one searchable span of a document's text. Rows are immutable
// after insert except for the later attachment of VectorID, and are
// removed only by the document cascade.
type Chunk struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`

	ID         string    `bun:"id,pk" json:"id"`
	DocumentID string    `bun:"document_id,notnull" json:"documentId"`
	Text       string    `bun:"text,notnull,type:text" json:"text"`
	Page       int       `bun:"page,notnull" json:"page"`
	ChunkIndex int       `bun:"chunk_index,notnull" json:"chunkIndex"`
	VectorID   string    `bun:"vector_id,nullzero" json:"vectorId,omitempty"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
}

// Chat is a conversation about one document.
type Chat struct {
	bun.BaseModel `bun:"table:chats,alias:ch"`

	ID         string    `bun:"id,pk" json:"id"`
	DocumentID string    `bun:"document_id,notnull" json:"documentId"`
	Title      string    `bun:"title,notnull" json:"title"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`

	Messages []*Message `bun:"rel:has-many,join:id=chat_id" json:"messages,omitempty"`
}

// Message is one turn in a chat. Assistant messages carry the citations
// resolved at retrieval time.
type Message struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID        string         `bun:"id,pk" json:"id"`
	ChatID    string         `bun:"chat_id,notnull" json:"chatId"`
	Role      MessageRole    `bun:"role,notnull" json:"role"`
	Content   string         `bun:"content,notnull,type:text" json:"content"`
	Citations []rag.Citation `bun:"citations,type:jsonb" json:"citations,omitempty"`
	CreatedAt time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
}
