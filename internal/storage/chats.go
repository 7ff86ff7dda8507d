package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/bull/textsonar/internal/rag"
)

// ChatStore persists chats and their messages.
type ChatStore struct {
	db *bun.DB
}

// NewChatStore creates a chat store over a bun DB.
func NewChatStore(db *bun.DB) *ChatStore {
	return &ChatStore{db: db}
}

// Create inserts a new chat for a document.
func (s *ChatStore) Create(ctx context.Context, chat *Chat) error {
	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}
	if _, err := s.db.NewInsert().Model(chat).Exec(ctx); err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}
	return nil
}

// FindByID returns a chat with its messages in chronological order, or
// ErrNotFound.
func (s *ChatStore) FindByID(ctx context.Context, id string) (*Chat, error) {
	chat := new(Chat)
	err := s.db.NewSelect().
		Model(chat).
		Relation("Messages", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("created_at ASC")
		}).
		Where("ch.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select chat: %w", err)
	}
	return chat, nil
}

// FindByDocument returns all chats for a document, newest first.
func (s *ChatStore) FindByDocument(ctx context.Context, documentID string) ([]Chat, error) {
	var chats []Chat
	err := s.db.NewSelect().
		Model(&chats).
		Where("ch.document_id = ?", documentID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select chats: %w", err)
	}
	return chats, nil
}

// SaveMessage appends one message to a chat.
func (s *ChatStore) SaveMessage(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Role == RoleAssistant && msg.Citations == nil {
		msg.Citations = []rag.Citation{}
	}
	if _, err := s.db.NewInsert().Model(msg).Exec(ctx); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}
