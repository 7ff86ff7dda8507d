// Package chat manages conversations about indexed documents and routes
// questions through retrieval-grounded answer generation.
package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bull/textsonar/internal/rag"
	"github.com/bull/textsonar/internal/storage"
)

// DocumentFinder resolves documents a chat can be attached to.
type DocumentFinder interface {
	FindByID(ctx context.Context, id string) (*storage.Document, error)
}

// ChatRepository persists chats and their message history.
type ChatRepository interface {
	Create(ctx context.Context, chat *storage.Chat) error
	FindByID(ctx context.Context, id string) (*storage.Chat, error)
	FindByDocument(ctx context.Context, documentID string) ([]storage.Chat, error)
	SaveMessage(ctx context.Context, msg *storage.Message) error
}

// AnswerSource generates grounded answers for a document-scoped question.
type AnswerSource interface {
	GenerateAnswer(ctx context.Context, question, documentID string, topK int) (*rag.Answer, error)
	StreamAnswer(ctx context.Context, question, documentID string, topK int) (*rag.AnswerStream, error)
}

// Service coordinates chat persistence with answer generation.
type Service struct {
	documents DocumentFinder
	chats     ChatRepository
	answerer  AnswerSource
	logger    *slog.Logger
}

// NewService creates a chat service.
func NewService(documents DocumentFinder, chats ChatRepository, answerer AnswerSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		documents: documents,
		chats:     chats,
		answerer:  answerer,
		logger:    logger,
	}
}

// CreateChat starts a conversation about an existing document. An empty
// title defaults to one derived from the document's original filename.
func (s *Service) CreateChat(ctx context.Context, documentID, title string) (*storage.Chat, error) {
	doc, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("find document: %w", err)
	}

	if title == "" {
		title = "Chat about " + doc.OriginalName
	}

	chat := &storage.Chat{DocumentID: doc.ID, Title: title}
	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}

	s.logger.Info("Created chat", "chat", chat.ID, "document", doc.ID)
	return chat, nil
}

// GetChat returns a chat with its full message history.
func (s *Service) GetChat(ctx context.Context, id string) (*storage.Chat, error) {
	return s.chats.FindByID(ctx, id)
}

// ListByDocument returns a document's chats, newest first.
func (s *Service) ListByDocument(ctx context.Context, documentID string) ([]storage.Chat, error) {
	return s.chats.FindByDocument(ctx, documentID)
}

// AskQuestion records the user's question, generates a grounded answer
// from the chat's document and records it as the assistant's reply. The
// saved assistant message is returned.
func (s *Service) AskQuestion(ctx context.Context, chatID, question string) (*storage.Message, error) {
	chat, err := s.chats.FindByID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("find chat: %w", err)
	}

	if err := s.chats.SaveMessage(ctx, &storage.Message{
		ChatID:  chat.ID,
		Role:    storage.RoleUser,
		Content: question,
	}); err != nil {
		return nil, fmt.Errorf("save question: %w", err)
	}

	answer, err := s.answerer.GenerateAnswer(ctx, question, chat.DocumentID, 0)
	if err != nil {
		return nil, err
	}

	reply := &storage.Message{
		ChatID:    chat.ID,
		Role:      storage.RoleAssistant,
		Content:   answer.Text,
		Citations: answer.Citations,
	}
	if err := s.chats.SaveMessage(ctx, reply); err != nil {
		return nil, fmt.Errorf("save answer: %w", err)
	}

	return reply, nil
}

// StreamQuestion records the user's question and opens an answer stream
// for the caller to consume. The caller must invoke the returned finish
// func after draining the stream: it persists the assembled assistant
// message with its citations. Nothing is persisted for an abandoned or
// failed stream.
func (s *Service) StreamQuestion(ctx context.Context, chatID, question string) (*rag.AnswerStream, FinishFunc, error) {
	chat, err := s.chats.FindByID(ctx, chatID)
	if err != nil {
		return nil, nil, fmt.Errorf("find chat: %w", err)
	}

	if err := s.chats.SaveMessage(ctx, &storage.Message{
		ChatID:  chat.ID,
		Role:    storage.RoleUser,
		Content: question,
	}); err != nil {
		return nil, nil, fmt.Errorf("save question: %w", err)
	}

	stream, err := s.answerer.StreamAnswer(ctx, question, chat.DocumentID, 0)
	if err != nil {
		return nil, nil, err
	}

	finish := func(ctx context.Context, content string) (*storage.Message, error) {
		citations, err := stream.Citations()
		if err != nil {
			return nil, fmt.Errorf("stream incomplete: %w", err)
		}
		reply := &storage.Message{
			ChatID:    chat.ID,
			Role:      storage.RoleAssistant,
			Content:   content,
			Citations: citations,
		}
		if err := s.chats.SaveMessage(ctx, reply); err != nil {
			return nil, fmt.Errorf("save answer: %w", err)
		}
		return reply, nil
	}

	return stream, finish, nil
}

// FinishFunc persists the assistant message assembled from a fully
// consumed answer stream.
type FinishFunc func(ctx context.Context, content string) (*storage.Message, error)
