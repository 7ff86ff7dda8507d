package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bull/textsonar/internal/chat"
	"github.com/bull/textsonar/internal/rag"
	"github.com/bull/textsonar/internal/storage"
)

// ChatsAPI serves the conversation endpoints, including the SSE answer
// stream.
type ChatsAPI struct {
	chats  *chat.Service
	logger *slog.Logger
}

// NewChatsAPI creates the chat endpoint handlers.
func NewChatsAPI(chats *chat.Service, logger *slog.Logger) *ChatsAPI {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatsAPI{chats: chats, logger: logger}
}

type createChatRequest struct {
	DocumentID string `json:"documentId" binding:"required"`
	Title      string `json:"title"`
}

type messageRequest struct {
	Content string `json:"content" binding:"required"`
}

// CreateHandler starts a chat about a document.
func (a *ChatsAPI) CreateHandler(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "documentId is required"})
		return
	}

	created, err := a.chats.CreateChat(c.Request.Context(), req.DocumentID, req.Title)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
			return
		}
		a.logger.Error("Failed to create chat", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create chat"})
		return
	}

	c.JSON(http.StatusCreated, created)
}

// GetHandler returns a chat with its message history.
func (a *ChatsAPI) GetHandler(c *gin.Context) {
	found, err := a.chats.GetChat(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
			return
		}
		a.logger.Error("Failed to load chat", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load chat"})
		return
	}
	c.JSON(http.StatusOK, found)
}

// ListByDocumentHandler returns a document's chats, newest first.
func (a *ChatsAPI) ListByDocumentHandler(c *gin.Context) {
	chats, err := a.chats.ListByDocument(c.Request.Context(), c.Param("documentId"))
	if err != nil {
		a.logger.Error("Failed to list chats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list chats"})
		return
	}
	c.JSON(http.StatusOK, chats)
}

// AskHandler answers a question in one blocking call and returns the
// persisted assistant message.
func (a *ChatsAPI) AskHandler(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	reply, err := a.chats.AskQuestion(c.Request.Context(), c.Param("id"), req.Content)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
			return
		}
		a.logger.Error("Failed to answer question", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate answer"})
		return
	}

	c.JSON(http.StatusOK, reply)
}

// SSE payloads: answer fragments while the model is generating, then a
// single citations event once the stream completes.
type chunkEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type citationsEvent struct {
	Type      string         `json:"type"`
	Citations []rag.Citation `json:"citations"`
}

// StreamHandler answers a question as a server-sent event stream. Each
// fragment arrives as a "chunk" event; the trailing "citations" event is
// sent only after generation completes. A client disconnect aborts
// generation and persists nothing for the assistant turn.
func (a *ChatsAPI) StreamHandler(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	ctx := c.Request.Context()
	stream, finish, err := a.chats.StreamQuestion(ctx, c.Param("id"), req.Content)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
			return
		}
		a.logger.Error("Failed to start answer stream", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate answer"})
		return
	}
	defer stream.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	var b strings.Builder
	for stream.Next() {
		select {
		case <-ctx.Done():
			a.logger.Info("Client disconnected, aborting stream", "chat", c.Param("id"))
			return
		default:
		}

		fragment := stream.Current()
		b.WriteString(fragment)
		if err := writeEvent(c, chunkEvent{Type: "chunk", Content: fragment}); err != nil {
			a.logger.Warn("Failed to write stream event", "error", err)
			return
		}
	}

	if err := stream.Err(); err != nil {
		a.logger.Error("Answer stream failed", "error", err)
		_ = writeEvent(c, chunkEvent{Type: "error", Content: "Failed to generate answer"})
		return
	}

	reply, err := finish(ctx, b.String())
	if err != nil {
		a.logger.Error("Failed to persist streamed answer", "error", err)
		_ = writeEvent(c, chunkEvent{Type: "error", Content: "Failed to save answer"})
		return
	}

	_ = writeEvent(c, citationsEvent{Type: "citations", Citations: reply.Citations})
}

func writeEvent(c *gin.Context, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := c.Writer.WriteString("data: " + string(data) + "\n\n"); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}
