package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/textsonar/internal/chat"
	"github.com/bull/textsonar/internal/rag"
	"github.com/bull/textsonar/internal/storage"
)

type stubDocFinder struct {
	doc *storage.Document
}

func (s *stubDocFinder) FindByID(ctx context.Context, id string) (*storage.Document, error) {
	if s.doc == nil {
		return nil, storage.ErrNotFound
	}
	return s.doc, nil
}

type stubChatRepo struct {
	chat  *storage.Chat
	saved []*storage.Message
}

func (s *stubChatRepo) Create(ctx context.Context, chat *storage.Chat) error {
	chat.ID = "chat-1"
	s.chat = chat
	return nil
}

func (s *stubChatRepo) FindByID(ctx context.Context, id string) (*storage.Chat, error) {
	if s.chat == nil {
		return nil, storage.ErrNotFound
	}
	return s.chat, nil
}

func (s *stubChatRepo) FindByDocument(ctx context.Context, documentID string) ([]storage.Chat, error) {
	return nil, nil
}

func (s *stubChatRepo) SaveMessage(ctx context.Context, msg *storage.Message) error {
	msg.ID = "msg"
	if msg.Role == storage.RoleAssistant && msg.Citations == nil {
		msg.Citations = []rag.Citation{}
	}
	s.saved = append(s.saved, msg)
	return nil
}

type stubAnswerer struct {
	answer    *rag.Answer
	fragments []string
	citations []rag.Citation
}

func (s *stubAnswerer) GenerateAnswer(ctx context.Context, question, documentID string, topK int) (*rag.Answer, error) {
	if s.answer == nil {
		return nil, errors.New("no answer configured")
	}
	return s.answer, nil
}

func (s *stubAnswerer) StreamAnswer(ctx context.Context, question, documentID string, topK int) (*rag.AnswerStream, error) {
	return rag.NewAnswerStream(&sliceTokenStream{fragments: s.fragments}, s.citations), nil
}

// sliceTokenStream yields a fixed fragment sequence.
type sliceTokenStream struct {
	fragments []string
	pos       int
	current   string
}

func (s *sliceTokenStream) Next() bool {
	if s.pos >= len(s.fragments) {
		return false
	}
	s.current = s.fragments[s.pos]
	s.pos++
	return true
}

func (s *sliceTokenStream) Current() string { return s.current }
func (s *sliceTokenStream) Err() error      { return nil }
func (s *sliceTokenStream) Close() error    { return nil }

func chatsRouter(repo *stubChatRepo, answerer *stubAnswerer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	service := chat.NewService(&stubDocFinder{}, repo, answerer, slog.Default())
	chatsAPI := NewChatsAPI(service, slog.Default())

	router := gin.New()
	router.POST("/chats/:id/messages", chatsAPI.AskHandler)
	router.POST("/chats/:id/stream", chatsAPI.StreamHandler)
	return router
}

func TestAsk_ReturnsAssistantMessage(t *testing.T) {
	repo := &stubChatRepo{chat: &storage.Chat{ID: "chat-1", DocumentID: "doc-1"}}
	answerer := &stubAnswerer{answer: &rag.Answer{
		Text:      "Grounded answer. (Page 1)",
		Citations: []rag.Citation{{Page: 1, Text: "evidence", Score: 0.7}},
	}}
	router := chatsRouter(repo, answerer)

	req := httptest.NewRequest(http.MethodPost, "/chats/chat-1/messages",
		strings.NewReader(`{"content":"what does it say?"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var msg storage.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.Equal(t, storage.RoleAssistant, msg.Role)
	assert.Equal(t, "Grounded answer. (Page 1)", msg.Content)
	require.Len(t, msg.Citations, 1)
	assert.Equal(t, 1, msg.Citations[0].Page)
}

func TestAsk_UnknownChat(t *testing.T) {
	router := chatsRouter(&stubChatRepo{}, &stubAnswerer{})

	req := httptest.NewRequest(http.MethodPost, "/chats/missing/messages",
		strings.NewReader(`{"content":"q"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStream_ChunksThenCitations(t *testing.T) {
	repo := &stubChatRepo{chat: &storage.Chat{ID: "chat-1", DocumentID: "doc-1"}}
	answerer := &stubAnswerer{
		fragments: []string{"The answer ", "is 42."},
		citations: []rag.Citation{{Page: 3, Text: "forty-two", Score: 0.9}},
	}
	router := chatsRouter(repo, answerer)

	req := httptest.NewRequest(http.MethodPost, "/chats/chat-1/stream",
		strings.NewReader(`{"content":"q"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := parseSSE(t, w.Body.String())
	require.Len(t, events, 3)

	assert.Equal(t, "chunk", events[0]["type"])
	assert.Equal(t, "The answer ", events[0]["content"])
	assert.Equal(t, "chunk", events[1]["type"])
	assert.Equal(t, "is 42.", events[1]["content"])

	assert.Equal(t, "citations", events[2]["type"])
	citations, ok := events[2]["citations"].([]any)
	require.True(t, ok)
	require.Len(t, citations, 1)

	// Full answer persisted after the stream completed.
	require.Len(t, repo.saved, 2)
	assert.Equal(t, "The answer is 42.", repo.saved[1].Content)
	assert.Equal(t, storage.RoleAssistant, repo.saved[1].Role)
}

func parseSSE(t *testing.T, body string) []map[string]any {
	t.Helper()
	var events []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
		events = append(events, event)
	}
	return events
}
