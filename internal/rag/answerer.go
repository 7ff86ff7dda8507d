package rag

import (
	"context"
	"fmt"
	"log/slog"
)

// FallbackAnswer is returned without invoking the model when retrieval
// finds no relevant content.
const FallbackAnswer = "I couldn't find relevant information in the document to answer your question."

// TokenStream is a finite, forward-only sequence of answer fragments from
// the language model. Not restartable.
type TokenStream interface {
	Next() bool
	Current() string
	Err() error
	Close() error
}

// LanguageModel produces answer text from a grounding prompt, either in
// one shot or as an incremental stream.
type LanguageModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Stream(ctx context.Context, prompt string) (TokenStream, error)
}

// Answer is a complete generated answer with its retrieval-time citations.
type Answer struct {
	Text      string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

// Answerer generates grounded answers from retrieved document context.
type Answerer struct {
	retriever *Retriever
	model     LanguageModel
	logger    *slog.Logger
}

// NewAnswerer creates an answer generator over a retriever and a model.
func NewAnswerer(retriever *Retriever, model LanguageModel, logger *slog.Logger) *Answerer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{
		retriever: retriever,
		model:     model,
		logger:    logger,
	}
}

// GenerateAnswer answers the question from the given document's content in
// a single model call. With an empty retrieval it short-circuits to the
// fixed fallback answer and never invokes the model.
func (a *Answerer) GenerateAnswer(ctx context.Context, question, documentID string, topK int) (*Answer, error) {
	rc, err := a.retriever.Retrieve(ctx, question, documentID, topK)
	if err != nil {
		return nil, err
	}

	if rc.Empty() {
		return &Answer{Text: FallbackAnswer, Citations: []Citation{}}, nil
	}

	a.logger.Info("Generating answer", "document", documentID, "sources", len(rc.Citations))

	text, err := a.model.Complete(ctx, buildPrompt(question, rc.Context))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &Answer{Text: text, Citations: rc.Citations}, nil
}

// StreamAnswer answers the question as an incremental fragment stream.
// Citations come from the same retrieval that built the generation context
// and become available only once the stream is exhausted (they depend on
// the resolved retrieval data path, not on model output). An empty
// retrieval yields the fallback answer as a single fragment.
func (a *Answerer) StreamAnswer(ctx context.Context, question, documentID string, topK int) (*AnswerStream, error) {
	rc, err := a.retriever.Retrieve(ctx, question, documentID, topK)
	if err != nil {
		return nil, err
	}

	if rc.Empty() {
		return newFallbackStream(FallbackAnswer), nil
	}

	a.logger.Info("Streaming answer", "document", documentID, "sources", len(rc.Citations))

	stream, err := a.model.Stream(ctx, buildPrompt(question, rc.Context))
	if err != nil {
		return nil, fmt.Errorf("start answer stream: %w", err)
	}

	return NewAnswerStream(stream, rc.Citations), nil
}

// buildPrompt assembles the grounding prompt. The model is told to answer
// strictly from the context, to answer whenever the context has any
// relevant mention however brief, and to cite by page number only.
func buildPrompt(question, context string) string {
	return fmt.Sprintf(`You are a helpful assistant that answers questions based on the provided context from a document.

Context from document:
%s

Question: %s

IMPORTANT INSTRUCTIONS:
1. ALWAYS provide an answer if the context contains ANY information related to the question, even if it's brief.
2. Use the information from the context above to answer the question.
3. If the context mentions the topic (even briefly), explain it based on what's provided.
4. Cite the page number(s) where you found the information using format: (Page X)
5. If you reference multiple pages, cite each one: (Page X, Page Y)
6. Be comprehensive and accurate based on the context.
7. ONLY say "I couldn't find relevant information" if the context contains ZERO mention of the topic.

Answer based on the context:`, context, question)
}
