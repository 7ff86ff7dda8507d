// Package llm invokes OpenAI chat completions for answer generation,
// in one shot or as an incremental token stream.
package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/bull/textsonar/internal/rag"
)

// Model is the chat model used for answer generation.
const Model = openai.ChatModelGPT4o

// Client generates answer text with GPT-4o.
type Client struct {
	client      *openai.Client
	temperature float64
}

// NewClient creates an answer-generation client over an authenticated
// OpenAI client.
func NewClient(client *openai.Client) *Client {
	return &Client{
		client:      client,
		temperature: 0.7,
	}
}

// Complete runs one blocking chat completion and returns the full answer text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.params(prompt))
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream starts a streaming chat completion. Fragments arrive as the
// provider emits them; the returned stream must be closed by the caller.
func (c *Client) Stream(ctx context.Context, prompt string) (rag.TokenStream, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(prompt))
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("start chat stream: %w", err)
	}
	return &tokenStream{inner: stream}, nil
}

func (c *Client) params(prompt string) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:       Model,
		Temperature: openai.Float(c.temperature),
	}
}

// tokenStream adapts the SSE completion stream to the answer-generation
// contract, skipping keep-alive chunks that carry no content delta.
type tokenStream struct {
	inner   *ssestream.Stream[openai.ChatCompletionChunk]
	current string
}

func (s *tokenStream) Next() bool {
	for s.inner.Next() {
		chunk := s.inner.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			s.current = content
			return true
		}
	}
	return false
}

func (s *tokenStream) Current() string {
	return s.current
}

func (s *tokenStream) Err() error {
	return s.inner.Err()
}

func (s *tokenStream) Close() error {
	return s.inner.Close()
}

// compile-time check that Client satisfies the answer-generation contract
var _ rag.LanguageModel = (*Client)(nil)
