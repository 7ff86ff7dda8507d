package rag

import "errors"

// ErrStreamNotExhausted is returned by AnswerStream.Citations while
// fragments remain to be consumed, or after an early Close.
var ErrStreamNotExhausted = errors.New("answer stream not fully consumed")

// AnswerStream is a finite, forward-only sequence of answer fragments with
// trailing citations. Fragments arrive as the model emits them; Citations
// becomes available only after Next has reported completion.
type AnswerStream struct {
	stream    TokenStream
	citations []Citation

	fallback    string
	fallbackPos int

	current   string
	exhausted bool
	closed    bool
}

// NewAnswerStream wraps a model token stream with the citations resolved
// by the retrieval that produced its prompt.
func NewAnswerStream(stream TokenStream, citations []Citation) *AnswerStream {
	return &AnswerStream{stream: stream, citations: citations}
}

// newFallbackStream yields the fixed fallback text as a single fragment
// with no citations.
func newFallbackStream(text string) *AnswerStream {
	return &AnswerStream{fallback: text, citations: []Citation{}}
}

// Next advances to the next fragment, blocking only on model-provider I/O.
// It returns false when the stream is exhausted, closed or failed.
func (s *AnswerStream) Next() bool {
	if s.exhausted || s.closed {
		return false
	}

	if s.stream == nil {
		if s.fallbackPos > 0 {
			s.exhausted = true
			return false
		}
		s.fallbackPos++
		s.current = s.fallback
		return true
	}

	if s.stream.Next() {
		s.current = s.stream.Current()
		return true
	}

	s.exhausted = true
	return false
}

// Current returns the fragment most recently produced by Next.
func (s *AnswerStream) Current() string {
	return s.current
}

// Err returns the model-provider error that terminated the stream, if any.
func (s *AnswerStream) Err() error {
	if s.stream == nil {
		return nil
	}
	return s.stream.Err()
}

// Close aborts any in-flight model stream. Callers that stop consuming
// early must call it so the provider connection is released; after an
// early Close the citations stay unavailable.
func (s *AnswerStream) Close() error {
	if !s.exhausted {
		s.closed = true
	}
	if s.stream == nil {
		return nil
	}
	return s.stream.Close()
}

// Citations returns the retrieval-time citations for the answer. They are
// only available once the stream has been fully consumed without error.
func (s *AnswerStream) Citations() ([]Citation, error) {
	if !s.exhausted {
		return nil, ErrStreamNotExhausted
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return s.citations, nil
}
