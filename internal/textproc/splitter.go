package textproc

import (
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// DefaultChunkSize is the target maximum chunk length in characters.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is how many characters adjacent chunks share so
	// retrieval keeps continuity across chunk boundaries.
	DefaultChunkOverlap = 200
)

// Page is one page of text extracted from a PDF, before or after
// normalization. Numbers are 1-based.
type Page struct {
	Number int
	Text   string
}

// RawChunk is a span of page text produced by the splitter. It records the
// page it was cut from so citations can point back to the source.
type RawChunk struct {
	Text string
	Page int
}

// Splitter cuts normalized page text into overlapping bounded-size chunks.
// It tries coarse separators first (paragraph break, line break, sentence
// end, space) and only falls back to finer ones when a segment still
// exceeds the chunk size, down to a character-level fallback.
type Splitter struct {
	inner textsplitter.RecursiveCharacter
}

// NewSplitter creates a splitter with the given chunk size and overlap.
// Non-positive arguments fall back to the defaults.
func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultChunkOverlap
	}

	inner := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", ". ", " ", ""}),
	)

	return &Splitter{inner: inner}
}

// Split chunks each page independently so every output chunk inherits the
// page number of the text it was cut from. Pages are processed in order
// and chunk order within a page follows source order. Empty pages produce
// no chunks.
func (s *Splitter) Split(pages []Page) ([]RawChunk, error) {
	var chunks []RawChunk

	for _, page := range pages {
		if page.Text == "" {
			continue
		}

		parts, err := s.inner.SplitText(page.Text)
		if err != nil {
			return nil, fmt.Errorf("split page %d: %w", page.Number, err)
		}

		for _, part := range parts {
			if part == "" {
				continue
			}
			chunks = append(chunks, RawChunk{Text: part, Page: page.Number})
		}
	}

	return chunks, nil
}
