// Package rag turns a user question plus a vector index into a grounded,
// cited answer: retrieval, context assembly and answer generation.
package rag

import "fmt"

// DefaultTopK is the number of nearest-neighbor chunks retrieved for a
// question when the caller does not specify one.
const DefaultTopK = 5

// Citation links a span of the answer's evidence back to its source page.
// Citations are derived from the retrieval step, never parsed out of model
// output, so they stay grounded in the exact evidence the model saw.
type Citation struct {
	Page  int     `json:"page"`
	Text  string  `json:"text"`
	Score float32 `json:"score,omitempty"`
}

// RetrievalContext is the assembled evidence for one question: the labeled
// context string handed to the model and the parallel citation list. Both
// are built from the same ordered nearest-neighbor result, so they always
// have the same length and order.
type RetrievalContext struct {
	Context   string
	Citations []Citation
}

// Empty reports whether retrieval found no relevant content. This is a
// valid terminal state, not an error.
func (rc *RetrievalContext) Empty() bool {
	return len(rc.Citations) == 0
}

// contextBlock formats one retrieved chunk for the grounding prompt.
func contextBlock(page int, text string) string {
	return fmt.Sprintf("[Page %d]: %s", page, text)
}
