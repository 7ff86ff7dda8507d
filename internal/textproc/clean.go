// Package textproc contains the text-shaping stages of the ingestion
// pipeline: page normalization, chunk splitting, per-chunk cleaning,
// quality filtering and duplicate suppression.
package textproc

import (
	"regexp"
	"strings"
)

const (
	// MinChunkLength is the minimum trimmed length a chunk must have
	// after cleaning to be considered meaningful.
	MinChunkLength = 30
)

var (
	newlineRun      = regexp.MustCompile(`\n+`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	trailingPageNum = regexp.MustCompile(`(?m)\s+\d+\s*$`)
	leadingPunct    = regexp.MustCompile(`^[.,;:!?\s]+`)
	digitsOnly      = regexp.MustCompile(`^\d+$`)
	hasLetter       = regexp.MustCompile(`[a-zA-Z]`)
)

// Normalize canonicalizes raw page text extracted from a PDF: newline runs
// become single spaces, whitespace runs collapse to a single space, and
// leading/trailing whitespace is trimmed. Idempotent.
func Normalize(text string) string {
	text = newlineRun.ReplaceAllString(text, " ")
	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// CleanChunkText removes artifacts that splitting tends to leave behind:
// trailing page-number runs bled in from the source PDF, leading
// punctuation, and any whitespace irregularities the stripping introduced.
func CleanChunkText(text string) string {
	text = trailingPageNum.ReplaceAllString(text, "")
	text = leadingPunct.ReplaceAllString(text, "")
	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// IsMeaningful reports whether a cleaned chunk carries enough semantic
// content to be worth indexing. Bare page numbers, letterless fragments and
// very short scraps are rejected.
func IsMeaningful(text string) bool {
	trimmed := strings.TrimSpace(text)
	if digitsOnly.MatchString(trimmed) {
		return false
	}
	if !hasLetter.MatchString(trimmed) {
		return false
	}
	return len(trimmed) >= MinChunkLength
}

// dedupKey canonicalizes chunk text for exact-match duplicate detection:
// trimmed, lower-cased, internal whitespace collapsed.
func dedupKey(text string) string {
	key := strings.ToLower(strings.TrimSpace(text))
	return whitespaceRun.ReplaceAllString(key, " ")
}

// Dedup removes chunks whose text duplicates an earlier chunk, comparing
// case- and whitespace-insensitively. The first occurrence wins and input
// order is preserved. Exact-match only; no fuzzy or semantic matching.
func Dedup(chunks []RawChunk) []RawChunk {
	seen := make(map[string]struct{}, len(chunks))
	unique := make([]RawChunk, 0, len(chunks))

	for _, chunk := range chunks {
		key := dedupKey(chunk.Text)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, chunk)
	}

	return unique
}
