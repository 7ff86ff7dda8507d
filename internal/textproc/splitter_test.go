package textproc

import (
	"strings"
	"testing"
)

// buildProse produces deterministic space-separated prose of roughly n chars.
func buildProse(n int) string {
	words := []string{"retrieval", "augmented", "generation", "grounds", "answers", "in", "source", "pages", "with", "citations"}
	var sb strings.Builder
	for i := 0; sb.Len() < n; i++ {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(words[i%len(words)])
	}
	return sb.String()
}

func TestSplit_RespectsChunkSize(t *testing.T) {
	splitter := NewSplitter(1000, 200)
	pages := []Page{{Number: 1, Text: buildProse(5000)}}

	chunks, err := splitter.Split(pages)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks from a 5000-char page, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk.Text) > 1000 {
			t.Errorf("chunk %d exceeds chunk size: %d chars", i, len(chunk.Text))
		}
		if chunk.Text == "" {
			t.Errorf("chunk %d is empty", i)
		}
		if chunk.Page != 1 {
			t.Errorf("chunk %d lost its page number: got %d", i, chunk.Page)
		}
	}
}

func TestSplit_ConsecutiveChunksOverlap(t *testing.T) {
	splitter := NewSplitter(1000, 200)
	pages := []Page{{Number: 1, Text: buildProse(3000)}}

	chunks, err := splitter.Split(pages)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		prev, curr := chunks[i-1].Text, chunks[i].Text
		// The tail of the previous chunk should reappear at the head of
		// the current one.
		tail := prev[len(prev)-50:]
		if !strings.Contains(curr, tail) {
			t.Errorf("chunks %d/%d share no overlap", i-1, i)
		}
	}
}

func TestSplit_ChunksComeFromSource(t *testing.T) {
	splitter := NewSplitter(1000, 200)
	text := buildProse(2500)
	pages := []Page{{Number: 1, Text: text}}

	chunks, err := splitter.Split(pages)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks from 2500 chars at size 1000/overlap 200, got %d", len(chunks))
	}

	for i, chunk := range chunks {
		if !strings.Contains(text, chunk.Text) {
			t.Errorf("chunk %d is not a span of the source text", i)
		}
	}
	if !strings.HasPrefix(text, chunks[0].Text) {
		t.Error("first chunk does not start at the beginning of the source")
	}
	if !strings.HasSuffix(text, chunks[len(chunks)-1].Text) {
		t.Error("last chunk does not end at the end of the source")
	}
}

func TestSplit_MultiplePages(t *testing.T) {
	splitter := NewSplitter(1000, 200)
	pages := []Page{
		{Number: 1, Text: buildProse(1300)},
		{Number: 2, Text: buildProse(1200)},
	}

	chunks, err := splitter.Split(pages)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	// A ~2500 char document at size 1000 / overlap 200 lands on a handful
	// of chunks; the exact count depends on word boundaries.
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks across two pages, got %d", len(chunks))
	}

	sawPage2 := false
	for i, chunk := range chunks {
		if chunk.Page == 2 {
			sawPage2 = true
		}
		if sawPage2 && chunk.Page == 1 {
			t.Errorf("chunk %d: page 1 chunk after page 2 began", i)
		}
	}
	if !sawPage2 {
		t.Error("no chunks attributed to page 2")
	}
}

func TestSplit_SkipsEmptyPages(t *testing.T) {
	splitter := NewSplitter(1000, 200)
	pages := []Page{
		{Number: 1, Text: ""},
		{Number: 2, Text: "a short but perfectly valid page of text"},
	}

	chunks, err := splitter.Split(pages)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Page != 2 {
		t.Errorf("expected page 2, got %d", chunks[0].Page)
	}
}

func TestSplit_PrefersParagraphBoundaries(t *testing.T) {
	// Chunk size too small for both paragraphs together, large enough for
	// either alone: the paragraph break must win over finer separators.
	splitter := NewSplitter(40, 0)
	pages := []Page{{Number: 1, Text: "first paragraph under the limit\n\nsecond paragraph also small"}}

	chunks, err := splitter.Split(pages)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	for i, chunk := range chunks {
		if strings.Contains(chunk.Text, "\n\n") {
			t.Errorf("chunk %d spans a paragraph break: %q", i, chunk.Text)
		}
	}
}
