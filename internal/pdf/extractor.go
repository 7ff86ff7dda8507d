// Package pdf extracts per-page plain text from PDF files.
package pdf

import (
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"

	"github.com/bull/textsonar/internal/textproc"
)

// Extractor reads PDF files from disk and returns their text one page at a
// time. Page numbers are 1-based.
type Extractor struct{}

// NewExtractor creates a new PDF extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractPages returns the raw text of every page in the PDF at path, in
// page order. Pages that fail text extraction abort the whole document;
// a PDF we can only partially read should not be silently half-indexed.
func (e *Extractor) ExtractPages(path string) ([]textproc.Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat pdf: %w", err)
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	numPages := reader.NumPage()
	pages := make([]textproc.Page, 0, numPages)

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract text from page %d: %w", i, err)
		}

		pages = append(pages, textproc.Page{Number: i, Text: text})
	}

	return pages, nil
}
