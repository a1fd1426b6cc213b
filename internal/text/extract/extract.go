// Package extract pulls plain text out of PDF files.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kailas-cloud/shelfindex/internal/domain"
)

// DefaultMaxSize caps the accepted file size (64 MB).
const DefaultMaxSize = 64 << 20

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxSize rejects files larger than n bytes. Zero disables the limit.
func WithMaxSize(n int64) Option {
	return func(e *Extractor) { e.maxSize = n }
}

// WithStrictPages makes an unreadable page fail the whole extraction
// instead of contributing an empty string.
func WithStrictPages(strict bool) Option {
	return func(e *Extractor) { e.strict = strict }
}

// Extractor converts PDF bytes to text. It holds no state between calls
// and is safe for concurrent use.
type Extractor struct {
	maxSize int64
	strict  bool
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the text of every page in order, pages separated by "\n".
// Pages without a text layer contribute "", or fail the whole file in strict
// mode. Bytes that do not parse as a PDF, or a PDF with no pages, yield
// *domain.ExtractionError.
func (e *Extractor) Extract(data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", &domain.ExtractionError{Reason: "empty file"}
	}
	if e.maxSize > 0 && int64(len(data)) > e.maxSize {
		return "", &domain.ExtractionError{Reason: fmt.Sprintf("file exceeds %d bytes", e.maxSize)}
	}

	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &domain.ExtractionError{Reason: "malformed pdf", Err: fmt.Errorf("%v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &domain.ExtractionError{Reason: "not a pdf", Err: err}
	}

	n := reader.NumPage()
	if n == 0 {
		return "", &domain.ExtractionError{Reason: "document has no pages"}
	}

	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			if e.strict {
				return "", &domain.ExtractionError{Reason: fmt.Sprintf("page %d missing", i)}
			}
			pages = append(pages, "")
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			if e.strict {
				return "", &domain.ExtractionError{Reason: fmt.Sprintf("page %d", i), Err: err}
			}
			pageText = ""
		}
		if strings.TrimSpace(pageText) == "" {
			if e.strict {
				return "", &domain.ExtractionError{Reason: fmt.Sprintf("page %d has no text layer", i)}
			}
			pageText = ""
		}
		pages = append(pages, pageText)
	}

	return strings.Join(pages, "\n"), nil
}
