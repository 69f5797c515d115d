// Package pdftext turns PDF bytes into a plain-text transcript.
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/triad3/irpf-import/internal/domain"
)

// PageSeparator joins the text of consecutive pages.
const PageSeparator = "\n\n"

// Extractor reads the text layer of PDF documents. It holds no state and is
// safe for concurrent use.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the text of every page in page order, separated by a blank line.
// It fails with UnreadableDocument when the bytes are not a PDF or carry no text layer.
func (e *Extractor) Extract(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", domain.Errorf(domain.CodeUnreadableDocument, "empty document")
	}

	pages, err := readPages(ctx, data)
	if err != nil {
		return "", err
	}

	transcript := strings.Join(pages, PageSeparator)
	if strings.TrimSpace(transcript) == "" {
		return "", domain.Errorf(domain.CodeUnreadableDocument, "document has no text layer")
	}

	return transcript, nil
}

// readPages scopes the reader to this call so the parsed document is released
// on every return path, including recovered panics from malformed streams.
func readPages(ctx context.Context, data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = domain.NewError(domain.CodeUnreadableDocument, "malformed PDF", fmt.Errorf("%v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.NewError(domain.CodeUnreadableDocument, "open PDF", err)
	}

	total := reader.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, domain.NewError(domain.CodeUnreadableDocument, fmt.Sprintf("read page %d", i), err)
		}

		text = strings.TrimSpace(text)
		if text != "" {
			pages = append(pages, text)
		}
	}

	return pages, nil
}
