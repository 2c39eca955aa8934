// Package document turns local files into plain text ready for
// chunking. Only PDF is supported today; the Extractor interface keeps
// the door open for other formats without touching callers.
package document

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/LexaTechAI/lexa-mvp/engine/domain"
)

// DefaultMaxPages caps how many pages a single extraction will walk.
// Court filings routinely run to hundreds of pages; anything beyond
// this is almost certainly a scan dump we cannot handle anyway.
const DefaultMaxPages = 200

// Extractor converts a file on disk into plain text.
type Extractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// PDFExtractor reads text content out of PDF files.
type PDFExtractor struct {
	maxPages int
	logger   *slog.Logger
}

// NewPDFExtractor builds an extractor. maxPages <= 0 selects
// DefaultMaxPages.
func NewPDFExtractor(maxPages int, logger *slog.Logger) *PDFExtractor {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFExtractor{maxPages: maxPages, logger: logger}
}

// ExtractText pulls the plain text of every page, in page order,
// joined by blank lines so paragraph-aware chunkers see page breaks.
// A file that cannot be opened or parsed fails with
// domain.ErrUnreadableDocument; a parseable file with no extractable
// text fails with domain.ErrNoContent.
func (e *PDFExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("document: open %s: %w: %v", path, domain.ErrUnreadableDocument, err)
	}
	defer f.Close()

	total := reader.NumPage()
	pages := total
	if pages > e.maxPages {
		e.logger.Warn("document: page cap reached, truncating",
			"path", path,
			"pages", total,
			"max", e.maxPages,
		)
		pages = e.maxPages
	}

	var sb strings.Builder
	extracted := 0
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// One corrupt page should not sink the document.
			e.logger.Warn("document: page extraction failed",
				"path", path,
				"page", i,
				"error", err,
			)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if extracted > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
		extracted++
	}

	out := sb.String()
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("document: %s: %w", path, domain.ErrNoContent)
	}

	e.logger.Info("document: extracted",
		"path", path,
		"pages", extracted,
		"chars", len(out),
	)
	return out, nil
}

// SourceID derives a stable document identifier from a file path: the
// base name without its extension. Re-ingesting the same file yields
// the same id, which keeps vector point ids stable too.
func SourceID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
