// Package pdf loads page text from PDF files.
//
// Files are checked with pdfcpu first so that damaged and encrypted documents
// fail with a clear message, then text is extracted page by page with
// ledongthuc/pdf.
package pdf

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/logger"
)

// Ensure Loader implements the interface.
var _ driven.DocumentLoader = (*Loader)(nil)

// Loader extracts page text from PDF files.
type Loader struct{}

// New creates a PDF loader. pdfcpu is told not to create its configuration
// directory in the user's home.
func New() *Loader {
	api.DisableConfigDir()
	return &Loader{}
}

// Extensions returns the accepted file extensions.
func (l *Loader) Extensions() []string {
	return []string{".pdf"}
}

// Load returns one page per PDF page, in order. Pages without text are kept
// so that page numbers stay aligned with the document.
func (l *Loader) Load(ctx context.Context, path string) ([]domain.Page, error) {
	total, err := preflight(path)
	if err != nil {
		return nil, err
	}

	texts, err := extractText(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(texts) != total {
		logger.Debug("pdf %s: pdfcpu reports %d pages, text reader found %d", path, total, len(texts))
		total = len(texts)
	}

	pages := make([]domain.Page, 0, total)
	for i, text := range texts {
		pages = append(pages, domain.Page{
			Number: i,
			Text:   text,
			Metadata: map[string]any{
				domain.MetaSource:     path,
				domain.MetaPage:       i,
				domain.MetaPageLabel:  strconv.Itoa(i + 1),
				domain.MetaTotalPages: total,
			},
		})
	}
	return pages, nil
}

// preflight validates the file structure and rejects encrypted documents.
func preflight(path string) (int, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "password") {
			return 0, fmt.Errorf("%w: %s is encrypted", domain.ErrInvalidInput, path)
		}
		return 0, fmt.Errorf("%w: %s is not a readable PDF: %w", domain.ErrInvalidInput, path, err)
	}
	if pdfCtx.Encrypt != nil {
		return 0, fmt.Errorf("%w: %s is encrypted", domain.ErrInvalidInput, path)
	}
	return pdfCtx.PageCount, nil
}

// extractText returns the plain text of every page. The reader panics on
// some malformed content streams, which is reported as invalid input.
func extractText(ctx context.Context, path string) (texts []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			texts = nil
			err = fmt.Errorf("%w: extract text from %s: %v", domain.ErrInvalidInput, path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", domain.ErrInvalidInput, path, err)
	}
	defer f.Close()

	n := r.NumPage()
	texts = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			texts = append(texts, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d of %s: %w", domain.ErrInvalidInput, i, path, err)
		}
		texts = append(texts, text)
	}
	return texts, nil
}
