// Package pdf provides a Normaliser for PDF documents backed by pdfcpu.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// maxTitleLength is the longest first line accepted as a title.
const maxTitleLength = 200

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// PageExtractor returns the text of each page of a PDF, in page order.
type PageExtractor interface {
	Pages(ctx context.Context, content []byte) ([]string, error)
}

// Normaliser handles PDF documents.
type Normaliser struct {
	extractor PageExtractor
}

// New creates a PDF normaliser using pdfcpu for extraction.
func New() *Normaliser {
	return &Normaliser{extractor: &pdfcpuExtractor{}}
}

// NewWithExtractor creates a PDF normaliser with a custom page extractor.
func NewWithExtractor(e PageExtractor) *Normaliser {
	return &Normaliser{extractor: e}
}

// SupportedFileTypes returns the file types this normaliser handles.
func (n *Normaliser) SupportedFileTypes() []string {
	return []string{"pdf"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts text from every page. Pages are separated by a blank line.
func (n *Normaliser) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	if !bytes.HasPrefix(bytes.TrimLeft(raw.Content, "\x00\t\n\r "), []byte("%PDF-")) {
		return nil, fmt.Errorf("%w: missing PDF header", domain.ErrCorruptFile)
	}

	pages, err := n.extractor.Pages(ctx, raw.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptFile, err)
	}

	kept := make([]string, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	text := strings.Join(kept, "\n\n")

	return &driven.NormaliseResult{
		Title: extractTitle(text, raw.Filename),
		Text:  text,
	}, nil
}

// extractTitle returns the first short non-empty line of the text, or a
// title derived from the filename.
func extractTitle(content, filename string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && len(line) < maxTitleLength && !strings.ContainsRune(line, 0) {
			return line
		}
	}
	return domain.TitleFromFilename(filename)
}

var disableConfigDir sync.Once

// pdfcpuExtractor reads page content streams with pdfcpu and decodes the
// text operators in them.
type pdfcpuExtractor struct{}

func (pdfcpuExtractor) Pages(ctx context.Context, content []byte) (pages []string, err error) {
	disableConfigDir.Do(api.DisableConfigDir)

	// pdfcpu may panic on malformed cross-reference data.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("read pdf: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(content), conf)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	pages = make([]string, 0, pdfCtx.PageCount)
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", pageNr, err)
		}
		if r == nil {
			pages = append(pages, "")
			continue
		}

		stream, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", pageNr, err)
		}
		pages = append(pages, textFromContent(stream))
	}

	return pages, nil
}
