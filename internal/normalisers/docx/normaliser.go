package docx

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/normalisers/ooxml"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles DOCX documents.
type Normaliser struct{}

// New creates a new DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedFileTypes returns the file types this normaliser handles.
func (n *Normaliser) SupportedFileTypes() []string {
	return []string{"docx"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts paragraphs and tables from a DOCX document in body order.
// Table rows are rendered with cells joined by " | ".
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	reader, err := ooxml.Open(raw.Content)
	if err != nil {
		return nil, err
	}

	body, ok, err := ooxml.ReadPart(reader, "word/document.xml")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: missing word/document.xml", domain.ErrCorruptFile)
	}

	text, err := parseDocumentXML(body)
	if err != nil {
		return nil, err
	}

	return &driven.NormaliseResult{
		Title: ooxml.Title(reader, raw.Filename),
		Text:  text,
	}, nil
}

// bodyWriter accumulates text blocks while walking word/document.xml.
type bodyWriter struct {
	blocks     []string
	para       strings.Builder
	cell       []string
	row        []string
	rows       []string
	tableDepth int
	inText     bool
}

// parseDocumentXML walks the document body token by token so that
// paragraphs and tables keep their relative order.
func parseDocumentXML(content []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	w := &bodyWriter{}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: parse document.xml: %v", domain.ErrCorruptFile, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			w.start(t.Name.Local)
		case xml.EndElement:
			w.end(t.Name.Local)
		case xml.CharData:
			if w.inText {
				w.para.Write(t)
			}
		}
	}

	return strings.Join(w.blocks, "\n\n"), nil
}

func (w *bodyWriter) start(name string) {
	switch name {
	case "tbl":
		w.tableDepth++
		if w.tableDepth == 1 {
			w.rows = nil
		}
	case "tr":
		if w.tableDepth == 1 {
			w.row = nil
		}
	case "tc":
		if w.tableDepth == 1 {
			w.cell = nil
		}
	case "p":
		w.para.Reset()
	case "t":
		w.inText = true
	case "tab":
		w.para.WriteString(" ")
	case "br", "cr":
		w.para.WriteString("\n")
	}
}

func (w *bodyWriter) end(name string) {
	switch name {
	case "t":
		w.inText = false
	case "p":
		text := strings.TrimSpace(w.para.String())
		if text == "" {
			return
		}
		if w.tableDepth > 0 {
			w.cell = append(w.cell, text)
		} else {
			w.blocks = append(w.blocks, text)
		}
	case "tc":
		if w.tableDepth == 1 {
			w.row = append(w.row, strings.Join(w.cell, " "))
		}
	case "tr":
		if w.tableDepth == 1 && strings.TrimSpace(strings.Join(w.row, "")) != "" {
			w.rows = append(w.rows, strings.Join(w.row, " | "))
		}
	case "tbl":
		w.tableDepth--
		if w.tableDepth == 0 && len(w.rows) > 0 {
			w.blocks = append(w.blocks, strings.Join(w.rows, "\n"))
		}
	}
}
