// Package xlsx provides a Normaliser for Excel workbooks. Each sheet becomes
// a block headed by its name, with one line per row and cells joined by " | ".
package xlsx

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/normalisers/ooxml"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles XLSX workbooks.
type Normaliser struct{}

// New creates a new XLSX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedFileTypes returns the file types this normaliser handles.
func (n *Normaliser) SupportedFileTypes() []string {
	return []string{"xlsx"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

type workbookXML struct {
	Sheets []struct {
		Name string `xml:"name,attr"`
		RID  string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sheets>sheet"`
}

type relationshipsXML struct {
	Relationships []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

type sharedStringsXML struct {
	Items []stringItem `xml:"si"`
}

type stringItem struct {
	Text string `xml:"t"`
	Runs []struct {
		Text string `xml:"t"`
	} `xml:"r"`
}

func (s stringItem) String() string {
	if len(s.Runs) == 0 {
		return s.Text
	}
	var b strings.Builder
	for _, r := range s.Runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

type worksheetXML struct {
	Rows []struct {
		Cells []struct {
			Ref    string     `xml:"r,attr"`
			Type   string     `xml:"t,attr"`
			Value  string     `xml:"v"`
			Inline stringItem `xml:"is"`
		} `xml:"c"`
	} `xml:"sheetData>row"`
}

// Normalise renders every sheet of the workbook as text.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	reader, err := ooxml.Open(raw.Content)
	if err != nil {
		return nil, err
	}

	var workbook workbookXML
	if err := unmarshalPart(reader, "xl/workbook.xml", true, &workbook); err != nil {
		return nil, err
	}

	var rels relationshipsXML
	if err := unmarshalPart(reader, "xl/_rels/workbook.xml.rels", false, &rels); err != nil {
		return nil, err
	}
	targets := make(map[string]string, len(rels.Relationships))
	for _, r := range rels.Relationships {
		targets[r.ID] = r.Target
	}

	var shared sharedStringsXML
	if err := unmarshalPart(reader, "xl/sharedStrings.xml", false, &shared); err != nil {
		return nil, err
	}

	blocks := make([]string, 0, len(workbook.Sheets))
	for i, sheet := range workbook.Sheets {
		name := sheetPath(targets[sheet.RID], i)

		var ws worksheetXML
		if err := unmarshalPart(reader, name, true, &ws); err != nil {
			return nil, err
		}

		rows := renderRows(ws, shared)
		if len(rows) == 0 {
			continue
		}
		blocks = append(blocks, "Sheet: "+sheet.Name+"\n"+strings.Join(rows, "\n"))
	}

	return &driven.NormaliseResult{
		Title: ooxml.Title(reader, raw.Filename),
		Text:  strings.Join(blocks, "\n\n"),
	}, nil
}

// sheetPath resolves a workbook relationship target to an archive path.
func sheetPath(target string, position int) string {
	switch {
	case target == "":
		return fmt.Sprintf("xl/worksheets/sheet%d.xml", position+1)
	case strings.HasPrefix(target, "/"):
		return strings.TrimPrefix(target, "/")
	default:
		return path.Join("xl", target)
	}
}

func renderRows(ws worksheetXML, shared sharedStringsXML) []string {
	var rows []string
	for _, row := range ws.Rows {
		var cells []string
		for _, c := range row.Cells {
			if col := columnIndex(c.Ref); col > len(cells) {
				cells = append(cells, make([]string, col-len(cells))...)
			}
			cells = append(cells, strings.TrimSpace(cellValue(c.Type, c.Value, c.Inline, shared)))
		}
		if strings.TrimSpace(strings.Join(cells, "")) == "" {
			continue
		}
		rows = append(rows, strings.Join(cells, " | "))
	}
	return rows
}

func cellValue(kind, value string, inline stringItem, shared sharedStringsXML) string {
	switch kind {
	case "s":
		idx, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || idx < 0 || idx >= len(shared.Items) {
			return ""
		}
		return shared.Items[idx].String()
	case "inlineStr":
		return inline.String()
	case "b":
		if value == "1" {
			return "TRUE"
		}
		return "FALSE"
	default:
		return value
	}
}

// columnIndex converts the letters of a cell reference ("C7") to a zero-based
// column index. It returns -1 when the reference carries no column.
func columnIndex(ref string) int {
	col := 0
	seen := false
	for _, r := range ref {
		if r < 'A' || r > 'Z' {
			break
		}
		col = col*26 + int(r-'A'+1)
		seen = true
	}
	if !seen {
		return -1
	}
	return col - 1
}

func unmarshalPart(reader *zip.Reader, name string, required bool, v any) error {
	content, ok, err := ooxml.ReadPart(reader, name)
	if err != nil {
		return err
	}
	if !ok {
		if required {
			return fmt.Errorf("%w: missing %s", domain.ErrCorruptFile, name)
		}
		return nil
	}
	if err := xml.Unmarshal(content, v); err != nil {
		return fmt.Errorf("%w: parse %s: %v", domain.ErrCorruptFile, name, err)
	}
	return nil
}
