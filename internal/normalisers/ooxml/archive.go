// Package ooxml reads the zip container shared by Office Open XML formats
// (docx, xlsx).
package ooxml

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// maxPartSize bounds how much of a single archive part is read into memory.
const maxPartSize = 64 << 20

// Open opens raw bytes as an OOXML package.
func Open(content []byte) (*zip.Reader, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a valid office archive: %v", domain.ErrCorruptFile, err)
	}
	return reader, nil
}

// ReadPart returns the contents of the named part, or (nil, false) if absent.
func ReadPart(reader *zip.Reader, name string) ([]byte, bool, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, true, fmt.Errorf("%w: open %s: %v", domain.ErrCorruptFile, name, err)
		}
		defer rc.Close()

		content, err := io.ReadAll(io.LimitReader(rc, maxPartSize))
		if err != nil {
			return nil, true, fmt.Errorf("%w: read %s: %v", domain.ErrCorruptFile, name, err)
		}
		return content, true, nil
	}
	return nil, false, nil
}

// coreXML represents the structure of docProps/core.xml.
type coreXML struct {
	Title string `xml:"title"`
}

// Title returns the title from docProps/core.xml, or a title derived from
// filename when the package carries none.
func Title(reader *zip.Reader, filename string) string {
	content, ok, err := ReadPart(reader, "docProps/core.xml")
	if ok && err == nil {
		var core coreXML
		if err := xml.Unmarshal(content, &core); err == nil && strings.TrimSpace(core.Title) != "" {
			return strings.TrimSpace(core.Title)
		}
	}
	return domain.TitleFromFilename(filename)
}
