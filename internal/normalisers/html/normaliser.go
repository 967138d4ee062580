package html

import (
	"bytes"
	"context"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedFileTypes returns the file types this normaliser handles.
func (n *Normaliser) SupportedFileTypes() []string {
	return []string{"html", "htm", "xhtml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts the title and readable text of a page.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	page := extract(raw.Content)
	title := page.title
	if title == "" {
		title = domain.TitleFromFilename(raw.Filename)
	}
	return &driven.NormaliseResult{Title: title, Text: page.text}, nil
}

var (
	// dropped elements contribute nothing to the text.
	dropped = map[atom.Atom]bool{
		atom.Script:   true,
		atom.Style:    true,
		atom.Noscript: true,
		atom.Head:     true,
		atom.Svg:      true,
		atom.Template: true,
	}

	// blocks start and end on their own line.
	blocks = map[atom.Atom]bool{
		atom.P: true, atom.Div: true, atom.Pre: true, atom.Blockquote: true,
		atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
		atom.Ul: true, atom.Ol: true, atom.Li: true, atom.Dl: true, atom.Dt: true, atom.Dd: true,
		atom.Table: true, atom.Tr: true, atom.Caption: true,
		atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true,
		atom.Nav: true, atom.Main: true, atom.Aside: true, atom.Figure: true, atom.Figcaption: true,
		atom.Form: true, atom.Br: true, atom.Hr: true,
	}
)

// flatten turns source line breaks into spaces outside <pre>.
var flatten = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")

type page struct {
	title string
	text  string
}

// extract walks the token stream once, collecting title and body text.
func extract(content []byte) page {
	var (
		z       = xhtml.NewTokenizer(bytes.NewReader(content))
		out     strings.Builder
		title   strings.Builder
		inTitle bool
		skip    int
		pre     int
		cells   int
	)

	for {
		tt := z.Next()
		switch tt {
		case xhtml.ErrorToken:
			return page{
				title: strings.Join(strings.Fields(title.String()), " "),
				text:  tidy(out.String()),
			}

		case xhtml.TextToken:
			text := string(z.Text())
			switch {
			case inTitle:
				title.WriteString(text)
			case skip > 0:
			case pre > 0:
				out.WriteString(text)
			default:
				out.WriteString(flatten.Replace(text))
			}

		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := atom.Lookup(name)
			switch {
			case tag == atom.Title:
				inTitle = tt == xhtml.StartTagToken && title.Len() == 0
			case dropped[tag]:
				if tt == xhtml.StartTagToken {
					skip++
				}
			case skip > 0:
			case tag == atom.Td || tag == atom.Th:
				if cells > 0 {
					out.WriteString(" | ")
				}
				cells++
			case blocks[tag]:
				switch tag {
				case atom.Tr:
					cells = 0
				case atom.Pre:
					pre++
				}
				out.WriteByte('\n')
			}

		case xhtml.EndTagToken:
			name, _ := z.TagName()
			tag := atom.Lookup(name)
			switch {
			case tag == atom.Title:
				inTitle = false
			case dropped[tag]:
				if skip > 0 {
					skip--
				}
			case skip == 0 && blocks[tag]:
				if tag == atom.Pre && pre > 0 {
					pre--
				}
				out.WriteByte('\n')
			}
		}
	}
}

// tidy collapses runs of whitespace within lines and drops blank lines.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// stripHTML returns only the readable text of content.
func stripHTML(content string) string {
	return extract([]byte(content)).text
}
