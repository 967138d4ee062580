// Package documents provides the document list view for the TUI.
package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// PageSize is the number of documents loaded at once.
const PageSize = 100

// ErrNoDocumentService is returned when the view has no service.
var ErrNoDocumentService = errors.New("document service not available")

// View lists documents and dispatches actions on the selected one.
type View struct {
	styles          *styles.Styles
	keymap          *keymap.KeyMap
	documentService driving.DocumentService
	ctx             context.Context

	documents     []domain.Document
	selected      int
	scrollOffset  int
	width         int
	height        int
	err           error
	notice        string
	loading       bool
	confirmDelete bool
}

// NewView creates a new documents view.
func NewView(s *styles.Styles, documentService driving.DocumentService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:          s,
		keymap:          keymap.DefaultKeyMap(),
		documentService: documentService,
		ctx:             context.Background(),
		width:           80,
		height:          24,
	}
}

// WithContext sets the context used for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init loads the document list.
func (v *View) Init() tea.Cmd {
	v.loading = true
	return v.load()
}

func (v *View) load() tea.Cmd {
	return func() tea.Msg {
		if v.documentService == nil {
			return messages.DocumentsLoaded{Err: ErrNoDocumentService}
		}
		docs, err := v.documentService.List(v.ctx, 0, PageSize)
		return messages.DocumentsLoaded{Documents: docs, Err: err}
	}
}

func (v *View) process(id string) tea.Cmd {
	return func() tea.Msg {
		doc, err := v.documentService.Process(v.ctx, id)
		return messages.DocumentProcessed{Document: doc, Err: err}
	}
}

func (v *View) remove(id string) tea.Cmd {
	return func() tea.Msg {
		return messages.DocumentDeleted{DocumentID: id, Err: v.documentService.Delete(v.ctx, id)}
	}
}

// Update handles messages for the documents view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.DocumentsLoaded:
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.documents = msg.Documents
			if v.selected >= len(v.documents) {
				v.selected = max(len(v.documents)-1, 0)
			}
			v.adjustScroll()
		}
		return v, nil

	case messages.DocumentProcessed:
		if msg.Err != nil {
			v.err = msg.Err
			return v, v.load()
		}
		v.notice = fmt.Sprintf("%s is %s", msg.Document.Filename, msg.Document.Status)
		return v, v.load()

	case messages.DocumentDeleted:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.notice = "Deleted " + msg.DocumentID
		return v, v.load()

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}
	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()

	if v.confirmDelete {
		v.confirmDelete = false
		doc := v.SelectedDocument()
		if keyStr == "y" && doc != nil {
			return v, v.remove(doc.ID)
		}
		return v, nil
	}

	switch {
	case keymap.Matches(keyStr, v.keymap.Up):
		if v.selected > 0 {
			v.selected--
			v.adjustScroll()
		}
		return v, nil
	case keymap.Matches(keyStr, v.keymap.Down):
		if v.selected < len(v.documents)-1 {
			v.selected++
			v.adjustScroll()
		}
		return v, nil
	case keymap.Matches(keyStr, v.keymap.Back):
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewMenu} }
	case keymap.Matches(keyStr, v.keymap.Reload):
		v.loading = true
		v.err = nil
		v.notice = ""
		return v, v.load()
	}

	doc := v.SelectedDocument()
	if doc == nil {
		return v, nil
	}
	v.err = nil
	v.notice = ""

	switch {
	case keymap.Matches(keyStr, v.keymap.Chat):
		selected := *doc
		return v, func() tea.Msg { return messages.ChatRequested{Document: &selected} }
	case keymap.Matches(keyStr, v.keymap.Chunks):
		selected := *doc
		return v, func() tea.Msg { return messages.ChunksRequested{Document: selected} }
	case keymap.Matches(keyStr, v.keymap.Process):
		v.notice = "Processing " + doc.Filename + "..."
		return v, v.process(doc.ID)
	case keymap.Matches(keyStr, v.keymap.Delete):
		v.confirmDelete = true
	}
	return v, nil
}

func (v *View) adjustScroll() {
	visible := v.visibleItemCount()
	if v.selected < v.scrollOffset {
		v.scrollOffset = v.selected
	} else if v.selected >= v.scrollOffset+visible {
		v.scrollOffset = v.selected - visible + 1
	}
}

func (v *View) visibleItemCount() int {
	return max(v.height-9, 1)
}

// View renders the documents view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render(fmt.Sprintf("Documents (%d)", len(v.documents))))
	b.WriteString("\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading documents..."))
	case len(v.documents) == 0:
		b.WriteString(v.styles.Muted.Render("No documents uploaded. Use 'docqa document upload <file>'."))
	default:
		visible := v.visibleItemCount()
		end := min(v.scrollOffset+visible, len(v.documents))
		for i := v.scrollOffset; i < end; i++ {
			b.WriteString(v.renderDocument(i, &v.documents[i]))
			b.WriteString("\n")
		}
		if len(v.documents) > visible {
			b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]", v.scrollOffset+1, end, len(v.documents))))
			b.WriteString("\n")
		}
		if doc := v.SelectedDocument(); doc != nil && doc.FailureReason != "" {
			b.WriteString("\n")
			b.WriteString(v.styles.Error.Render("Failed: " + doc.FailureReason))
		}
	}
	b.WriteString("\n\n")

	switch {
	case v.confirmDelete:
		b.WriteString(v.styles.Warning.Render("Delete this document? [y] yes  [any key] cancel"))
		b.WriteString("\n")
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
		b.WriteString("\n")
	case v.notice != "":
		b.WriteString(v.styles.Success.Render(v.notice))
		b.WriteString("\n")
	}

	b.WriteString(v.styles.Help.Render("[c] chat  [v] chunks  [p] process  [d] delete  [r] reload  [esc] back"))
	return b.String()
}

func (v *View) renderDocument(index int, doc *domain.Document) string {
	nameWidth := max(v.width/2-4, 10)
	name := doc.Filename
	if len([]rune(name)) > nameWidth {
		name = string([]rune(name)[:nameWidth-3]) + "..."
	}

	line := fmt.Sprintf("%-*s  %-4s %4d chunks  ", nameWidth, name, doc.FileType, doc.ChunkCount)
	if index == v.selected {
		return v.styles.Selected.Render("> "+line) + v.styles.Status(doc.Status)
	}
	return v.styles.Normal.Render("  "+line) + v.styles.Status(doc.Status)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.adjustScroll()
}

// Documents returns the loaded documents.
func (v *View) Documents() []domain.Document {
	return v.documents
}

// SelectedIndex returns the selected row.
func (v *View) SelectedIndex() int {
	return v.selected
}

// SelectedDocument returns the selected document, or nil.
func (v *View) SelectedDocument() *domain.Document {
	if v.selected < len(v.documents) {
		return &v.documents[v.selected]
	}
	return nil
}

// ConfirmingDelete reports whether a delete awaits confirmation.
func (v *View) ConfirmingDelete() bool {
	return v.confirmDelete
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
