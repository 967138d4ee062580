// Package menu is the start screen of the TUI.
package menu

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/styles"
)

// Entry is one destination on the menu. An entry without a view quits.
type Entry struct {
	Label       string
	Description string
	View        messages.ViewType
	quits       bool
}

// Entries lists the menu destinations in display order.
func Entries() []Entry {
	return []Entry{
		{Label: "Chat", Description: "ask the web, or a document once one is open", View: messages.ViewChat},
		{Label: "Documents", Description: "upload status, chunks, processing", View: messages.ViewDocuments},
		{Label: "Settings", Description: "providers, retrieval and storage", View: messages.ViewSettings},
		{Label: "Help", Description: "keybindings", View: messages.ViewHelp},
		{Label: "Quit", quits: true},
	}
}

// View renders the menu and turns a selection into a view change.
type View struct {
	styles  *styles.Styles
	keys    *keymap.KeyMap
	entries []Entry
	cursor  int
	width   int
	height  int
	ready   bool
}

// NewView creates the menu. Nil styles or keys fall back to the defaults.
func NewView(s *styles.Styles, keys *keymap.KeyMap) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if keys == nil {
		keys = keymap.DefaultKeyMap()
	}
	return &View{
		styles:  s,
		keys:    keys,
		entries: Entries(),
		width:   80,
		height:  24,
	}
}

// Init implements the view contract; the menu loads nothing.
func (v *View) Init() tea.Cmd {
	return nil
}

// Update moves the cursor and emits ViewChanged or tea.Quit on selection.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)

	case tea.KeyMsg:
		k := msg.String()
		switch {
		case keymap.Matches(k, v.keys.Up):
			v.cursor = (v.cursor + len(v.entries) - 1) % len(v.entries)
		case keymap.Matches(k, v.keys.Down):
			v.cursor = (v.cursor + 1) % len(v.entries)
		case keymap.Matches(k, v.keys.Select):
			return v, v.choose(v.entries[v.cursor])
		case keymap.Matches(k, v.keys.Quit):
			return v, tea.Quit
		}
	}
	return v, nil
}

func (v *View) choose(e Entry) tea.Cmd {
	if e.quits {
		return tea.Quit
	}
	view := e.View
	return func() tea.Msg { return messages.ViewChanged{View: view} }
}

// View renders the menu.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	var b strings.Builder
	b.WriteString(v.styles.Title.Render("docqa"))
	b.WriteString("\n")
	b.WriteString(v.styles.Subtitle.Render("Ask your documents"))
	b.WriteString("\n\n")

	for i, e := range v.entries {
		if i == v.cursor {
			b.WriteString(v.styles.Selected.Render("> " + e.Label))
		} else {
			b.WriteString(v.styles.Normal.Render("  " + e.Label))
		}
		if e.Description != "" {
			b.WriteString("  ")
			b.WriteString(v.styles.Muted.Render(e.Description))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[↑/↓] move  [enter] open  [q] quit"))
	return b.String()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Cursor returns the index of the highlighted entry.
func (v *View) Cursor() int {
	return v.cursor
}
