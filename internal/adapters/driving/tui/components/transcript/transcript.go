// Package transcript renders a conversation in a scrollable viewport.
package transcript

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docqa/internal/core/domain"
)

// Transcript shows question and answer turns with their sources.
type Transcript struct {
	styles   *styles.Styles
	viewport viewport.Model
	turns    []domain.Turn
	pending  string
}

// New creates an empty transcript.
func New(s *styles.Styles) *Transcript {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &Transcript{
		styles:   s,
		viewport: viewport.New(80, 10),
	}
}

// Update forwards scrolling keys to the viewport.
func (t *Transcript) Update(msg tea.Msg) (*Transcript, tea.Cmd) {
	var cmd tea.Cmd
	t.viewport, cmd = t.viewport.Update(msg)
	return t, cmd
}

// View renders the visible part of the transcript.
func (t *Transcript) View() string {
	if len(t.turns) == 0 && t.pending == "" {
		return t.styles.Muted.Render("No questions yet.")
	}
	return t.viewport.View()
}

// Append adds turns and scrolls to the bottom.
func (t *Transcript) Append(turns ...domain.Turn) {
	t.turns = append(t.turns, turns...)
	t.refresh()
}

// SetPending shows a question that is still being answered.
func (t *Transcript) SetPending(question string) {
	t.pending = question
	t.refresh()
}

// Turns returns the rendered turns.
func (t *Transcript) Turns() []domain.Turn {
	return t.turns
}

// Pending returns the unanswered question, if any.
func (t *Transcript) Pending() string {
	return t.pending
}

// Reset clears the transcript.
func (t *Transcript) Reset() {
	t.turns = nil
	t.pending = ""
	t.refresh()
}

// SetDimensions resizes the viewport.
func (t *Transcript) SetDimensions(width, height int) {
	t.viewport.Width = width
	t.viewport.Height = max(height, 1)
	t.refresh()
}

func (t *Transcript) refresh() {
	t.viewport.SetContent(t.render())
	t.viewport.GotoBottom()
}

func (t *Transcript) render() string {
	width := max(t.viewport.Width-4, 20)
	wrap := lipgloss.NewStyle().Width(width)

	var b strings.Builder
	for _, turn := range t.turns {
		switch turn.Role {
		case domain.RoleQuestion:
			b.WriteString(t.styles.Question.Render("> " + turn.Content))
			b.WriteString("\n")
		case domain.RoleAnswer:
			b.WriteString(t.styles.Answer.Render(wrap.Render(turn.Content)))
			b.WriteString("\n")
			for i, p := range turn.Provenance {
				b.WriteString(t.styles.Muted.Render(fmt.Sprintf("    [%d] %s", i+1, sourceLabel(p))))
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	}
	if t.pending != "" {
		b.WriteString(t.styles.Question.Render("> " + t.pending))
		b.WriteString("\n")
		b.WriteString(t.styles.Muted.Render("  ..."))
	}
	return b.String()
}

func sourceLabel(p domain.Provenance) string {
	if p.Kind == domain.ProvenanceExternal {
		return fmt.Sprintf("%s %s", p.Title, p.URL)
	}
	return fmt.Sprintf("%s chunk %d (%.2f)", p.Title, p.ChunkIndex, p.Score)
}
