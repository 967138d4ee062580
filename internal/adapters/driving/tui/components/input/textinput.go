// Package input holds the question box of the chat view.
package input

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/styles"
)

// QuestionLimit caps the length of a typed question.
const QuestionLimit = 4000

const minFieldWidth = 20

// QuestionInput is a labelled single-line field. Editing, focus and the
// value come from the embedded textinput.
type QuestionInput struct {
	textinput.Model

	styles *styles.Styles
	label  string
	outer  int
}

func NewQuestionInput(s *styles.Styles) *QuestionInput {
	if s == nil {
		s = styles.DefaultStyles()
	}
	field := textinput.New()
	field.Placeholder = "Ask a question..."
	field.CharLimit = QuestionLimit
	field.Focus()

	q := &QuestionInput{Model: field, styles: s, label: "Ask"}
	q.SetWidth(58)
	return q
}

// Init starts the cursor blinking.
func (q *QuestionInput) Init() tea.Cmd { return textinput.Blink }

func (q *QuestionInput) Update(msg tea.Msg) (*QuestionInput, tea.Cmd) {
	var cmd tea.Cmd
	q.Model, cmd = q.Model.Update(msg)
	return q, cmd
}

func (q *QuestionInput) View() string {
	//nolint:misspell // lipgloss spelling
	return lipgloss.JoinHorizontal(lipgloss.Center,
		q.styles.Title.Render(q.label+": "),
		q.styles.InputField.Render(q.Model.View()),
	)
}

// SetLabel changes the prompt, e.g. "Ask report.pdf".
func (q *QuestionInput) SetLabel(label string) { q.label = label }
func (q *QuestionInput) Label() string         { return q.label }

// SetWidth sizes the whole line; the field gets what the label and the
// field border leave over.
func (q *QuestionInput) SetWidth(width int) {
	q.outer = width
	q.Model.Width = max(width-len(q.label)-8, minFieldWidth)
}

func (q *QuestionInput) Width() int { return q.outer }
