// Package chat provides the question and answer view for the TUI.
package chat

import (
	"context"
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/components/transcript"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// ErrNoAnswerService indicates that no answer service was provided.
var ErrNoAnswerService = errors.New("answer service is required")

// View is the chat view: a transcript, a question input and a status bar.
type View struct {
	styles     *styles.Styles
	keymap     *keymap.KeyMap
	input      *input.QuestionInput
	transcript *transcript.Transcript
	statusbar  *status.Bar

	answers  driving.AnswerService
	sessions driving.SessionService
	ctx      context.Context
	cancel   context.CancelFunc

	document  *domain.Document
	sessionID string
	useLookup bool
	thinking  bool
	err       error

	width  int
	height int
}

// NewView creates a new chat view.
func NewView(s *styles.Styles, km *keymap.KeyMap, answers driving.AnswerService, sessions driving.SessionService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	v := &View{
		styles:     s,
		keymap:     km,
		input:      input.NewQuestionInput(s),
		transcript: transcript.New(s),
		statusbar:  status.NewBar(s, km),
		answers:    answers,
		sessions:   sessions,
		ctx:        context.Background(),
		width:      80,
		height:     24,
	}
	v.refreshMode()
	return v
}

// WithContext sets the parent context for questions.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init starts the input cursor.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// SetDocument binds the chat to a document, or unbinds it with nil. The
// conversation continues; the next answer starts a fresh context.
func (v *View) SetDocument(doc *domain.Document) {
	v.document = doc
	v.useLookup = false
	v.refreshMode()
}

// Update handles messages for the chat view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.AnswerReceived:
		v.handleAnswer(msg)
		return v, nil

	case messages.SessionCleared:
		if msg.Err != nil && !errors.Is(msg.Err, domain.ErrSessionNotFound) {
			v.setError(msg.Err)
		}
		return v, nil

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()

	switch {
	case msg.Type == tea.KeyEsc:
		v.abandon()
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewMenu} }

	case msg.Type == tea.KeyEnter:
		return v, v.ask()

	case keymap.Matches(keyStr, v.keymap.ToggleLookup):
		v.useLookup = !v.useLookup
		v.refreshMode()
		return v, nil

	case keymap.Matches(keyStr, v.keymap.NewSession):
		return v, v.newSession()

	case keyStr == "pgup" || keyStr == "pgdown":
		var cmd tea.Cmd
		v.transcript, cmd = v.transcript.Update(msg)
		return v, cmd
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// ask submits the typed question.
func (v *View) ask() tea.Cmd {
	question := strings.TrimSpace(v.input.Value())
	if question == "" || v.thinking {
		return nil
	}
	if v.answers == nil {
		v.setError(ErrNoAnswerService)
		return nil
	}

	req := domain.AnswerRequest{
		Question:  question,
		SessionID: v.sessionID,
		UseLookup: v.useLookup,
	}
	if v.document != nil {
		req.DocumentID = v.document.ID
	}

	ctx, cancel := context.WithCancel(v.ctx)
	v.cancel = cancel
	v.thinking = true
	v.err = nil
	v.input.Reset()
	v.transcript.SetPending(question)
	v.statusbar.Thinking()

	answers := v.answers
	return func() tea.Msg {
		defer cancel()
		answer, err := answers.Answer(ctx, req)
		return messages.AnswerReceived{Question: question, Answer: answer, Err: err}
	}
}

func (v *View) handleAnswer(msg messages.AnswerReceived) {
	if !v.thinking || msg.Question != v.transcript.Pending() {
		return
	}
	v.thinking = false
	v.cancel = nil
	v.transcript.SetPending("")

	if msg.Err != nil {
		v.input.SetValue(msg.Question)
		v.setError(msg.Err)
		return
	}

	a := msg.Answer
	v.sessionID = a.SessionID
	v.transcript.Append(
		domain.Turn{Role: domain.RoleQuestion, Content: msg.Question},
		domain.Turn{Role: domain.RoleAnswer, Content: a.Text, Provenance: a.Provenance, CreatedAt: a.AnsweredAt},
	)
	v.statusbar.Answered(len(a.Provenance))
}

// newSession forgets the conversation and deletes its log.
func (v *View) newSession() tea.Cmd {
	v.abandon()
	id := v.sessionID
	v.sessionID = ""
	v.transcript.Reset()
	v.statusbar.Clear()
	v.err = nil

	if id == "" || v.sessions == nil {
		return nil
	}
	sessions, ctx := v.sessions, v.ctx
	return func() tea.Msg {
		return messages.SessionCleared{Err: sessions.Delete(ctx, id)}
	}
}

// abandon cancels an unanswered question.
func (v *View) abandon() {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	if v.thinking {
		v.thinking = false
		v.transcript.SetPending("")
		v.statusbar.Clear()
	}
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.Failed(err)
}

func (v *View) refreshMode() {
	mode := "web"
	label := "Ask the web"
	if v.document != nil && !v.useLookup {
		mode = v.document.Filename
		label = "Ask " + v.document.Filename
	}
	v.statusbar.SetMode(mode)
	v.input.SetLabel(label)
	v.input.SetWidth(v.width)
}

// View renders the chat view.
func (v *View) View() string {
	header := v.styles.Title.Render("docqa chat")
	if v.sessionID != "" {
		header += v.styles.Muted.Render("  session " + v.sessionID)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		v.transcript.View(),
		"",
		v.input.View(),
		v.statusbar.View(),
	)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.input.SetWidth(width)
	v.transcript.SetDimensions(width, height-8)
	v.statusbar.SetWidth(width)
}

// SessionID returns the current session, empty before the first answer.
func (v *View) SessionID() string {
	return v.sessionID
}

// UseLookup reports whether questions go to external lookup.
func (v *View) UseLookup() bool {
	return v.useLookup
}

// Thinking reports whether a question is being answered.
func (v *View) Thinking() bool {
	return v.thinking
}

// Document returns the bound document, if any.
func (v *View) Document() *domain.Document {
	return v.document
}

// Transcript returns the transcript component.
func (v *View) Transcript() *transcript.Transcript {
	return v.transcript
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
