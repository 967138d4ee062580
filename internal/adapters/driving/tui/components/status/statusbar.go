// Package status renders the one-line bar under the chat view.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/docqa/internal/adapters/driving/tui/styles"
)

// State is what the chat is doing, as far as the bar shows it.
type State string

const (
	StateReady    State = "ready"
	StateThinking State = "thinking"
	StateAnswered State = "answered"
	StateError    State = "error"
)

// Bar shows the retrieval mode and state on the left and key hints on the
// right. It has no input of its own; the chat view drives it.
type Bar struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	state   State
	message string
	mode    string
	sources int
	width   int
}

func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &Bar{styles: s, keymap: km, state: StateReady, width: 80}
}

// Thinking marks a question in flight.
func (b *Bar) Thinking() {
	b.Clear()
	b.state = StateThinking
}

// Answered records how many sources backed the last answer.
func (b *Bar) Answered(sources int) {
	b.Clear()
	b.state = StateAnswered
	b.sources = sources
}

// Failed shows err until the next transition.
func (b *Bar) Failed(err error) {
	b.Clear()
	b.state = StateError
	if err != nil {
		b.message = err.Error()
	}
}

// Clear returns to ready. The mode is kept.
func (b *Bar) Clear() {
	b.state = StateReady
	b.message = ""
	b.sources = 0
}

// SetMode sets the retrieval label: a filename, or "web".
func (b *Bar) SetMode(mode string) { b.mode = mode }
func (b *Bar) SetWidth(width int)  { b.width = width }

func (b *Bar) State() State     { return b.state }
func (b *Bar) Message() string  { return b.message }
func (b *Bar) Mode() string     { return b.mode }
func (b *Bar) SourceCount() int { return b.sources }
func (b *Bar) Width() int       { return b.width }

func (b *Bar) View() string {
	left, right := b.describe(), b.hints()
	// StatusBar pads one column each side.
	gap := max(1, b.width-2-lipgloss.Width(left)-lipgloss.Width(right))
	return b.styles.StatusBar.Width(b.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (b *Bar) describe() string {
	var text string
	switch b.state {
	case StateThinking:
		text = b.styles.Warning.Render("Thinking...")
	case StateAnswered:
		text = b.styles.Normal.Render(fmt.Sprintf("%d sources", b.sources))
	case StateError:
		msg := "Error"
		if b.message != "" {
			msg += ": " + b.message
		}
		text = b.styles.Error.Render(msg)
	default:
		text = b.styles.Muted.Render("Ready")
	}
	if b.mode == "" {
		return text
	}
	return b.styles.Subtitle.Render("["+b.mode+"]") + " " + text
}

// hints lists the chat bindings, or the short set after an error so quit
// stays visible.
func (b *Bar) hints() string {
	bindings := b.keymap.ChatHelp()
	if b.state == StateError {
		bindings = b.keymap.ShortHelp()
	}
	parts := make([]string, len(bindings))
	for i, binding := range bindings {
		parts[i] = formatHint(binding)
	}
	return b.styles.Muted.Render(strings.Join(parts, " | "))
}

func formatHint(b key.Binding) string {
	h := b.Help()
	return h.Key + ": " + h.Desc
}
