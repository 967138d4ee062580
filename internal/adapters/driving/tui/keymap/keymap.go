// Package keymap defines keybindings for the TUI.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines all keybindings for the TUI.
type KeyMap struct {
	Quit   key.Binding
	Help   key.Binding
	Back   key.Binding
	Up     key.Binding
	Down   key.Binding
	Select key.Binding

	// Ask submits the typed question.
	Ask key.Binding

	// ToggleLookup switches between document and external retrieval.
	ToggleLookup key.Binding

	// NewSession forgets the current conversation.
	NewSession key.Binding

	// Chat opens the chat bound to the selected document.
	Chat key.Binding

	// Chunks shows the chunks of the selected document.
	Chunks key.Binding

	// Process (re)processes the selected document.
	Process key.Binding

	// Delete removes the selected document.
	Delete key.Binding

	// Reload refreshes the document list.
	Reload key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Help:         key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Back:         key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Up:           key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:         key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Select:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		Ask:          key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "ask")),
		ToggleLookup: key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "toggle web")),
		NewSession:   key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "new session")),
		Chat:         key.NewBinding(key.WithKeys("c", "enter"), key.WithHelp("c", "chat")),
		Chunks:       key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "chunks")),
		Process:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "process")),
		Delete:       key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Reload:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	}
}

// ShortHelp returns a short list of keybindings.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Help}
}

// ChatHelp returns keybindings for the chat view.
func (k *KeyMap) ChatHelp() []key.Binding {
	return []key.Binding{k.Ask, k.ToggleLookup, k.NewSession, k.Back}
}

// DocumentsHelp returns keybindings for the documents view.
func (k *KeyMap) DocumentsHelp() []key.Binding {
	return []key.Binding{k.Chat, k.Chunks, k.Process, k.Delete, k.Reload, k.Back}
}

// FullHelp returns the full list of keybindings grouped by view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Back},
		k.DocumentsHelp(),
		k.ChatHelp(),
		{k.Help, k.Quit},
	}
}

// Matches checks if a key string matches a binding.
func Matches(keyStr string, binding key.Binding) bool {
	for _, k := range binding.Keys() {
		if k == keyStr {
			return true
		}
	}
	return false
}
