// Package messages defines Bubbletea message types for the TUI.
package messages

import (
	"github.com/custodia-labs/docqa/internal/core/domain"
)

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewMenu is the main navigation menu.
	ViewMenu ViewType = iota
	// ViewDocuments lists uploaded documents.
	ViewDocuments
	// ViewChunks shows the chunks of one document.
	ViewChunks
	// ViewChat is the question and answer view.
	ViewChat
	// ViewSettings shows the effective settings.
	ViewSettings
	// ViewHelp is the keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewMenu:
		return "menu"
	case ViewDocuments:
		return "documents"
	case ViewChunks:
		return "chunks"
	case ViewChat:
		return "chat"
	case ViewSettings:
		return "settings"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}

// DocumentsLoaded carries a page of documents.
type DocumentsLoaded struct {
	Documents []domain.Document
	Err       error
}

// ChunksRequested asks the app to show the chunks of a document.
type ChunksRequested struct {
	Document domain.Document
}

// ChunksLoaded carries the chunks of a document.
type ChunksLoaded struct {
	DocumentID string
	Chunks     []domain.Chunk
	Err        error
}

// DocumentProcessed signals processing finished.
type DocumentProcessed struct {
	Document *domain.Document
	Err      error
}

// DocumentDeleted signals a document was deleted.
type DocumentDeleted struct {
	DocumentID string
	Err        error
}

// ChatRequested opens the chat view bound to a document. An empty
// document chats without one.
type ChatRequested struct {
	Document *domain.Document
}

// AnswerReceived carries the result of a question.
type AnswerReceived struct {
	Question string
	Answer   *domain.Answer
	Err      error
}

// SessionCleared signals the conversation log was deleted.
type SessionCleared struct {
	Err error
}

// SettingsLoaded carries the effective settings.
type SettingsLoaded struct {
	Settings *domain.AppSettings
	Err      error
}
