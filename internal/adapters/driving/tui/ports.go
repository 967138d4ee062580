// Package tui provides an interactive terminal interface for browsing
// documents and chatting with them.
package tui

import (
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// Ports aggregates the driving ports the TUI needs.
type Ports struct {
	// Documents lists, processes and deletes documents.
	Documents driving.DocumentService

	// Answers answers questions.
	Answers driving.AnswerService

	// Sessions reads and deletes conversation logs.
	Sessions driving.SessionService

	// Settings is shown read-only. Optional.
	Settings driving.SettingsService
}

// Validate ensures the required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrInvalidPorts
	}
	if p.Documents == nil {
		return ErrMissingDocumentService
	}
	if p.Answers == nil {
		return ErrMissingAnswerService
	}
	return nil
}
