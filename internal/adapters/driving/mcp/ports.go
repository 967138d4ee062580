package mcp

import "github.com/custodia-labs/docqa/internal/core/ports/driving"

// Ports are the services the MCP tools call. Only Answers is required;
// tools whose port is nil answer with an error, resources with an empty list.
type Ports struct {
	Answers   driving.AnswerService
	Documents driving.DocumentService
	Sessions  driving.SessionService
}

func (p *Ports) Validate() error {
	if p == nil || p.Answers == nil {
		return ErrMissingAnswerService
	}
	return nil
}
