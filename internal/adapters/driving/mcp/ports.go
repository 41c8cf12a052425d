package mcp

import (
	"github.com/custodia-labs/ragchat/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces required by the MCP server.
type Ports struct {
	// Answer answers questions from the indexed documents.
	Answer driving.AnswerService

	// Collection reports on the indexed documents.
	Collection driving.CollectionService

	// Temperature is used when a tool call does not set one.
	Temperature float64
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Answer == nil {
		return ErrMissingAnswerService
	}
	if p.Collection == nil {
		return ErrMissingCollectionService
	}
	return nil
}
