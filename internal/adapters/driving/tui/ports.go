// Package tui provides the interactive chat terminal user interface for ragchat.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/ragchat/internal/adapters/driving/shell"
)

// Ports aggregates what the TUI needs from the rest of the application.
type Ports struct {
	// Session interprets every submitted line.
	Session *shell.Session

	// Welcome is shown at the top of the transcript.
	Welcome string

	// Summary is the idle status bar text, e.g. the collection size.
	Summary string
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Session == nil {
		return ErrMissingSession
	}
	return nil
}
