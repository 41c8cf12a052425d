// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

// LineSubmitted is sent when the user presses enter on a non-empty line.
type LineSubmitted struct {
	Line string
}

// LineHandled carries the output of a session command back to the model.
type LineHandled struct {
	Line   string
	Output string

	// Quit is true when the line ended the session.
	Quit bool
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}
