// Package keymap defines keybindings for the TUI.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines all keybindings for the chat TUI.
type KeyMap struct {
	// Quit exits the application.
	Quit key.Binding

	// Submit sends the current line to the session.
	Submit key.Binding

	// HistoryPrev recalls the previous history entry.
	HistoryPrev key.Binding

	// HistoryNext recalls the next history entry.
	HistoryNext key.Binding

	// ScrollUp scrolls the transcript up one page.
	ScrollUp key.Binding

	// ScrollDown scrolls the transcript down one page.
	ScrollDown key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+d"),
			key.WithHelp("ctrl+c", "quit"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		HistoryPrev: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("↑", "previous"),
		),
		HistoryNext: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("↓", "next"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll down"),
		),
	}
}

// ShortHelp returns the bindings shown in the status bar.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.HistoryPrev, k.ScrollUp, k.Quit}
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
