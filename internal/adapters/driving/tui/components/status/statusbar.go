// Package status renders the one-line status bar under the chat prompt.
package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/styles"
)

// State is what the bar shows on its left side.
type State string

const (
	StateReady   State = "ready"
	StateWorking State = "working"
	StateConfirm State = "confirm"
	StateError   State = "error"
)

// Bar shows the session state on the left and key hints on the right.
// While working it animates a spinner and counts the seconds spent.
type Bar struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	spinner spinner.Model
	state   State
	message string
	started time.Time
	now     func() time.Time
	width   int
}

// NewBar creates a status bar. Nil arguments select the defaults.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	sp := spinner.New(spinner.WithSpinner(spinner.MiniDot))
	sp.Style = s.Title

	return &Bar{
		styles:  s,
		keymap:  km,
		spinner: sp,
		state:   StateReady,
		now:     time.Now,
		width:   80,
	}
}

// Init initialises the status bar.
func (s *Bar) Init() tea.Cmd {
	return nil
}

// Update advances the spinner while working and ignores everything else.
func (s *Bar) Update(msg tea.Msg) (*Bar, tea.Cmd) {
	tick, ok := msg.(spinner.TickMsg)
	if !ok || s.state != StateWorking {
		return s, nil
	}
	var cmd tea.Cmd
	s.spinner, cmd = s.spinner.Update(tick)
	return s, cmd
}

// Start switches to the working state with activity as the label and
// returns the command that drives the spinner.
func (s *Bar) Start(activity string) tea.Cmd {
	s.state = StateWorking
	s.message = activity
	s.started = s.now()
	return s.spinner.Tick
}

// Elapsed returns the time since Start, or 0 when not working.
func (s *Bar) Elapsed() time.Duration {
	if s.state != StateWorking || s.started.IsZero() {
		return 0
	}
	return s.now().Sub(s.started)
}

// View renders the status bar.
func (s *Bar) View() string {
	left := s.renderLeft()
	right := s.renderRight()

	padding := max(s.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return s.styles.StatusBar.Width(s.width).Render(left + strings.Repeat(" ", padding) + right)
}

func (s *Bar) renderLeft() string {
	switch s.state {
	case StateWorking:
		label := s.message
		if label == "" {
			label = "Working"
		}
		text := label + "..."
		if secs := int(s.Elapsed().Seconds()); secs > 0 {
			text += fmt.Sprintf(" %ds", secs)
		}
		return s.spinner.View() + " " + s.styles.Muted.Render(text)
	case StateConfirm:
		return s.styles.Warning.Render("Type 'yes' to confirm")
	case StateError:
		if s.message != "" {
			return s.styles.Error.Render("Error: " + s.message)
		}
		return s.styles.Error.Render("Error")
	}
	if s.message != "" {
		return s.styles.Normal.Render(s.message)
	}
	return s.styles.Muted.Render("Ready")
}

func (s *Bar) renderRight() string {
	bindings := s.keymap.ShortHelp()
	hints := make([]string, 0, len(bindings))
	for _, b := range bindings {
		hints = append(hints, hint(b))
	}
	return s.styles.Muted.Render(strings.Join(hints, " | "))
}

func hint(b key.Binding) string {
	h := b.Help()
	return h.Key + ": " + h.Desc
}

// SetState sets the current state.
func (s *Bar) SetState(state State) {
	s.state = state
}

// State returns the current state.
func (s *Bar) State() State {
	return s.state
}

// SetMessage sets the label shown for the current state.
func (s *Bar) SetMessage(message string) {
	s.message = message
}

// Message returns the current label.
func (s *Bar) Message() string {
	return s.message
}

// SetWidth sets the status bar width.
func (s *Bar) SetWidth(width int) {
	s.width = width
}

// Width returns the current width.
func (s *Bar) Width() int {
	return s.width
}

// Clear returns to the ready state.
func (s *Bar) Clear() {
	s.state = StateReady
	s.message = ""
	s.started = time.Time{}
}
