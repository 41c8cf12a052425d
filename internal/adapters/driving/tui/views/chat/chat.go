// Package chat provides the conversation view of the TUI.
package chat

import (
	"bytes"
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ragchat/internal/adapters/driving/shell"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/styles"
)

// chrome is the number of rows used by the input and the status bar.
const chrome = 4

// View shows the transcript above a prompt line and a status bar.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.PromptInput
	viewport  viewport.Model
	statusbar *status.Bar

	session *shell.Session
	ctx     context.Context

	transcript strings.Builder
	busy       bool
	summary    string

	width  int
	height int
}

// NewView creates a chat view driving session.
func NewView(s *styles.Styles, km *keymap.KeyMap, session *shell.Session) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	v := &View{
		styles:    s,
		keymap:    km,
		input:     input.NewPromptInput(s),
		viewport:  viewport.New(80, 24-chrome),
		statusbar: status.NewBar(s, km),
		session:   session,
		ctx:       context.Background(),
		width:     80,
		height:    24,
	}
	return v
}

// WithContext sets the context passed to session commands.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// SetSummary sets the idle status bar text.
func (v *View) SetSummary(summary string) {
	v.summary = summary
	if !v.busy && v.statusbar.State() == status.StateReady {
		v.statusbar.SetMessage(summary)
	}
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the chat view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		v.statusbar, cmd = v.statusbar.Update(msg)
		return v, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		v.viewport, cmd = v.viewport.Update(msg)
		return v, cmd

	case messages.LineSubmitted:
		return v, v.submit(msg.Line)

	case messages.LineHandled:
		v.busy = false
		v.Append(v.styles.Highlight(msg.Output))
		if msg.Quit {
			return v, tea.Quit
		}
		v.syncPrompt()
		return v, nil

	case messages.ErrorOccurred:
		v.busy = false
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(msg.Err.Error())
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	k := msg.String()

	if keymap.Matches(k, v.keymap.ScrollUp) || keymap.Matches(k, v.keymap.ScrollDown) {
		var cmd tea.Cmd
		v.viewport, cmd = v.viewport.Update(msg)
		return v, cmd
	}

	if v.busy {
		return v, nil
	}

	switch {
	case key.Matches(msg, v.keymap.Submit):
		line := v.input.Value()
		v.input.Reset()
		if strings.TrimSpace(line) == "" && v.session.Prompt() != shell.PromptConfirm {
			return v, nil
		}
		return v, v.submit(line)
	case key.Matches(msg, v.keymap.HistoryPrev):
		v.input.Previous(v.session.History().Entries())
		return v, nil
	case key.Matches(msg, v.keymap.HistoryNext):
		v.input.Next(v.session.History().Entries())
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// submit echoes line and runs it through the session off the UI loop.
func (v *View) submit(line string) tea.Cmd {
	v.Append(v.styles.UserLine.Render(v.session.Prompt() + line))
	v.busy = true
	tick := v.statusbar.Start(activity(line))

	session, ctx := v.session, v.ctx
	run := func() tea.Msg {
		var buf bytes.Buffer
		quit := session.Handle(ctx, &buf, line)
		return messages.LineHandled{Line: line, Output: buf.String(), Quit: quit}
	}
	return tea.Batch(run, tick)
}

func activity(line string) string {
	switch shell.Parse(line).Kind {
	case shell.KindAdd:
		return "Ingesting"
	case shell.KindQuestion:
		return "Thinking"
	default:
		return "Working"
	}
}

func (v *View) syncPrompt() {
	prompt := v.session.Prompt()
	v.input.SetLabel(prompt)
	if prompt == shell.PromptConfirm {
		v.statusbar.SetState(status.StateConfirm)
		v.statusbar.SetMessage("")
		return
	}
	v.statusbar.Clear()
	v.statusbar.SetMessage(v.summary)
}

// Append adds text to the transcript and scrolls to the bottom.
func (v *View) Append(text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}
	if v.transcript.Len() > 0 {
		v.transcript.WriteString("\n")
	}
	v.transcript.WriteString(text)
	v.viewport.SetContent(lipgloss.NewStyle().Width(v.viewport.Width).Render(v.transcript.String()))
	v.viewport.GotoBottom()
}

// Transcript returns the raw transcript text.
func (v *View) Transcript() string {
	return v.transcript.String()
}

// Busy reports whether a command is running.
func (v *View) Busy() bool {
	return v.busy
}

// View renders the chat view.
func (v *View) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		v.styles.Transcript.Render(v.viewport.View()),
		v.input.View(),
		v.statusbar.View(),
	)
}

// SetDimensions sets the terminal dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.viewport.Width = width - 2
	v.viewport.Height = max(height-chrome, 1)
	v.input.SetWidth(width)
	v.statusbar.SetWidth(width)
	v.viewport.SetContent(lipgloss.NewStyle().Width(v.viewport.Width).Render(v.transcript.String()))
	v.viewport.GotoBottom()
}
