package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/views/chat"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	keymap *keymap.KeyMap

	chatView *chat.View

	// width and height are terminal dimensions.
	width  int
	height int

	// ready indicates the first window size has arrived.
	ready bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()
	chatView := chat.NewView(s, km, ports.Session)
	chatView.Append(ports.Welcome)
	chatView.SetSummary(ports.Summary)

	return &App{
		ports:    ports,
		keymap:   km,
		chatView: chatView,
	}, nil
}

// WithContext sets the context for session commands.
func (a *App) WithContext(ctx context.Context) *App {
	a.chatView.WithContext(ctx)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("ragchat"),
		a.chatView.Init(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.chatView.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		if keymap.Matches(msg.String(), a.keymap.Quit) {
			return a, tea.Quit
		}

	case messages.Quit:
		return a, tea.Quit
	}

	a.chatView, cmd = a.chatView.Update(msg)
	return a, cmd
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}
	return a.chatView.View()
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

// Transcript returns the conversation so far.
func (a *App) Transcript() string {
	return a.chatView.Transcript()
}

// Busy reports whether a command is running.
func (a *App) Busy() bool {
	return a.chatView.Busy()
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions (for testing).
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.chatView.SetDimensions(width, height)
}
