// Package input provides the prompt line of the chat TUI.
package input

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ragchat/internal/adapters/driving/tui/styles"
)

// PromptInput wraps a bubbles textinput with history recall.
type PromptInput struct {
	textinput textinput.Model
	styles    *styles.Styles
	width     int
	label     string

	// histIndex is the recalled entry, or -1 when not browsing.
	histIndex int
	draft     string
}

// NewPromptInput creates a new prompt input component.
func NewPromptInput(s *styles.Styles) *PromptInput {
	if s == nil {
		s = styles.DefaultStyles()
	}

	ti := textinput.New()
	ti.Placeholder = "Ask a question or type 'help'..."
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 1024
	ti.Width = 50

	return &PromptInput{
		textinput: ti,
		styles:    s,
		width:     50,
		label:     "> ",
		histIndex: -1,
	}
}

// Init initialises the prompt input.
func (p *PromptInput) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles input messages.
func (p *PromptInput) Update(msg tea.Msg) (*PromptInput, tea.Cmd) {
	var cmd tea.Cmd
	p.textinput, cmd = p.textinput.Update(msg)
	return p, cmd
}

// View renders the prompt input.
func (p *PromptInput) View() string {
	label := p.styles.Title.Render(p.label)
	input := p.styles.InputField.Render(p.textinput.View())
	//nolint:misspell // lipgloss.Center is the correct constant from the library
	return lipgloss.JoinHorizontal(lipgloss.Center, label, input)
}

// SetLabel sets the text shown before the input box.
func (p *PromptInput) SetLabel(label string) {
	p.label = label
}

// Label returns the prompt label.
func (p *PromptInput) Label() string {
	return p.label
}

// Value returns the current input value.
func (p *PromptInput) Value() string {
	return p.textinput.Value()
}

// SetValue sets the input value and moves the cursor to the end.
func (p *PromptInput) SetValue(value string) {
	p.textinput.SetValue(value)
	p.textinput.CursorEnd()
}

// Previous recalls the entry before the current one.
func (p *PromptInput) Previous(entries []string) {
	if len(entries) == 0 {
		return
	}
	if p.histIndex == -1 {
		p.draft = p.Value()
		p.histIndex = len(entries)
	}
	if p.histIndex > 0 {
		p.histIndex--
		p.SetValue(entries[p.histIndex])
	}
}

// Next recalls the entry after the current one, ending at the draft line.
func (p *PromptInput) Next(entries []string) {
	if p.histIndex == -1 {
		return
	}
	p.histIndex++
	if p.histIndex >= len(entries) {
		p.histIndex = -1
		p.SetValue(p.draft)
		return
	}
	p.SetValue(entries[p.histIndex])
}

// Focus sets focus on the input.
func (p *PromptInput) Focus() tea.Cmd {
	return p.textinput.Focus()
}

// Blur removes focus from the input.
func (p *PromptInput) Blur() {
	p.textinput.Blur()
}

// Focused returns whether the input is focused.
func (p *PromptInput) Focused() bool {
	return p.textinput.Focused()
}

// SetWidth sets the width of the input.
func (p *PromptInput) SetWidth(width int) {
	p.width = width
	// Account for label and padding
	inputWidth := width - 12
	if inputWidth < 20 {
		inputWidth = 20
	}
	p.textinput.Width = inputWidth
}

// Width returns the current width.
func (p *PromptInput) Width() int {
	return p.width
}

// Reset clears the input and leaves history browsing.
func (p *PromptInput) Reset() {
	p.textinput.Reset()
	p.histIndex = -1
	p.draft = ""
}
