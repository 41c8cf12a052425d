// Package styles holds the chat palette and the lipgloss styles built from it.
package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette assigns a colour to each kind of chat output.
type Palette struct {
	Accent   lipgloss.Color
	Question lipgloss.Color
	Answer   lipgloss.Color
	Citation lipgloss.Color
	Text     lipgloss.Color
	Dim      lipgloss.Color
	Caution  lipgloss.Color
	Failure  lipgloss.Color
	Frame    lipgloss.Color
	Bar      lipgloss.Color
}

// DefaultPalette is tuned for dark terminals.
func DefaultPalette() Palette {
	return Palette{
		Accent:   lipgloss.Color("#7C3AED"),
		Question: lipgloss.Color("#06B6D4"),
		Answer:   lipgloss.Color("#A6E3A1"),
		Citation: lipgloss.Color("#89B4FA"),
		Text:     lipgloss.Color("#CDD6F4"),
		Dim:      lipgloss.Color("#6C7086"),
		Caution:  lipgloss.Color("#F9E2AF"),
		Failure:  lipgloss.Color("#F38BA8"),
		Frame:    lipgloss.Color("#45475A"),
		Bar:      lipgloss.Color("#181825"),
	}
}

// Styles are the rendered forms used by the chat view and its components.
type Styles struct {
	palette Palette

	Title      lipgloss.Style
	Normal     lipgloss.Style
	Muted      lipgloss.Style
	UserLine   lipgloss.Style
	Answer     lipgloss.Style
	Citation   lipgloss.Style
	Error      lipgloss.Style
	Warning    lipgloss.Style
	InputField lipgloss.Style
	StatusBar  lipgloss.Style
	Transcript lipgloss.Style
}

// New builds styles from p.
func New(p Palette) *Styles {
	return &Styles{
		palette:    p,
		Title:      lipgloss.NewStyle().Bold(true).Foreground(p.Accent),
		Normal:     lipgloss.NewStyle().Foreground(p.Text),
		Muted:      lipgloss.NewStyle().Foreground(p.Dim),
		UserLine:   lipgloss.NewStyle().Bold(true).Foreground(p.Question),
		Answer:     lipgloss.NewStyle().Foreground(p.Answer),
		Citation:   lipgloss.NewStyle().Foreground(p.Citation),
		Error:      lipgloss.NewStyle().Foreground(p.Failure),
		Warning:    lipgloss.NewStyle().Foreground(p.Caution),
		InputField: lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(p.Frame).Padding(0, 1),
		StatusBar:  lipgloss.NewStyle().Foreground(p.Dim).Background(p.Bar).Padding(0, 1),
		Transcript: lipgloss.NewStyle().Foreground(p.Text).Padding(0, 1),
	}
}

// DefaultStyles returns styles for the default palette.
func DefaultStyles() *Styles {
	return New(DefaultPalette())
}

// Palette returns the palette the styles were built from.
func (s *Styles) Palette() Palette {
	return s.palette
}

// Highlight colours session output line by line. The text is unchanged.
func (s *Styles) Highlight(output string) string {
	lines := strings.Split(output, "\n")
	for i, line := range lines {
		if line == "" {
			continue
		}
		lines[i] = s.lineStyle(line).Render(line)
	}
	return strings.Join(lines, "\n")
}

func (s *Styles) lineStyle(line string) lipgloss.Style {
	switch {
	case strings.HasPrefix(line, "QUESTION:"):
		return s.UserLine
	case strings.HasPrefix(line, "ANSWER:"):
		return s.Answer
	case strings.HasPrefix(line, "Sources ("), strings.HasPrefix(line, "  - "):
		return s.Citation
	case strings.HasPrefix(line, "Error:"):
		return s.Error
	case strings.HasSuffix(line, "Type 'yes' to confirm."), strings.HasPrefix(line, "  ! "):
		return s.Warning
	case strings.HasPrefix(line, "====="), strings.HasPrefix(line, "-----"):
		return s.Muted
	default:
		return s.Normal
	}
}
