package styles

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPalette_ChatColoursAreDistinct(t *testing.T) {
	p := DefaultPalette()

	colours := []lipgloss.Color{p.Accent, p.Question, p.Answer, p.Citation, p.Caution, p.Failure}
	seen := make(map[string]bool)
	for _, c := range colours {
		require.NotEmpty(t, string(c))
		assert.False(t, seen[string(c)], "duplicate colour: %s", c)
		seen[string(c)] = true
	}
}

func TestNew_KeepsPalette(t *testing.T) {
	p := DefaultPalette()
	p.Answer = lipgloss.Color("#FFFFFF")

	s := New(p)

	assert.Equal(t, p, s.Palette())
}

func TestHighlight_PreservesText(t *testing.T) {
	s := DefaultStyles()
	output := "QUESTION: why?\nANSWER: because.\n\nSources (1):\n  - guide.pdf, p. 3\nError: boom\n"

	got := s.Highlight(output)

	for _, want := range []string{"QUESTION: why?", "ANSWER: because.", "Sources (1):", "guide.pdf, p. 3", "Error: boom"} {
		assert.Contains(t, got, want)
	}
	assert.Contains(t, got, "\n\n", "blank lines are kept")
}

func TestLineStyle(t *testing.T) {
	s := DefaultStyles()

	tests := []struct {
		line string
		want lipgloss.Style
	}{
		{"ANSWER: yes", s.Answer},
		{"  - guide.pdf, p. 1", s.Citation},
		{"Error: failed", s.Error},
		{"Remove every chunk of a.pdf? Type 'yes' to confirm.", s.Warning},
		{"Chunks:  4", s.Normal},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got := s.lineStyle(tt.line)
			assert.Equal(t, tt.want.GetForeground(), got.GetForeground())
		})
	}
}
