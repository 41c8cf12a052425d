package shell

import "strings"

// History records the lines entered in a chat session.
type History struct {
	entries []string
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Add appends line. Blank lines and repeats of the last entry are skipped.
func (h *History) Add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == line {
		return
	}
	h.entries = append(h.entries, line)
}

// Get returns entry n, counting from 1.
func (h *History) Get(n int) (string, bool) {
	if n < 1 || n > len(h.entries) {
		return "", false
	}
	return h.entries[n-1], true
}

// Entries returns a copy of all entries, oldest first.
func (h *History) Entries() []string {
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of entries.
func (h *History) Len() int {
	return len(h.entries)
}
